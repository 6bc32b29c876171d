package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"
	"golang.org/x/term"

	"github.com/coreman2200/funtimes-pgp/internal/pgp"
)

const consoleHelp = `commands:
  feed [n]             advance n dot rows (default 16)
  stop                 stop printing
  speed n | heat n     set motor speed or head energy
  poll                 ask the device for its inputs
  sync n               send a sync marker the device echoes back
  text "words" [size]  print one line of text
  print file           compile a scene (or read a .pgp) and send it
  raw hex              send raw bytes
  help | quit`

var errQuit = errors.New("quit")

// parseCommand turns one console line into the bytes to send. A nil slice
// with a nil error means nothing to send.
func parseCommand(line string) ([]byte, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, nil
	}
	u16 := func(i int, def int) (uint16, error) {
		if len(args) <= i {
			return uint16(def), nil
		}
		v, err := strconv.ParseUint(args[i], 0, 16)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", args[0], err)
		}
		return uint16(v), nil
	}
	need := func(n int) error {
		if len(args) < n+1 {
			return fmt.Errorf("%s: needs %d argument(s)", args[0], n)
		}
		return nil
	}
	switch args[0] {
	case "quit", "exit":
		return nil, errQuit
	case "help", "?":
		return nil, nil
	case "feed":
		n, err := u16(1, 16)
		if err != nil {
			return nil, err
		}
		return pgp.Feed(n).Bytes(), nil
	case "stop":
		return pgp.Stop().Bytes(), nil
	case "poll":
		return pgp.PollInput().Bytes(), nil
	case "speed", "heat", "sync":
		if err := need(1); err != nil {
			return nil, err
		}
		n, err := u16(1, 0)
		if err != nil {
			return nil, err
		}
		switch args[0] {
		case "speed":
			return pgp.SetSpeed(n).Bytes(), nil
		case "heat":
			return pgp.SetHeat(n).Bytes(), nil
		}
		return pgp.SyncMarker(n).Bytes(), nil
	case "text":
		if err := need(1); err != nil {
			return nil, err
		}
		size, err := u16(2, 16)
		if err != nil {
			return nil, err
		}
		return textLine(args[1], int(size))
	case "print":
		if err := need(1); err != nil {
			return nil, err
		}
		return loadStream(args[1])
	case "raw":
		if err := need(1); err != nil {
			return nil, err
		}
		return hex.DecodeString(strings.Join(args[1:], ""))
	}
	return nil, fmt.Errorf("unknown command %q (try help)", args[0])
}

func textLine(s string, size int) ([]byte, error) {
	p, err := sceneFromText(s, size)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	res, err := compileProgram(p)
	if err != nil {
		return nil, err
	}
	return res.Bytes, nil
}

type lineReader interface {
	ReadLine() (string, error)
}

type scanReader struct{ s *bufio.Scanner }

func (r scanReader) ReadLine() (string, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.s.Text(), nil
}

func runConsole(args []string) error {
	fs := newFlags("console")
	dev := addDeviceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	tr, err := dev.transport()
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	var in lineReader = scanReader{bufio.NewScanner(os.Stdin)}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, old)
		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, "pgp> ")
		in, out = t, t
	}

	var (
		outMu sync.Mutex
		dec   pgp.Decoder
	)
	printf := func(format string, a ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, a...)
	}
	tr.SetReceiver(func(b []byte) {
		frames := dec.Feed(b)
		if len(frames) == 0 {
			printf("<- % x\r\n", b)
		}
		for _, f := range frames {
			printf("<- %s %s\r\n", f.Command(), describe(f))
		}
	})

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		return err
	}
	defer tr.Disconnect()
	printf("connected to %s; type help\r\n", tr.Name)

	for {
		line, err := in.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		data, err := parseCommand(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			printf("error: %v\r\n", err)
			continue
		}
		if data == nil {
			if strings.TrimSpace(line) != "" {
				printf("%s\r\n", strings.ReplaceAll(consoleHelp, "\n", "\r\n"))
			}
			continue
		}
		n, err := tr.Send(ctx, data)
		if err != nil {
			printf("error: %v\r\n", err)
			continue
		}
		printf("-> %d bytes\r\n", n)
	}
}
