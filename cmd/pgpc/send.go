package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-pgp/internal/config"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/transport"
)

type deviceFlags struct {
	config, backend, port string
	baud, chunk           int
}

func addDeviceFlags(fs *flag.FlagSet) *deviceFlags {
	d := &deviceFlags{}
	fs.StringVar(&d.config, "config", "", "pgpd.yaml to read device settings from")
	fs.StringVar(&d.backend, "backend", "", "serial | uart | file")
	fs.StringVar(&d.port, "port", "", "device port, UART name or output file")
	fs.IntVar(&d.baud, "baud", 0, "baud rate")
	fs.IntVar(&d.chunk, "chunk", 0, "bytes per write")
	return d
}

func (d *deviceFlags) transport() (*transport.Transport, error) {
	cfg := config.Default()
	if d.config != "" {
		c, err := config.Load(d.config)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if d.backend != "" {
		cfg.Device.Backend = d.backend
	}
	if d.port != "" {
		cfg.Device.Port = d.port
	}
	if d.baud > 0 {
		cfg.Device.Baud = d.baud
	}
	if d.chunk > 0 {
		cfg.Device.ChunkSize = d.chunk
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.Transport()
}

// loadStream compiles a scene or reads an already built stream, checking
// every frame.
func loadStream(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".pgp") {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if _, err := pgp.Decode(b); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return b, nil
	}
	res, err := compileFile(path, 0)
	if err != nil {
		return nil, err
	}
	warn(res.Warnings)
	return res.Bytes, nil
}

func runSend(args []string) error {
	fs := newFlags("send")
	dev := addDeviceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("send: want exactly one scene or .pgp file")
	}
	data, err := loadStream(fs.Arg(0))
	if err != nil {
		return err
	}
	tr, err := dev.transport()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := tr.Connect(ctx); err != nil {
		return err
	}
	defer tr.Disconnect()

	start := time.Now()
	n, err := tr.Send(ctx, data)
	if err != nil {
		return err
	}
	log.Info().Int("bytes", n).Dur("took", time.Since(start)).Msg("sent")
	return nil
}
