package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/coreman2200/funtimes-pgp/internal/font"
	"github.com/coreman2200/funtimes-pgp/internal/linegen"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/transport"
)

// describe renders a frame's fields for humans.
func describe(f pgp.Frame) string {
	p := f.Payload()
	switch f.Command() {
	case pgp.CmdText:
		if len(p) >= 6 {
			return fmt.Sprintf("x=%d y=%d font=%s %q", pgp.LE16(p, 0), pgp.LE16(p, 2), font.DecodeByte(p[4]), p[6:])
		}
	case pgp.CmdRect:
		if len(p) == 9 {
			return fmt.Sprintf("x=%d y=%d w=%d h=%d filled=%t", pgp.LE16(p, 0), pgp.LE16(p, 2), pgp.LE16(p, 4), pgp.LE16(p, 6), p[8] != 0)
		}
	case pgp.CmdLineRaw, pgp.CmdLineRLE:
		line, err := pgp.LinePixels(f)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%d dots", dots(line))
	case pgp.CmdLineFill:
		if len(p) == 3 {
			return fmt.Sprintf("value=0x%02X lines=%d", p[0], pgp.LE16(p, 1))
		}
	case pgp.CmdSpriteDef:
		if len(p) >= 3 {
			return fmt.Sprintf("id=%d %dx%d", p[0], p[1], p[2])
		}
	case pgp.CmdSpriteDraw:
		if len(p) == 5 {
			return fmt.Sprintf("id=%d x=%d y=%d", p[0], pgp.LE16(p, 1), pgp.LE16(p, 3))
		}
	case pgp.CmdFeed, pgp.CmdSetSpeed, pgp.CmdSetHeat, pgp.CmdSync:
		if len(p) == 2 {
			return fmt.Sprint(pgp.LE16(p, 0))
		}
	case pgp.CmdSetMode, pgp.CmdSetFeedMode:
		if len(p) == 1 {
			return pgp.FeedMode(p[0]).String()
		}
	case pgp.CmdWaitButton:
		if len(p) == 1 {
			return fmt.Sprintf("button=%d", p[0])
		}
	case pgp.CmdLabel, pgp.CmdJump:
		if len(p) == 2 {
			return fmt.Sprintf("label=%d", pgp.BE16(p, 0))
		}
	case pgp.CmdJumpIfButton:
		if len(p) == 3 {
			return fmt.Sprintf("button=%d label=%d", p[0], pgp.BE16(p, 1))
		}
	case pgp.CmdRandomJump:
		if len(p) >= 1 && len(p) == 1+2*int(p[0]) {
			ls := make([]string, p[0])
			for i := range ls {
				ls[i] = fmt.Sprint(pgp.BE16(p, 1+2*i))
			}
			return "labels=" + strings.Join(ls, ",")
		}
	case pgp.CmdSetVariable:
		if len(p) == 3 {
			return fmt.Sprintf("var%d=%d", p[0], pgp.BE16(p, 1))
		}
	case pgp.CmdJumpIfVariable:
		if len(p) == 6 {
			return fmt.Sprintf("var%d %s %d -> %d", p[0], pgp.Op(p[1]), pgp.BE16(p, 2), pgp.BE16(p, 4))
		}
	case pgp.CmdJumpIfFader:
		if len(p) == 6 {
			return fmt.Sprintf("fader%d %s %d -> %d", p[0], pgp.Op(p[1]), pgp.BE16(p, 2), pgp.BE16(p, 4))
		}
	case pgp.CmdWaitFader:
		if len(p) == 4 {
			return fmt.Sprintf("fader%d %s %d", p[0], pgp.Op(p[1]), pgp.BE16(p, 2))
		}
	}
	if len(p) == 0 {
		return ""
	}
	return fmt.Sprintf("% x", p)
}

func dots(line []byte) int {
	n := 0
	for _, b := range line {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

// preview draws a raster line at one character per 8 dots.
func preview(line []byte) string {
	var sb strings.Builder
	for _, b := range line {
		switch {
		case b == 0:
			sb.WriteByte('.')
		case b == 0xFF:
			sb.WriteByte('#')
		default:
			sb.WriteByte('+')
		}
	}
	return sb.String()
}

func runDump(args []string) error {
	fs := newFlags("dump")
	lines := fs.Bool("lines", false, "draw raster lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("dump: want exactly one file")
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	frames, derr := pgp.Decode(b)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	off := 0
	for i, f := range frames {
		fmt.Fprintf(w, "%d\t@%d\t%s\t%d\t%s\n", i, off, f.Command(), len(f.Payload()), describe(f))
		if *lines {
			if line, err := pgp.LinePixels(f); err == nil {
				fmt.Fprintf(w, "\t\t\t\t%s\n", preview(line))
			}
		}
		off += f.Len()
	}
	w.Flush()
	return derr
}

func runPorts(args []string) error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUSB\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		id := ""
		if p.USB {
			id = p.VID + ":" + p.PID
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.USB, id, p.Serial, p.Product)
	}
	return w.Flush()
}

func runPatterns(args []string) error {
	reg := linegen.Builtins()
	for _, name := range reg.List() {
		p, _ := reg.Get(name)
		fmt.Printf("%s\t%s\n", name, strings.Join(p.Presets(), ", "))
	}
	return nil
}
