// Package emit maps individual scene blocks onto PGP frames.
package emit

import (
	"fmt"

	"github.com/coreman2200/funtimes-pgp/internal/font"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/scene"
)

func violation(op, format string, a ...any) error {
	return &pgp.ContractError{Op: op, Detail: fmt.Sprintf(format, a...)}
}

func u16(op, field string, v int) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, violation(op, "%s %d out of range 0..65535", field, v)
	}
	return uint16(v), nil
}

func u8(op, field string, v int) (byte, error) {
	if v < 0 || v > 0xFF {
		return 0, violation(op, "%s %d out of range 0..255", field, v)
	}
	return byte(v), nil
}

// fields checks several 16-bit values in order and stops at the first bad
// one.
type fields struct {
	op  string
	err error
}

func (f *fields) u16(name string, v int) uint16 {
	if f.err != nil {
		return 0
	}
	out, err := u16(f.op, name, v)
	f.err = err
	return out
}

func (f *fields) u8(name string, v int) byte {
	if f.err != nil {
		return 0
	}
	out, err := u8(f.op, name, v)
	f.err = err
	return out
}

func one(fr pgp.Frame, err error) ([]pgp.Frame, error) {
	if err != nil {
		return nil, err
	}
	return []pgp.Frame{fr}, nil
}

// Block returns the frames for b. It has no side effects.
func Block(b scene.Block) ([]pgp.Frame, error) {
	f := &fields{op: b.Kind()}
	switch v := b.(type) {
	case scene.Text:
		return text(v)
	case scene.Rect:
		fr := pgp.Rect(f.u16("x", v.X), f.u16("y", v.Y), f.u16("w", v.W), f.u16("h", v.H), v.Filled)
		return one(fr, f.err)
	case scene.Fill:
		return one(pgp.LineFill(v.Value, f.u16("lines", v.Lines)), f.err)
	case scene.Raster:
		return Rows(v.Rows)
	case scene.SpriteDraw:
		return one(pgp.SpriteDraw(f.u8("id", v.ID), f.u16("x", v.X), f.u16("y", v.Y)), f.err)
	case scene.Feed:
		return one(pgp.Feed(f.u16("lines", v.Lines)), f.err)
	case scene.SetSpeed:
		return one(pgp.SetSpeed(f.u16("speed", v.Speed)), f.err)
	case scene.SetHeat:
		return one(pgp.SetHeat(f.u16("heat", v.Heat)), f.err)
	case scene.PollInput:
		return one(pgp.PollInput(), nil)
	case scene.WaitButton:
		return one(pgp.WaitButton(f.u8("button", v.Button)), f.err)
	case scene.SyncMarker:
		return one(pgp.SyncMarker(f.u16("marker", v.Marker)), f.err)
	case scene.Label:
		return one(pgp.Label(f.u16("id", v.ID)), f.err)
	case scene.Jump:
		return one(pgp.Jump(f.u16("label", v.Label)), f.err)
	case scene.JumpIfButton:
		return one(pgp.JumpIfButton(f.u8("button", v.Button), f.u16("label", v.Label)), f.err)
	case scene.RandomJump:
		labels := make([]uint16, len(v.Labels))
		for i, l := range v.Labels {
			labels[i] = f.u16("label", l)
		}
		if f.err != nil {
			return nil, f.err
		}
		return one(pgp.RandomJump(labels))
	case scene.SetVariable:
		return one(pgp.SetVariable(f.u8("var", v.Var), f.u16("value", v.Value)), f.err)
	case scene.JumpIfVariable:
		return one(pgp.JumpIfVariable(f.u8("var", v.Var), v.Op, f.u16("value", v.Value), f.u16("label", v.Label)), f.err)
	case scene.JumpIfFader:
		return one(pgp.JumpIfFader(f.u8("fader", v.Fader), v.Op, f.u16("threshold", v.Threshold), f.u16("label", v.Label)), f.err)
	case scene.WaitFader:
		return one(pgp.WaitFader(f.u8("fader", v.Fader), v.Op, f.u16("threshold", v.Threshold)), f.err)
	case scene.SetFeedMode:
		return one(pgp.SetFeedMode(v.Mode), nil)
	}
	return nil, violation("emit", "unsupported block kind %q", b.Kind())
}

func text(v scene.Text) ([]pgp.Frame, error) {
	spec := font.Resolve(v.Size, v.Text)
	if v.Font != nil {
		var err error
		if spec, err = font.FromLegacy(*v.Font, v.Text); err != nil {
			return nil, violation("text", "%v", err)
		}
	}
	f := &fields{op: "text"}
	x, y := f.u16("x", v.X), f.u16("y", v.Y)
	if f.err != nil {
		return nil, f.err
	}
	return one(pgp.Text(x, y, spec.Byte(), v.Text))
}

// Rows emits one raster line frame per row. Short rows are zero-padded.
func Rows(rows [][]byte) ([]pgp.Frame, error) {
	out := make([]pgp.Frame, 0, len(rows))
	line := make([]byte, pgp.LineBytes)
	for i, r := range rows {
		if len(r) > pgp.LineBytes {
			return nil, violation("raster", "row %d is %d bytes, max %d", i, len(r), pgp.LineBytes)
		}
		n := copy(line, r)
		clear(line[n:])
		fr, err := pgp.RawLineRLE(line)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, nil
}

// Sprite returns the definition frame for one sprite table entry.
func Sprite(s scene.Sprite) (pgp.Frame, error) {
	f := &fields{op: "sprite_def"}
	id, w, h := f.u8("id", s.ID), f.u8("width", s.W), f.u8("height", s.H)
	if f.err != nil {
		return pgp.Frame{}, f.err
	}
	return pgp.SpriteDef(id, w, h, s.Bitmap)
}
