package pgp

import "unicode/utf8"

// LineRaw sends one uncompressed raster line.
func LineRaw(line []byte) (Frame, error) {
	if len(line) != LineBytes {
		return Frame{}, contractf("line", "raster line is %d bytes, want %d", len(line), LineBytes)
	}
	return NewFrame(CmdLineRaw, line)
}

// LineRLE sends (count, value) pairs that expand to one raster line.
func LineRLE(pairs []byte) (Frame, error) {
	if _, err := ExpandRLE(pairs); err != nil {
		return Frame{}, err
	}
	return NewFrame(CmdLineRLE, pairs)
}

// LineFill repeats a single byte value across lines full rows.
func LineFill(value byte, lines uint16) Frame {
	p := make([]byte, 0, 3)
	p = append(p, value)
	return frame(CmdLineFill, writeLE16(p, lines))
}

// Text draws UTF-8 text at (x, y) with an encoded font byte.
func Text(x, y uint16, font byte, text string) (Frame, error) {
	if !utf8.ValidString(text) {
		return Frame{}, contractf("text", "text is not valid UTF-8")
	}
	if len(text) > 0xFF {
		return Frame{}, contractf("text", "text is %d UTF-8 bytes, limit 255", len(text))
	}
	p := make([]byte, 0, 6+len(text))
	p = writeLE16(p, x)
	p = writeLE16(p, y)
	p = append(p, font, byte(len(text)))
	p = append(p, text...)
	return frame(CmdText, p), nil
}

// Rect draws an outlined or filled rectangle.
func Rect(x, y, w, h uint16, filled bool) Frame {
	p := make([]byte, 0, 9)
	p = writeLE16(p, x)
	p = writeLE16(p, y)
	p = writeLE16(p, w)
	p = writeLE16(p, h)
	var style byte
	if filled {
		style = 1
	}
	return frame(CmdRect, append(p, style))
}

// SpriteStride is the number of bytes per sprite row.
func SpriteStride(width int) int { return (width + 7) / 8 }

// SpriteDef uploads a bit-packed, row-major, MSB-first sprite bitmap.
func SpriteDef(id, width, height byte, bitmap []byte) (Frame, error) {
	if width == 0 || height == 0 {
		return Frame{}, contractf("sprite", "sprite %d has empty size %dx%d", id, width, height)
	}
	want := SpriteStride(int(width)) * int(height)
	if len(bitmap) != want {
		return Frame{}, contractf("sprite", "sprite %d bitmap is %d bytes, want %d for %dx%d", id, len(bitmap), want, width, height)
	}
	p := make([]byte, 0, 3+want)
	p = append(p, id, width, height)
	return frame(CmdSpriteDef, append(p, bitmap...)), nil
}

// SpriteDraw stamps a previously defined sprite.
func SpriteDraw(id byte, x, y uint16) Frame {
	p := make([]byte, 0, 5)
	p = append(p, id)
	p = writeLE16(p, x)
	return frame(CmdSpriteDraw, writeLE16(p, y))
}

// Feed advances the paper by lines dot rows.
func Feed(lines uint16) Frame { return frame(CmdFeed, writeLE16(nil, lines)) }

// Stop ends printing.
func Stop() Frame { return frame(CmdStop, nil) }

// SetSpeed sets the motor speed.
func SetSpeed(speed uint16) Frame { return frame(CmdSetSpeed, writeLE16(nil, speed)) }

// SetHeat sets the print head energy.
func SetHeat(heat uint16) Frame { return frame(CmdSetHeat, writeLE16(nil, heat)) }

// SetMode selects the feed mode for the following content.
func SetMode(m FeedMode) Frame { return frame(CmdSetMode, []byte{byte(m)}) }

// PollInput asks the device to report its inputs.
func PollInput() Frame { return frame(CmdPollInput, nil) }

// WaitButton blocks the device until button is pressed.
func WaitButton(button byte) Frame { return frame(CmdWaitButton, []byte{button}) }

// SyncMarker is echoed back by the device once everything before it printed.
func SyncMarker(marker uint16) Frame { return frame(CmdSync, writeLE16(nil, marker)) }

// ProgramStart opens a branching program.
func ProgramStart() Frame { return frame(CmdProgramStart, nil) }

// ProgramEnd closes a branching program.
func ProgramEnd() Frame { return frame(CmdProgramEnd, nil) }

// Label marks a jump target in the emitted stream.
func Label(id uint16) Frame { return frame(CmdLabel, writeBE16(nil, id)) }

// Jump branches unconditionally.
func Jump(label uint16) Frame { return frame(CmdJump, writeBE16(nil, label)) }

// JumpIfButton branches when button is held.
func JumpIfButton(button byte, label uint16) Frame {
	return frame(CmdJumpIfButton, writeBE16([]byte{button}, label))
}

// RandomJump branches to one of labels chosen by the device.
func RandomJump(labels []uint16) (Frame, error) {
	if len(labels) == 0 || len(labels) > 0xFF {
		return Frame{}, contractf("random-jump", "needs 1..255 targets, got %d", len(labels))
	}
	p := make([]byte, 0, 1+2*len(labels))
	p = append(p, byte(len(labels)))
	for _, l := range labels {
		p = writeBE16(p, l)
	}
	return frame(CmdRandomJump, p), nil
}

// SetVariable stores value in a device variable slot.
func SetVariable(slot byte, value uint16) Frame {
	return frame(CmdSetVariable, writeBE16([]byte{slot}, value))
}

// JumpIfVariable branches when `var op value` holds.
func JumpIfVariable(slot byte, op Op, value, label uint16) Frame {
	p := writeBE16([]byte{slot, byte(op)}, value)
	return frame(CmdJumpIfVariable, writeBE16(p, label))
}

// JumpIfFader branches when `fader op threshold` holds.
func JumpIfFader(fader byte, op Op, threshold, label uint16) Frame {
	p := writeBE16([]byte{fader, byte(op)}, threshold)
	return frame(CmdJumpIfFader, writeBE16(p, label))
}

// WaitFader blocks until `fader op threshold` holds.
func WaitFader(fader byte, op Op, threshold uint16) Frame {
	return frame(CmdWaitFader, writeBE16([]byte{fader, byte(op)}, threshold))
}

// SetFeedMode switches feed mode from inside a branching program.
func SetFeedMode(m FeedMode) Frame { return frame(CmdSetFeedMode, []byte{byte(m)}) }
