// Package pgp implements the PGP wire protocol spoken by the printer
// firmware: frame layout, checksum, command payloads and line compression.
package pgp

import "fmt"

// Sync is the first byte of every frame.
const Sync byte = 0xAA

const (
	// LineBytes is the width of one raster line in bytes (576 dots).
	LineBytes = 72
	// LineDots is the printable width in dots.
	LineDots = LineBytes * 8
	// RLEThreshold is the encoded size below which a line is sent compressed.
	RLEThreshold = 64
	// MaxPayload is the largest payload a 16-bit length field can carry.
	MaxPayload = 0xFFFF

	headerSize  = 4 // sync, command, length(2)
	trailerSize = 1 // checksum
)

// Command identifies a frame's payload shape.
type Command byte

const (
	CmdLineRaw  Command = 0x10
	CmdLineRLE  Command = 0x11
	CmdLineFill Command = 0x12

	CmdText       Command = 0x20
	CmdRect       Command = 0x21
	CmdSpriteDef  Command = 0x22
	CmdSpriteDraw Command = 0x23

	CmdFeed       Command = 0x30
	CmdStop       Command = 0x31
	CmdSetSpeed   Command = 0x32
	CmdSetHeat    Command = 0x33
	CmdSetMode    Command = 0x34
	CmdPollInput  Command = 0x35
	CmdWaitButton Command = 0x36
	CmdSync       Command = 0x37

	// Branching-control family. Every 16-bit field in these payloads is
	// big-endian.
	CmdProgramStart   Command = 0x40
	CmdProgramEnd     Command = 0x41
	CmdLabel          Command = 0x42
	CmdJump           Command = 0x43
	CmdJumpIfButton   Command = 0x44
	CmdRandomJump     Command = 0x45
	CmdSetVariable    Command = 0x46
	CmdJumpIfVariable Command = 0x47
	CmdJumpIfFader    Command = 0x48
	CmdWaitFader      Command = 0x49
	CmdSetFeedMode    Command = 0x4A
)

var commandNames = map[Command]string{
	CmdLineRaw:        "LINE_RAW",
	CmdLineRLE:        "LINE_RLE",
	CmdLineFill:       "LINE_FILL",
	CmdText:           "TEXT",
	CmdRect:           "RECT",
	CmdSpriteDef:      "SPRITE_DEF",
	CmdSpriteDraw:     "SPRITE_DRAW",
	CmdFeed:           "FEED",
	CmdStop:           "STOP",
	CmdSetSpeed:       "SET_SPEED",
	CmdSetHeat:        "SET_HEAT",
	CmdSetMode:        "SET_MODE",
	CmdPollInput:      "POLL_INPUT",
	CmdWaitButton:     "WAIT_BUTTON",
	CmdSync:           "SYNC",
	CmdProgramStart:   "PROGRAM_START",
	CmdProgramEnd:     "PROGRAM_END",
	CmdLabel:          "LABEL",
	CmdJump:           "JUMP",
	CmdJumpIfButton:   "JUMP_IF_BUTTON",
	CmdRandomJump:     "RANDOM_JUMP",
	CmdSetVariable:    "SET_VAR",
	CmdJumpIfVariable: "JUMP_IF_VAR",
	CmdJumpIfFader:    "JUMP_IF_FADER",
	CmdWaitFader:      "WAIT_FADER",
	CmdSetFeedMode:    "SET_FEED_MODE",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CMD(0x%02X)", byte(c))
}

// Known reports whether c is part of the protocol.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

// Branching reports whether c belongs to the branching-control family.
func (c Command) Branching() bool {
	return c >= CmdProgramStart && c <= CmdSetFeedMode
}

// FeedMode selects how the firmware paces paper feed for a section.
type FeedMode byte

const (
	FeedAuto FeedMode = iota
	FeedElastic
	FeedPrecise
)

func (m FeedMode) String() string {
	switch m {
	case FeedAuto:
		return "auto"
	case FeedElastic:
		return "elastic"
	case FeedPrecise:
		return "precise"
	default:
		return fmt.Sprintf("FeedMode(%d)", byte(m))
	}
}

// ParseFeedMode maps a scene keyword to a FeedMode. The empty string is auto.
func ParseFeedMode(s string) (FeedMode, error) {
	switch s {
	case "", "auto":
		return FeedAuto, nil
	case "elastic":
		return FeedElastic, nil
	case "precise":
		return FeedPrecise, nil
	}
	return FeedAuto, fmt.Errorf("unknown feed mode %q", s)
}

// Op is a comparison used by conditional branches.
type Op byte

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opSymbols = [...]string{"==", "!=", "<", "<=", ">", ">="}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", byte(o))
}

// ParseOp accepts the symbolic and short word forms ("gt", ">=", ...).
func ParseOp(s string) (Op, error) {
	switch s {
	case "==", "eq", "":
		return OpEq, nil
	case "!=", "ne":
		return OpNe, nil
	case "<", "lt":
		return OpLt, nil
	case "<=", "le":
		return OpLe, nil
	case ">", "gt":
		return OpGt, nil
	case ">=", "ge":
		return OpGe, nil
	}
	return OpEq, fmt.Errorf("unknown comparison %q", s)
}
