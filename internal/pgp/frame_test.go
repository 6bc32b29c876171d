package pgp_test

import (
	"bytes"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coreman2200/funtimes-pgp/internal/pgp"
)

func TestChecksumKnownVector(t *testing.T) {
	// CRC-8 (poly 0x07, init 0, no reflection, no xorout) check value.
	assert.Equal(t, byte(0xF4), Checksum([]byte("123456789")))
	assert.Equal(t, byte(0x00), Checksum(nil))
}

func TestFrameChecksumSelfConsistent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	sizes := []int{0, 1, 2, 71, 72, 255, 256, 4096, MaxPayload}
	for _, n := range sizes {
		t.Run("Payload"+strconv.Itoa(n), func(t *testing.T) {
			p := make([]byte, n)
			r.Read(p)
			b, err := Encode(CmdLineRaw, p)
			require.NoError(t, err)
			require.Len(t, b, n+5)

			assert.Equal(t, Sync, b[0])
			assert.Equal(t, byte(CmdLineRaw), b[1])
			assert.Equal(t, uint16(n), LE16(b, 2))
			assert.Equal(t, Checksum(b[1:len(b)-1]), b[len(b)-1])
			assert.True(t, bytes.Equal(p, b[4:len(b)-1]))
		})
	}
}

func TestFrameOversizedPayload(t *testing.T) {
	_, err := Encode(CmdText, make([]byte, MaxPayload+1))
	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "frame", ce.Op)
}

func TestFrameIsImmutable(t *testing.T) {
	p := []byte{1, 2, 3}
	f, err := NewFrame(CmdSync, p)
	require.NoError(t, err)
	p[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, f.Payload())
}

func TestByteOrderPerFamily(t *testing.T) {
	var tests = []struct {
		Name   string
		Frame  Frame
		Expect []byte
	}{
		{"SetSpeed", SetSpeed(0x0102), []byte{0x02, 0x01}},
		{"SetHeat", SetHeat(0x0A0B), []byte{0x0B, 0x0A}},
		{"Feed", Feed(16), []byte{0x10, 0x00}},
		{"LineFill", LineFill(0xFF, 0x0203), []byte{0xFF, 0x03, 0x02}},
		{"SpriteDraw", SpriteDraw(4, 0x0100, 0x0002), []byte{4, 0x00, 0x01, 0x02, 0x00}},
		{"Rect", Rect(1, 2, 3, 4, true), []byte{1, 0, 2, 0, 3, 0, 4, 0, 1}},
		{"Label", Label(0x0102), []byte{0x01, 0x02}},
		{"Jump", Jump(7), []byte{0x00, 0x07}},
		{"JumpIfButton", JumpIfButton(1, 0x0304), []byte{1, 0x03, 0x04}},
		{"SetVariable", SetVariable(3, 0x1234), []byte{3, 0x12, 0x34}},
		{"JumpIfVariable", JumpIfVariable(2, OpGe, 0x0010, 0x0009), []byte{2, byte(OpGe), 0x00, 0x10, 0x00, 0x09}},
		{"JumpIfFader", JumpIfFader(1, OpLt, 0x0200, 0x0001), []byte{1, byte(OpLt), 0x02, 0x00, 0x00, 0x01}},
		{"WaitFader", WaitFader(0, OpGt, 0x0180), []byte{0, byte(OpGt), 0x01, 0x80}},
		{"SetFeedMode", SetFeedMode(FeedPrecise), []byte{2}},
		{"SetMode", SetMode(FeedElastic), []byte{1}},
		{"Stop", Stop(), []byte{}},
	}
	for _, v := range tests {
		t.Run(v.Name, func(t *testing.T) {
			assert.Equal(t, v.Expect, append([]byte{}, v.Frame.Payload()...))
		})
	}
}

func TestRandomJumpPayload(t *testing.T) {
	f, err := RandomJump([]uint16{1, 0x0203})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0x00, 0x01, 0x02, 0x03}, f.Payload())

	_, err = RandomJump(nil)
	assert.Error(t, err)
}

func TestTextPayload(t *testing.T) {
	f, err := Text(10, 0x0102, 2, "OK")
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 0x02, 0x01, 2, 2, 'O', 'K'}, f.Payload())

	_, err = Text(0, 0, 0, string(bytes.Repeat([]byte{'a'}, 256)))
	var ce *ContractError
	assert.ErrorAs(t, err, &ce)
}

func TestSpriteDefValidatesBitmap(t *testing.T) {
	f, err := SpriteDef(1, 9, 2, []byte{0xFF, 0x80, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 9, 2, 0xFF, 0x80, 0x01, 0x00}, f.Payload())

	_, err = SpriteDef(1, 9, 2, []byte{0xFF})
	assert.Error(t, err)
	_, err = SpriteDef(1, 0, 2, nil)
	assert.Error(t, err)
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "TEXT", CmdText.String())
	assert.Equal(t, "CMD(0x7F)", Command(0x7F).String())
	assert.True(t, CmdLabel.Branching())
	assert.False(t, CmdFeed.Branching())
}
