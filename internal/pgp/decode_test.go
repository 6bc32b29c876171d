package pgp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coreman2200/funtimes-pgp/internal/pgp"
)

func stream(frames ...Frame) []byte {
	var b []byte
	for _, f := range frames {
		b = f.AppendTo(b)
	}
	return b
}

func TestDecodeStream(t *testing.T) {
	txt, err := Text(0, 0, 2, "hi")
	require.NoError(t, err)
	b := stream(txt, Feed(10), Stop())

	frames, err := Decode(b)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, CmdText, frames[0].Command())
	assert.Equal(t, CmdFeed, frames[1].Command())
	assert.Equal(t, uint16(10), LE16(frames[1].Payload(), 0))
	assert.Equal(t, CmdStop, frames[2].Command())
}

func TestDecodeDetectsCorruption(t *testing.T) {
	b := stream(Feed(10))
	b[4] ^= 0x01
	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = Decode(stream(Feed(10))[:4])
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = Decode([]byte{0x00})
	assert.ErrorIs(t, err, ErrBadSync)
}

func TestDecoderChunked(t *testing.T) {
	b := append([]byte{0x00, 0x13}, stream(SyncMarker(5), Feed(3), PollInput())...)
	var d Decoder
	var got []Frame
	for i := 0; i < len(b); i += 3 {
		end := i + 3
		if end > len(b) {
			end = len(b)
		}
		got = append(got, d.Feed(b[i:end])...)
	}
	require.Len(t, got, 3)
	assert.Equal(t, CmdSync, got[0].Command())
	assert.Equal(t, CmdPollInput, got[2].Command())
	assert.Equal(t, 2, d.Skipped)
	assert.Equal(t, 0, d.Pending())
}

func TestDecoderDropsBadChecksum(t *testing.T) {
	bad := stream(Feed(1))
	bad[len(bad)-1] ^= 0xFF
	var d Decoder
	got := d.Feed(append(bad, stream(Stop())...))
	require.Len(t, got, 1)
	assert.Equal(t, CmdStop, got[0].Command())
	assert.Equal(t, 1, d.Dropped)
}

func TestDecoderResyncsPastImplausibleLength(t *testing.T) {
	b := append([]byte{Sync, 0x50, 0xFF, 0xFF}, stream(Stop())...)
	var d Decoder
	got := d.Feed(b)
	require.Len(t, got, 1, "a stray sync must not stall the stream")
	assert.Equal(t, CmdStop, got[0].Command())
	assert.Equal(t, 4, d.Skipped)
	assert.Equal(t, 0, d.Pending())

	big, err := NewFrame(CmdText, make([]byte, 20))
	require.NoError(t, err)
	d = Decoder{MaxPayload: 8}
	got = d.Feed(stream(big, Feed(2)))
	require.Len(t, got, 1)
	assert.Equal(t, CmdFeed, got[0].Command())
}
