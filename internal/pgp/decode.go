package pgp

import (
	"errors"
	"fmt"
)

var (
	ErrBadSync    = errors.New("pgp: missing sync byte")
	ErrShortFrame = errors.New("pgp: truncated frame")
	ErrChecksum   = errors.New("pgp: checksum mismatch")
)

// Decode splits a complete stream into frames, verifying every checksum.
func Decode(stream []byte) ([]Frame, error) {
	var out []Frame
	for off := 0; off < len(stream); {
		f, n, err := parse(stream[off:])
		if err != nil {
			return out, fmt.Errorf("offset %d: %w", off, err)
		}
		out = append(out, f)
		off += n
	}
	return out, nil
}

// parse reads one frame from the start of b.
func parse(b []byte) (Frame, int, error) {
	if len(b) == 0 || b[0] != Sync {
		return Frame{}, 0, ErrBadSync
	}
	if len(b) < headerSize+trailerSize {
		return Frame{}, 0, ErrShortFrame
	}
	n := int(LE16(b, 2))
	total := headerSize + n + trailerSize
	if len(b) < total {
		return Frame{}, 0, ErrShortFrame
	}
	if got, want := b[total-1], Checksum(b[1:total-1]); got != want {
		return Frame{}, 0, fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrChecksum, got, want)
	}
	p := make([]byte, n)
	copy(p, b[headerSize:headerSize+n])
	return Frame{cmd: Command(b[1]), payload: p}, total, nil
}

// DeviceMaxPayload is the largest payload a Decoder accepts by default.
// Device reports are a few bytes; a header claiming more is a stray sync.
const DeviceMaxPayload = 1024

// Decoder reassembles frames from a byte stream that arrives in arbitrary
// chunks, such as the device's serial output. Garbage before a sync byte,
// headers with an implausible length and frames with a bad checksum are
// skipped.
type Decoder struct {
	// MaxPayload caps the length field; 0 means DeviceMaxPayload.
	MaxPayload int

	buf     []byte
	Dropped int // frames discarded for a bad checksum
	Skipped int // bytes discarded while hunting for sync
}

func (d *Decoder) maxPayload() int {
	if d.MaxPayload > 0 {
		return d.MaxPayload
	}
	return DeviceMaxPayload
}

// Feed appends p and returns every frame now complete.
func (d *Decoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)
	var out []Frame
	for len(d.buf) > 0 {
		if d.buf[0] != Sync || (len(d.buf) >= headerSize && int(LE16(d.buf, 2)) > d.maxPayload()) {
			d.buf = d.buf[1:]
			d.Skipped++
			continue
		}
		f, n, err := parse(d.buf)
		switch {
		case err == nil:
			out = append(out, f)
			d.buf = d.buf[n:]
		case errors.Is(err, ErrShortFrame):
			return out
		default:
			d.Dropped++
			d.buf = d.buf[1:]
		}
	}
	return out
}

// Pending is the number of buffered bytes not yet forming a frame.
func (d *Decoder) Pending() int { return len(d.buf) }
