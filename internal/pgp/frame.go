package pgp

import (
	"encoding/binary"
	"fmt"
)

// Polynomial is the CRC-8 generator (x^8 + x^2 + x + 1), MSB first, init 0,
// no final XOR.
const Polynomial byte = 0x07

var crcTable [256]byte

func init() {
	for v := 0; v < 256; v++ {
		c := byte(v)
		for i := 0; i < 8; i++ {
			if c&0x80 != 0 {
				c = c<<1 ^ Polynomial
			} else {
				c <<= 1
			}
		}
		crcTable[v] = c
	}
}

// Checksum returns the CRC-8 residual of data.
func Checksum(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}

// ContractError reports input the protocol cannot represent: an oversized
// payload, a raster line of the wrong width, a malformed sprite bitmap. It is
// never worth retrying.
type ContractError struct {
	Op     string
	Detail string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("pgp: %s: %s", e.Op, e.Detail)
}

func contractf(op, format string, a ...any) error {
	return &ContractError{Op: op, Detail: fmt.Sprintf(format, a...)}
}

// Frame is one checksummed protocol unit. The zero value is not useful; use
// NewFrame or one of the command builders.
type Frame struct {
	cmd     Command
	payload []byte
}

// NewFrame copies payload into a new frame.
func NewFrame(cmd Command, payload []byte) (Frame, error) {
	if len(payload) > MaxPayload {
		return Frame{}, contractf("frame", "%s payload is %d bytes, limit %d", cmd, len(payload), MaxPayload)
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return Frame{cmd: cmd, payload: p}, nil
}

// frame wraps a payload the builders own. Payload sizes are fixed there, so
// the length check cannot fail.
func frame(cmd Command, payload []byte) Frame {
	return Frame{cmd: cmd, payload: payload}
}

// Command returns the frame's command id.
func (f Frame) Command() Command { return f.cmd }

// Payload returns the frame payload. Callers must not modify it.
func (f Frame) Payload() []byte { return f.payload }

// Len is the encoded size of the frame in bytes.
func (f Frame) Len() int { return headerSize + len(f.payload) + trailerSize }

// AppendTo appends the encoded frame to dst.
func (f Frame) AppendTo(dst []byte) []byte {
	start := len(dst)
	dst = append(dst, Sync, byte(f.cmd))
	dst = writeLE16(dst, uint16(len(f.payload)))
	dst = append(dst, f.payload...)
	return append(dst, Checksum(dst[start+1:]))
}

// Bytes encodes the frame.
func (f Frame) Bytes() []byte {
	return f.AppendTo(make([]byte, 0, f.Len()))
}

// Checksum returns the trailing checksum byte the frame encodes with.
func (f Frame) Checksum() byte {
	b := f.Bytes()
	return b[len(b)-1]
}

func (f Frame) String() string {
	return fmt.Sprintf("%s[%d]", f.cmd, len(f.payload))
}

// Encode builds and encodes a frame in one step.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	f, err := NewFrame(cmd, payload)
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// writeLE16 is the byte order of content commands: speed, heat, feed,
// coordinates, sizes and the frame length itself.
func writeLE16(dst []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(dst, v)
}

// writeBE16 is the byte order of the branching-control family: label ids,
// jump targets, variable values and fader thresholds.
func writeBE16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

// LE16 reads a little-endian field at off.
func LE16(p []byte, off int) uint16 { return binary.LittleEndian.Uint16(p[off:]) }

// BE16 reads a big-endian field at off.
func BE16(p []byte, off int) uint16 { return binary.BigEndian.Uint16(p[off:]) }
