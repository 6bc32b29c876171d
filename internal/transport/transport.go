// Package transport delivers compiled PGP streams to a device over a byte
// link, in order and in bounded chunks.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultChunkSize keeps each write inside the device's receive buffer.
const DefaultChunkSize = 64

var (
	ErrNotConnected     = errors.New("transport: not connected")
	ErrAlreadyConnected = errors.New("transport: already connected")
)

// Error is a link failure. Sent is the number of bytes the port accepted
// before the failure; nothing is resent automatically.
type Error struct {
	Op   string
	Sent int
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "send" {
		return fmt.Sprintf("transport: send failed after %d bytes: %v", e.Sent, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Port is an open byte link. Close must unblock a pending Read.
type Port interface {
	io.ReadWriteCloser
}

// Dialer opens a Port.
type Dialer func(ctx context.Context) (Port, error)

type drainer interface{ Drain() error }

// Transport owns at most one connection. Sends are serialised; a single read
// loop per connection hands device-originated bytes to the receiver.
type Transport struct {
	Name       string
	ChunkSize  int
	ChunkDelay time.Duration
	Log        zerolog.Logger

	dial Dialer

	sendMu sync.Mutex

	mu      sync.Mutex
	port    Port
	done    chan struct{}
	recv    func([]byte)
	readErr error
}

// New returns a disconnected transport that opens links with dial.
func New(name string, dial Dialer) *Transport {
	return &Transport{
		Name:      name,
		ChunkSize: DefaultChunkSize,
		Log:       log.With().Str("component", "transport").Str("port", name).Logger(),
		dial:      dial,
	}
}

// Connected reports whether a link is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// SetReceiver installs fn for device-originated data. fn runs on the read
// loop goroutine and must not block for long.
func (t *Transport) SetReceiver(fn func([]byte)) {
	t.mu.Lock()
	t.recv = fn
	t.mu.Unlock()
}

func (t *Transport) receiver() func([]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recv
}

// ReadErr is the error that ended the last read loop, if any.
func (t *Transport) ReadErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readErr
}

// Connect opens the link and starts its read loop.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return ErrAlreadyConnected
	}
	p, err := t.dial(ctx)
	if err != nil {
		return &Error{Op: "open", Err: err}
	}
	t.port = p
	t.readErr = nil
	t.done = make(chan struct{})
	go t.readLoop(p, t.done)
	t.Log.Info().Msg("connected")
	return nil
}

// Disconnect closes the link and waits for the read loop to exit. A Send in
// flight fails with the byte count it reached.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	p, done := t.port, t.done
	t.port, t.done = nil, nil
	t.mu.Unlock()
	if p == nil {
		return ErrNotConnected
	}
	err := p.Close()
	<-done
	t.Log.Info().Msg("disconnected")
	if err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}

func (t *Transport) current() Port {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

func (t *Transport) readLoop(p Port, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 256)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			if fn := t.receiver(); fn != nil {
				data := make([]byte, n)
				copy(data, buf[:n])
				fn(data)
			}
		}
		if err != nil {
			t.mu.Lock()
			closing := t.port != p
			if !closing {
				t.readErr = err
			}
			t.mu.Unlock()
			if !closing {
				t.Log.Warn().Err(err).Msg("read loop stopped")
			}
			return
		}
	}
}

// Send writes data in order, ChunkSize bytes at a time, and returns the
// number of bytes the port accepted. ctx is checked between chunks.
func (t *Transport) Send(ctx context.Context, data []byte) (int, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	p := t.current()
	if p == nil {
		return 0, &Error{Op: "send", Err: ErrNotConnected}
	}
	size := t.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	sent := 0
	for sent < len(data) {
		if err := ctx.Err(); err != nil {
			return sent, &Error{Op: "send", Sent: sent, Err: err}
		}
		end := min(sent+size, len(data))
		n, err := p.Write(data[sent:end])
		sent += n
		if err == nil && n < end-(sent-n) {
			err = io.ErrShortWrite
		}
		if err != nil {
			t.Log.Warn().Err(err).Int("sent", sent).Int("total", len(data)).Msg("send failed")
			return sent, &Error{Op: "send", Sent: sent, Err: err}
		}
		if t.ChunkDelay > 0 && sent < len(data) {
			select {
			case <-ctx.Done():
				return sent, &Error{Op: "send", Sent: sent, Err: ctx.Err()}
			case <-time.After(t.ChunkDelay):
			}
		}
	}
	if d, ok := p.(drainer); ok {
		if err := d.Drain(); err != nil {
			return sent, &Error{Op: "send", Sent: sent, Err: err}
		}
	}
	t.Log.Debug().Int("bytes", sent).Msg("sent")
	return sent, nil
}
