package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
)

// fakePort records writes through conntest and serves reads from rx.
type fakePort struct {
	rec     conntest.Record
	rx      chan []byte
	closed  chan struct{}
	once    sync.Once
	failAt  int // write index that fails, -1 for never
	partial bool
	writes  int
}

func newFakePort() *fakePort {
	return &fakePort{rx: make(chan []byte, 4), closed: make(chan struct{}), failAt: -1}
}

func (f *fakePort) Write(p []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, os.ErrClosed
	default:
	}
	if f.writes == f.failAt {
		if f.partial {
			f.rec.Tx(p[:len(p)/2], nil)
			return len(p) / 2, nil
		}
		return 0, errors.New("cable pulled")
	}
	f.writes++
	if err := f.rec.Tx(p, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	select {
	case b := <-f.rx:
		return copy(p, b), nil
	case <-f.closed:
		return 0, io.EOF
	}
}

func (f *fakePort) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakePort) stream() []byte {
	var out []byte
	for _, op := range f.rec.Ops {
		out = append(out, op.W...)
	}
	return out
}

func dialFake(p *fakePort) Dialer {
	return func(context.Context) (Port, error) { return p, nil }
}

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestSendChunksInOrder(t *testing.T) {
	p := newFakePort()
	tr := New("fake", dialFake(p))
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	data := seq(150)
	n, err := tr.Send(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	require.Len(t, p.rec.Ops, 3)
	assert.Len(t, p.rec.Ops[0].W, 64)
	assert.Len(t, p.rec.Ops[1].W, 64)
	assert.Len(t, p.rec.Ops[2].W, 22)
	assert.Equal(t, data, p.stream())
}

func TestSendReportsBytesConfirmed(t *testing.T) {
	p := newFakePort()
	p.failAt = 2
	tr := New("fake", dialFake(p))
	tr.ChunkSize = 32
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	n, err := tr.Send(context.Background(), seq(200))
	assert.Equal(t, 64, n)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "send", te.Op)
	assert.Equal(t, 64, te.Sent)
	assert.Contains(t, err.Error(), "after 64 bytes")

	p2 := newFakePort()
	p2.failAt, p2.partial = 1, true
	tr2 := New("short", dialFake(p2))
	tr2.ChunkSize = 10
	require.NoError(t, tr2.Connect(context.Background()))
	defer tr2.Disconnect()
	n, err = tr2.Send(context.Background(), seq(30))
	assert.Equal(t, 15, n)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestNotConnected(t *testing.T) {
	tr := New("none", dialFake(newFakePort()))
	n, err := tr.Send(context.Background(), []byte{1})
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, tr.Disconnect(), ErrNotConnected)

	failing := New("broken", func(context.Context) (Port, error) { return nil, errors.New("no such device") })
	err = failing.Connect(context.Background())
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "open", te.Op)
	assert.False(t, failing.Connected())
}

func TestConnectTwice(t *testing.T) {
	tr := New("fake", dialFake(newFakePort()))
	require.NoError(t, tr.Connect(context.Background()))
	assert.ErrorIs(t, tr.Connect(context.Background()), ErrAlreadyConnected)
	require.NoError(t, tr.Disconnect())
	assert.False(t, tr.Connected())
}

func TestReceiverAndDisconnectStopsReadLoop(t *testing.T) {
	p := newFakePort()
	tr := New("fake", dialFake(p))
	got := make(chan []byte, 1)
	tr.SetReceiver(func(b []byte) { got <- b })
	require.NoError(t, tr.Connect(context.Background()))

	p.rx <- []byte{0xAA, 0x35}
	select {
	case b := <-got:
		assert.Equal(t, []byte{0xAA, 0x35}, b)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver not called")
	}

	done := make(chan struct{})
	go func() {
		assert.NoError(t, tr.Disconnect())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not stop the read loop")
	}
	assert.NoError(t, tr.ReadErr(), "closing is not a read failure")

	n, err := tr.Send(context.Background(), []byte{1})
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendHonoursContextBetweenChunks(t *testing.T) {
	p := newFakePort()
	tr := New("fake", dialFake(p))
	tr.ChunkSize = 8
	tr.ChunkDelay = 100 * time.Millisecond
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	n, err := tr.Send(ctx, seq(64))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 16, n)
	assert.Equal(t, seq(16), p.stream())
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	p := newFakePort()
	tr := New("fake", dialFake(p))
	tr.ChunkSize = 4
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	a := bytes.Repeat([]byte{'a'}, 64)
	b := bytes.Repeat([]byte{'b'}, 64)
	var wg sync.WaitGroup
	for _, d := range [][]byte{a, b} {
		wg.Add(1)
		go func(d []byte) {
			defer wg.Done()
			_, err := tr.Send(context.Background(), d)
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	s := p.stream()
	require.Len(t, s, 128)
	assert.True(t, bytes.Equal(s, append(append([]byte{}, a...), b...)) ||
		bytes.Equal(s, append(append([]byte{}, b...), a...)), "streams interleaved: %q", s)
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pgp")
	dial, err := Open("file", path, 0)
	require.NoError(t, err)
	tr := New(path, dial)
	require.NoError(t, tr.Connect(context.Background()))
	_, err = tr.Send(context.Background(), seq(100))
	require.NoError(t, err)
	require.NoError(t, tr.Disconnect())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, seq(100), b)
}

func TestOpenSelectsBackend(t *testing.T) {
	for _, v := range []struct {
		Backend, Port string
		Err           bool
	}{
		{"serial", "/dev/ttyUSB0", false},
		{"", "COM3", false},
		{"serial", "", true},
		{"uart", "", false},
		{"file", "", true},
		{"bluetooth", "x", true},
	} {
		_, err := Open(v.Backend, v.Port, 9600)
		assert.Equal(t, v.Err, err != nil, "%s %q", v.Backend, v.Port)
	}
}
