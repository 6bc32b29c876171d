package transport

import (
	"context"
	"io"
	"os"
	"sync"
)

// File dials a dry-run port that appends everything sent to path. It never
// produces device data.
func File(path string) Dialer {
	return func(ctx context.Context) (Port, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return &filePort{f: f, closed: make(chan struct{})}, nil
	}
}

type filePort struct {
	f      *os.File
	once   sync.Once
	closed chan struct{}
}

func (p *filePort) Write(b []byte) (int, error) { return p.f.Write(b) }

// Read blocks until Close.
func (p *filePort) Read([]byte) (int, error) {
	<-p.closed
	return 0, io.EOF
}

func (p *filePort) Drain() error { return p.f.Sync() }

func (p *filePort) Close() error {
	err := os.ErrClosed
	p.once.Do(func() {
		close(p.closed)
		err = p.f.Close()
	})
	return err
}
