package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/uart"
	"periph.io/x/conn/v3/uart/uartreg"
	"periph.io/x/host/v3"
)

// UART dials a board UART through periph's registry. An empty name picks the
// first registered port.
func UART(name string, baud int) Dialer {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return func(ctx context.Context) (Port, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host init: %w", err)
		}
		pc, err := uartreg.Open(name)
		if err != nil {
			return nil, err
		}
		c, err := pc.Connect(physic.Frequency(baud)*physic.Hertz, uart.One, uart.NoParity, uart.NoFlow, 8)
		if err != nil {
			pc.Close()
			return nil, err
		}
		return newUARTPort(pc, c), nil
	}
}

// uartPort adapts a periph connection to a byte stream. Reads are one byte
// at a time since Tx blocks until the buffer is full.
//
// Writes never overlap each other. A full-duplex link runs at most one read
// alongside them. A half-duplex link cannot listen without blocking writes,
// so its Read waits for Close and reports io.EOF.
type uartPort struct {
	pc uart.PortCloser
	c  conn.Conn

	wmu    sync.Mutex
	rmu    sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func newUARTPort(pc uart.PortCloser, c conn.Conn) *uartPort {
	return &uartPort{pc: pc, c: c, closed: make(chan struct{})}
}

func (u *uartPort) Write(p []byte) (int, error) {
	u.wmu.Lock()
	defer u.wmu.Unlock()
	if err := u.c.Tx(p, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (u *uartPort) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if u.c.Duplex() != conn.Full {
		<-u.closed
		return 0, io.EOF
	}
	u.rmu.Lock()
	defer u.rmu.Unlock()
	if err := u.c.Tx(nil, p[:1]); err != nil {
		return 0, err
	}
	return 1, nil
}

func (u *uartPort) Close() error {
	u.once.Do(func() { close(u.closed) })
	return u.pc.Close()
}

func (u *uartPort) String() string { return u.c.String() }
