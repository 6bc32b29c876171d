// Package indicator shows the daemon's link state on a strip of WS2812
// pixels driven over SPI.
package indicator

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

type State int

const (
	Idle State = iota
	Connected
	Printing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connected:
		return "connected"
	case Printing:
		return "printing"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var palette = map[State]color.NRGBA{
	Idle:      {R: 0x10, G: 0x10, B: 0x10, A: 0xFF},
	Connected: {G: 0x60, A: 0xFF},
	Printing:  {B: 0xA0, A: 0xFF},
	Failed:    {R: 0xC0, A: 0xFF},
}

// FPS is the refresh rate of the printing pulse.
const FPS = 30

// Indicator is safe for concurrent use. Without a drawer it only logs.
type Indicator struct {
	Log zerolog.Logger

	mu     sync.Mutex
	drawer display.Drawer
	closer io.Closer
	img    *image.NRGBA
	state  State
	level  float64
}

// New wraps d. A nil d gives a log-only indicator.
func New(d display.Drawer) *Indicator {
	in := &Indicator{
		Log:    log.With().Str("component", "indicator").Logger(),
		drawer: d,
		level:  1,
	}
	if d != nil {
		in.img = image.NewNRGBA(d.Bounds())
	}
	return in
}

// Open drives pixels WS2812 LEDs on SPI port dev. When no SPI port is found
// it falls back to a log-only indicator.
func Open(dev string, pixels int, speedHz int) (*Indicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	p, err := spireg.Open(dev)
	if err != nil {
		in := New(nil)
		in.Log.Warn().Err(err).Msg("no SPI port, indicator is log only")
		return in, nil
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: pixels,
		Channels:  3,
		Freq:      physic.Frequency(speedHz) * physic.Hertz,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	d.Halt()
	in := New(d)
	in.closer = p
	return in, nil
}

func (in *Indicator) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Set switches to s and redraws.
func (in *Indicator) Set(s State) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if s == in.state && in.level == 1 {
		return nil
	}
	in.Log.Debug().Stringer("from", in.state).Stringer("to", s).Msg("state")
	in.state = s
	in.level = 1
	return in.render()
}

func (in *Indicator) render() error {
	if in.drawer == nil {
		return nil
	}
	c := palette[in.state]
	c.R = uint8(float64(c.R) * in.level)
	c.G = uint8(float64(c.G) * in.level)
	c.B = uint8(float64(c.B) * in.level)
	draw.Draw(in.img, in.img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return in.drawer.Draw(in.drawer.Bounds(), in.img, image.Point{})
}

// pulse sets the brightness for elapsed time t while printing.
func (in *Indicator) pulse(t time.Duration) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != Printing {
		return nil
	}
	in.level = 0.55 + 0.45*math.Cos(2*math.Pi*t.Seconds())
	return in.render()
}

// Run pulses the pixels while printing until ctx is done.
func (in *Indicator) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / FPS)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			if err := in.pulse(t.Sub(start)); err != nil {
				in.Log.Warn().Err(err).Msg("draw failed")
			}
		}
	}
}

// Close blanks the pixels and releases the port.
func (in *Indicator) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.drawer == nil {
		return nil
	}
	err := in.drawer.Halt()
	if in.closer != nil {
		if cerr := in.closer.Close(); err == nil {
			err = cerr
		}
	}
	in.drawer = nil
	return err
}
