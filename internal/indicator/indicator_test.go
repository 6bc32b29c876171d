package indicator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
	"periph.io/x/devices/v3/nrzled"
)

type fakeDrawer struct {
	draws  int
	last   color.NRGBA
	halted bool
}

func (f *fakeDrawer) String() string          { return "fake" }
func (f *fakeDrawer) ColorModel() color.Model { return color.NRGBAModel }
func (f *fakeDrawer) Bounds() image.Rectangle { return image.Rect(0, 0, 4, 1) }

func (f *fakeDrawer) Halt() error {
	f.halted = true
	return nil
}

func (f *fakeDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.draws++
	f.last = color.NRGBAModel.Convert(src.At(r.Min.X, r.Min.Y)).(color.NRGBA)
	return nil
}

var TestStateColors = []struct {
	State  State
	Expect color.NRGBA
}{
	{Connected, palette[Connected]},
	{Printing, palette[Printing]},
	{Failed, palette[Failed]},
	{Idle, palette[Idle]},
}

func TestSetDrawsStateColor(t *testing.T) {
	d := &fakeDrawer{}
	in := New(d)
	for _, v := range TestStateColors {
		t.Run(v.State.String(), func(t *testing.T) {
			require.NoError(t, in.Set(v.State))
			assert.Equal(t, v.Expect, d.last)
			assert.Equal(t, v.State, in.State())
		})
	}
	n := d.draws
	require.NoError(t, in.Set(Idle))
	assert.Equal(t, n, d.draws, "same state does not redraw")

	require.NoError(t, in.Close())
	assert.True(t, d.halted)
}

func TestPulseOnlyWhilePrinting(t *testing.T) {
	d := &fakeDrawer{}
	in := New(d)
	require.NoError(t, in.Set(Connected))
	require.NoError(t, in.pulse(250*time.Millisecond))
	assert.Equal(t, 1, d.draws)

	require.NoError(t, in.Set(Printing))
	require.NoError(t, in.pulse(500*time.Millisecond))
	assert.Equal(t, 3, d.draws)
	assert.Less(t, d.last.B, palette[Printing].B)
}

func TestRunStopsWithContext(t *testing.T) {
	in := New(&fakeDrawer{})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, in.Run(ctx))
}

func TestLogOnly(t *testing.T) {
	in := New(nil)
	assert.NoError(t, in.Set(Printing))
	assert.NoError(t, in.pulse(time.Second))
	assert.NoError(t, in.Close())
}

func TestNRZOverSPI(t *testing.T) {
	buf := bytes.Buffer{}
	d, err := nrzled.NewSPI(spitest.NewRecordRaw(&buf), &nrzled.Opts{NumPixels: 2, Channels: 3, Freq: 2500 * physic.KiloHertz})
	if err != nil {
		t.Fatal(err)
	}
	in := New(d)
	if err := in.Set(Failed); err != nil {
		t.Fatal(err)
	}
	red := append([]byte(nil), buf.Bytes()...)
	if len(red) == 0 {
		t.Fatal("nothing written to the SPI port")
	}
	buf.Reset()
	if err := in.Set(Connected); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(red, buf.Bytes()) {
		t.Fatalf("state change did not change the stream: %x", red)
	}
}
