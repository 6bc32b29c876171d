// Package raster turns images and simple shapes into 72-byte printer rows.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/coreman2200/funtimes-pgp/internal/pgp"
)

// Width is the printable width in dots.
const Width = pgp.LineDots

// MaxHeight bounds how many rows a single bitmap may grow to.
const MaxHeight = 4096

// ErrTooTall is returned when a shape or image would exceed MaxHeight rows.
var ErrTooTall = fmt.Errorf("raster: taller than %d rows", MaxHeight)

// Bitmap is a growable 1-bit canvas exactly one printer line wide.
type Bitmap struct {
	rows [][]byte
}

// New returns a blank bitmap h rows tall.
func New(h int) *Bitmap {
	b := &Bitmap{}
	b.grow(h)
	return b
}

func (b *Bitmap) grow(h int) {
	for len(b.rows) < h {
		b.rows = append(b.rows, make([]byte, pgp.LineBytes))
	}
}

// Height is the current row count.
func (b *Bitmap) Height() int { return len(b.rows) }

// Set turns on dot (x, y), growing the bitmap downwards if needed.
// Dots outside the line width or outside rows 0..MaxHeight-1 are dropped.
func (b *Bitmap) Set(x, y int) {
	if x < 0 || x >= Width || y < 0 || y >= MaxHeight {
		return
	}
	b.grow(y + 1)
	b.rows[y][x>>3] |= 0x80 >> (x & 7)
}

// Get reports whether dot (x, y) is on.
func (b *Bitmap) Get(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= len(b.rows) {
		return false
	}
	return b.rows[y][x>>3]&(0x80>>(x&7)) != 0
}

func (b *Bitmap) hline(x0, x1, y int) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0, x1 = max(x0, 0), min(x1, Width-1)
	for x := x0; x <= x1; x++ {
		b.Set(x, y)
	}
}

// Rows returns the packed rows. The slices are shared with b.
func (b *Bitmap) Rows() [][]byte { return b.rows }

// inBounds reports whether every coordinate lies within MaxHeight of the
// origin, which keeps shape loops short.
func inBounds(vs ...int) bool {
	for _, v := range vs {
		if v < -MaxHeight || v > MaxHeight {
			return false
		}
	}
	return true
}

// Circle draws a circle of radius r centred at (cx, cy) using the midpoint
// algorithm.
func Circle(cx, cy, r int, filled bool) ([][]byte, error) {
	if r < 0 {
		return nil, fmt.Errorf("raster: negative radius %d", r)
	}
	if !inBounds(cx, cy, r) || cy+r+1 > MaxHeight {
		return nil, ErrTooTall
	}
	b := New(cy + r + 1)
	x, y, d := r, 0, 1-r
	for x >= y {
		if filled {
			b.hline(cx-x, cx+x, cy+y)
			b.hline(cx-x, cx+x, cy-y)
			b.hline(cx-y, cx+y, cy+x)
			b.hline(cx-y, cx+y, cy-x)
		} else {
			for _, p := range [][2]int{
				{x, y}, {y, x}, {-y, x}, {-x, y},
				{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
			} {
				b.Set(cx+p[0], cy+p[1])
			}
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
	return b.Rows(), nil
}

// Line draws a 1-dot segment between two points with Bresenham's algorithm.
func Line(x0, y0, x1, y1 int) ([][]byte, error) {
	if !inBounds(x0, y0, x1, y1) || max(y0, y1)+1 > MaxHeight {
		return nil, ErrTooTall
	}
	b := New(max(y0, y1) + 1)
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		b.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
	return b.Rows(), nil
}

// Pack converts rows of '#'/'.' characters into a packed bitmap with
// (width+7)/8 bytes per row. Any character other than '.', ' ' or '0' is ink.
func Pack(rows []string) (bitmap []byte, width, height int, err error) {
	if len(rows) == 0 {
		return nil, 0, 0, errors.New("raster: no rows")
	}
	width = len(rows[0])
	for i, r := range rows {
		if len(r) != width {
			return nil, 0, 0, fmt.Errorf("raster: row %d is %d wide, want %d", i, len(r), width)
		}
	}
	stride := pgp.SpriteStride(width)
	bitmap = make([]byte, stride*len(rows))
	for y, r := range rows {
		for x := 0; x < width; x++ {
			if !strings.ContainsRune(". 0", rune(r[x])) {
				bitmap[y*stride+(x>>3)] |= 0x80 >> (x & 7)
			}
		}
	}
	return bitmap, width, len(rows), nil
}

// Options controls image conversion.
type Options struct {
	// Width is the target width in dots, 0 for the full line minus X.
	Width int
	// X is the left offset in dots.
	X int
	// Threshold is the gray level below which a dot is inked; 0 means 128.
	Threshold uint8
	// Dither uses Floyd-Steinberg error diffusion instead of a threshold.
	Dither bool
}

// Open decodes a PNG, JPEG, GIF or BMP file.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// FromImage scales img to the requested width, keeping its aspect ratio, and
// returns one packed row per output line.
func FromImage(img image.Image, o Options) ([][]byte, error) {
	if o.X < 0 || o.X >= Width {
		return nil, fmt.Errorf("raster: x offset %d outside 0..%d", o.X, Width-1)
	}
	w := o.Width
	if w <= 0 || o.X+w > Width {
		w = Width - o.X
	}
	sb := img.Bounds()
	if sb.Empty() {
		return nil, errors.New("raster: empty image")
	}
	h := (sb.Dy()*w + sb.Dx()/2) / sb.Dx()
	if h < 1 {
		h = 1
	}
	if h > MaxHeight {
		return nil, ErrTooTall
	}

	dr := image.Rect(0, 0, w, h)
	gray := image.NewGray(dr)
	draw.Draw(gray, dr, image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(gray, dr, img, sb, draw.Over, nil)

	ink := func(x, y int) bool {
		t := o.Threshold
		if t == 0 {
			t = 128
		}
		return gray.GrayAt(x, y).Y < t
	}
	if o.Dither {
		pal := image.NewPaletted(dr, color.Palette{color.Black, color.White})
		draw.FloydSteinberg.Draw(pal, dr, gray, image.Point{})
		ink = func(x, y int) bool { return pal.ColorIndexAt(x, y) == 0 }
	}

	b := New(h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ink(x, y) {
				b.Set(o.X+x, y)
			}
		}
	}
	return b.Rows(), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
