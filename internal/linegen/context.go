// Package linegen runs per-scanline generator callbacks for dynamic sections
// and hands each produced raster line to the compiler.
package linegen

import "github.com/coreman2200/funtimes-pgp/internal/pgp"

// Width is the number of addressable dots on one line.
const Width = pgp.LineDots

// LineContext is what a generator sees for one raster line. The buffer starts
// zeroed; bit 7 of byte 0 is dot 0.
type LineContext struct {
	Index int
	Max   int
	Vars  *Vars

	buf [pgp.LineBytes]byte

	done     bool
	jumped   bool
	next     string
	speed    int
	speedSet bool
}

func newLineContext(index, max int, vars *Vars) *LineContext {
	return &LineContext{Index: index, Max: max, Vars: vars}
}

// Progress is Index/Max in [0, 1).
func (c *LineContext) Progress() float64 {
	if c.Max <= 0 {
		return 0
	}
	return float64(c.Index) / float64(c.Max)
}

// Set turns dot x on. Out-of-range dots are ignored.
func (c *LineContext) Set(x int) {
	if x < 0 || x >= Width {
		return
	}
	c.buf[x>>3] |= 0x80 >> (x & 7)
}

// Clear turns dot x off.
func (c *LineContext) Clear(x int) {
	if x < 0 || x >= Width {
		return
	}
	c.buf[x>>3] &^= 0x80 >> (x & 7)
}

// Get reports whether dot x is on.
func (c *LineContext) Get(x int) bool {
	if x < 0 || x >= Width {
		return false
	}
	return c.buf[x>>3]&(0x80>>(x&7)) != 0
}

// HLine turns on every dot from x0 to x1 inclusive, clipped to the line.
func (c *LineContext) HLine(x0, x1 int) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 >= Width {
		x1 = Width - 1
	}
	for x := x0; x <= x1; {
		if x&7 == 0 && x+7 <= x1 {
			c.buf[x>>3] = 0xFF
			x += 8
			continue
		}
		c.Set(x)
		x++
	}
}

// Fill sets every byte of the line to v.
func (c *LineContext) Fill(v byte) {
	for i := range c.buf {
		c.buf[i] = v
	}
}

// Invert flips every dot.
func (c *LineContext) Invert() {
	for i := range c.buf {
		c.buf[i] = ^c.buf[i]
	}
}

// Bytes returns a copy of the line.
func (c *LineContext) Bytes() []byte {
	out := make([]byte, pgp.LineBytes)
	copy(out, c.buf[:])
	return out
}

// Done stops the section after this line.
func (c *LineContext) Done() { c.done = true }

// Goto stops the section after this line and records a request to continue
// with section id. Only the first request counts.
func (c *LineContext) Goto(id string) {
	if c.jumped {
		return
	}
	c.jumped = true
	c.next = id
}

// SetSpeed overrides the feed speed for this line only. Only the first call
// counts. The section's auto speed is restored on the next line; a section
// without one keeps the override until another line sets a speed.
func (c *LineContext) SetSpeed(v int) {
	if c.speedSet {
		return
	}
	c.speedSet = true
	c.speed = v
}
