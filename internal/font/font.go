// Package font maps requested text sizes onto the printer's built-in bitmap
// fonts and their one-byte encoding.
package font

import (
	"fmt"
	"math"
	"unicode"
	"unicode/utf8"
)

// Base is one of the firmware's bitmap fonts.
type Base int

const (
	Font5x7    Base = 0
	Font8x16   Base = 1
	FontMisaki Base = 2 // Misaki 8x8, the only font with CJK glyphs
)

const (
	MinScale = 1
	MaxScale = 15

	// LineSpacing is added below every rendered text block.
	LineSpacing = 2
	// DefaultSize is used when a text block gives no size.
	DefaultSize = 16
)

type metrics struct {
	advance, height int
}

var bases = map[Base]metrics{
	Font5x7:    {advance: 6, height: 7},
	Font8x16:   {advance: 8, height: 16},
	FontMisaki: {advance: 8, height: 8},
}

func (b Base) String() string {
	switch b {
	case Font5x7:
		return "5x7"
	case Font8x16:
		return "8x16"
	case FontMisaki:
		return "misaki"
	}
	return fmt.Sprintf("Base(%d)", int(b))
}

// Height is the glyph height in dots at scale 1.
func (b Base) Height() int { return bases[b].height }

// Spec is a resolved (base font, integer scale) pair.
type Spec struct {
	Base  Base
	Scale int
}

// Byte encodes the spec for the TEXT payload. Small 5x7/8x16 sizes keep the
// legacy 2-bit layout older firmware understands; everything else uses
// scale<<2 | base.
func (s Spec) Byte() byte {
	if s.Base <= Font8x16 && s.Scale <= 2 {
		return byte(int(s.Base)*2 + s.Scale - 1)
	}
	return byte(s.Scale<<2 | int(s.Base))
}

// PixelHeight is the glyph height in dots, without line spacing.
func (s Spec) PixelHeight() int { return s.Base.Height() * s.Scale }

// Height is the vertical space a rendered line of text occupies.
func (s Spec) Height() int { return s.PixelHeight() + LineSpacing }

// Width is the horizontal extent of text rendered with s.
func (s Spec) Width(text string) int {
	return utf8.RuneCountInString(text) * bases[s.Base].advance * s.Scale
}

func (s Spec) String() string { return fmt.Sprintf("%s x%d", s.Base, s.Scale) }

// DecodeByte inverts Spec.Byte.
func DecodeByte(b byte) Spec {
	if b <= 3 {
		return Spec{Base: Base(b / 2), Scale: int(b%2) + 1}
	}
	return Spec{Base: Base(b & 0x03), Scale: int(b >> 2)}
}

// Resolve picks the font whose rendered height is closest to size dots.
// Text containing CJK always resolves to Misaki.
func Resolve(size int, text string) Spec {
	if size <= 0 {
		size = DefaultSize
	}
	if NeedsMisaki(text) {
		return misaki(size)
	}
	best := Spec{Base: Font8x16, Scale: 1}
	bestDiff := math.MaxInt
	// 8x16 first so it wins ties.
	for _, b := range []Base{Font8x16, Font5x7} {
		for s := MinScale; s <= MaxScale; s++ {
			d := abs(b.Height()*s - size)
			if d < bestDiff {
				best, bestDiff = Spec{Base: b, Scale: s}, d
			}
		}
	}
	return best
}

// FromLegacy maps the legacy 0..3 font index. CJK text is moved to Misaki
// at the legacy font's rendered height.
func FromLegacy(index int, text string) (Spec, error) {
	if index < 0 || index > 3 {
		return Spec{}, fmt.Errorf("legacy font index %d out of range 0..3", index)
	}
	s := DecodeByte(byte(index))
	if NeedsMisaki(text) {
		return misaki(s.PixelHeight()), nil
	}
	return s, nil
}

func misaki(size int) Spec {
	s := int(math.Round(float64(size) / float64(FontMisaki.Height())))
	return Spec{Base: FontMisaki, Scale: clamp(s, MinScale, MaxScale)}
}

var cjk = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x30FF, Stride: 1}, // CJK punctuation, hiragana, katakana
		{Lo: 0x31F0, Hi: 0x31FF, Stride: 1}, // katakana phonetic extensions
		{Lo: 0x3400, Hi: 0x4DBF, Stride: 1}, // ideographs ext A
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1}, // unified ideographs
		{Lo: 0xF900, Hi: 0xFAFF, Stride: 1}, // compatibility ideographs
		{Lo: 0xFF66, Hi: 0xFF9F, Stride: 1}, // half-width katakana
	},
}

// NeedsMisaki reports whether text has a glyph only the Misaki font carries.
// Box drawing and general symbols are available in every font.
func NeedsMisaki(text string) bool {
	for _, r := range text {
		if unicode.Is(cjk, r) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
