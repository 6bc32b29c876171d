package linegen

import (
	"fmt"
	"math"
)

// Solid fills every line with one byte pattern.
// Params:
//   - "value" (0..255, default 255)
type Solid struct{}

func (Solid) Name() string      { return "solid" }
func (Solid) Presets() []string { return []string{"black", "grey", "light"} }

func (Solid) ApplyPreset(name string, p Params) {
	switch name {
	case "black":
		p["value"] = 0xFF
	case "grey":
		p["value"] = 0xAA
	case "light":
		p["value"] = 0x88
	}
}

func (Solid) New(p Params) (*Generator, error) {
	v := p.Get("value", 0xFF)
	if v < 0 || v > 0xFF {
		return nil, fmt.Errorf("solid: value %v out of range 0..255", v)
	}
	b := byte(v)
	return &Generator{Line: func(lc *LineContext) error {
		lc.Fill(b)
		return nil
	}}, nil
}

// bayer4 is the 4x4 ordered-dither threshold matrix.
var bayer4 = [4][4]float64{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

func dither(density float64, x, y int) bool {
	return density > (bayer4[y&3][x&3]+0.5)/16
}

var easeNames = []string{"linear", "smooth", "cubic", "in", "out"}

// Gradient is an ordered-dither density ramp.
// Params:
//   - "from", "to" (density 0..1; defaults 0 and 1)
//   - "ease" (0=linear,1=smooth,2=cubic,3=in,4=out)
//   - "axis" (0=along the feed, 1=across the line)
type Gradient struct{}

func (Gradient) Name() string      { return "gradient" }
func (Gradient) Presets() []string { return []string{"fade-in", "fade-out", "across"} }

func (Gradient) ApplyPreset(name string, p Params) {
	switch name {
	case "fade-in":
		p["from"], p["to"] = 0, 1
	case "fade-out":
		p["from"], p["to"] = 1, 0
	case "across":
		p["axis"] = 1
	}
}

func (Gradient) New(p Params) (*Generator, error) {
	ei := int(p.Get("ease", 0))
	if ei < 0 || ei >= len(easeNames) {
		return nil, fmt.Errorf("gradient: ease %d out of range", ei)
	}
	env := Ramp(clamp01(p.Get("from", 0)), clamp01(p.Get("to", 1)), easeNames[ei])
	across := p.Get("axis", 0) == 1
	return &Generator{Line: func(lc *LineContext) error {
		d := env.Eval(lc.Progress())
		for x := 0; x < Width; x++ {
			if across {
				d = env.Eval(float64(x) / float64(Width-1))
			}
			if dither(d, x, lc.Index) {
				lc.Set(x)
			}
		}
		return nil
	}}, nil
}

// Stripes draws repeating bars.
// Params:
//   - "period" (dots, default 16)
//   - "duty" (on fraction, default 0.5)
//   - "slope" (dots shifted per line, default 0)
type Stripes struct{}

func (Stripes) Name() string      { return "stripes" }
func (Stripes) Presets() []string { return []string{"vertical", "diagonal", "fine"} }

func (Stripes) ApplyPreset(name string, p Params) {
	switch name {
	case "vertical":
		p["slope"] = 0
	case "diagonal":
		p["slope"] = 1
	case "fine":
		p["period"] = 4
	}
}

func (Stripes) New(p Params) (*Generator, error) {
	period := int(p.Get("period", 16))
	if period <= 0 {
		return nil, fmt.Errorf("stripes: period must be positive, got %d", period)
	}
	on := int(math.Round(clamp01(p.Get("duty", 0.5)) * float64(period)))
	slope := int(p.Get("slope", 0))
	return &Generator{Line: func(lc *LineContext) error {
		shift := slope * lc.Index
		for x := 0; x < Width; x++ {
			if mod(x+shift, period) < on {
				lc.Set(x)
			}
		}
		return nil
	}}, nil
}

// Checker draws a checkerboard of square cells.
// Params:
//   - "size" (cell edge in dots, default 8)
type Checker struct{}

func (Checker) Name() string      { return "checker" }
func (Checker) Presets() []string { return []string{"small", "large"} }

func (Checker) ApplyPreset(name string, p Params) {
	switch name {
	case "small":
		p["size"] = 4
	case "large":
		p["size"] = 32
	}
}

func (Checker) New(p Params) (*Generator, error) {
	size := int(p.Get("size", 8))
	if size <= 0 {
		return nil, fmt.Errorf("checker: size must be positive, got %d", size)
	}
	return &Generator{Line: func(lc *LineContext) error {
		row := lc.Index / size
		for x := 0; x < Width; x++ {
			if (x/size+row)%2 == 0 {
				lc.Set(x)
			}
		}
		return nil
	}}, nil
}

// Sweep moves a bar across the line, one step per line, and finishes when
// the bar reaches the right edge. Useful for checking head alignment.
// Params:
//   - "step" (dots per line, default 8)
//   - "width" (bar width, default 8)
type Sweep struct{}

func (Sweep) Name() string      { return "sweep" }
func (Sweep) Presets() []string { return []string{"fast", "slow"} }

func (Sweep) ApplyPreset(name string, p Params) {
	switch name {
	case "fast":
		p["step"] = 24
	case "slow":
		p["step"] = 2
	}
}

func (Sweep) New(p Params) (*Generator, error) {
	step := int(p.Get("step", 8))
	width := int(p.Get("width", 8))
	if step <= 0 || width <= 0 {
		return nil, fmt.Errorf("sweep: step and width must be positive")
	}
	return &Generator{Line: func(lc *LineContext) error {
		x0 := lc.Index * step
		lc.HLine(x0, x0+width-1)
		if x0+step >= Width {
			lc.Done()
		}
		return nil
	}}, nil
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
