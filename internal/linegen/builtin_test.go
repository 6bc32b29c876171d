package linegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBuiltin(t *testing.T, name, preset string, p Params, max int) []Line {
	t.Helper()
	gen, err := Builtins().Build(name, preset, p)
	require.NoError(t, err)
	var lines []Line
	_, err = Run(name, gen, max, nil, func(l Line) error {
		lines = append(lines, l)
		return nil
	})
	require.NoError(t, err)
	return lines
}

func ones(b []byte) int {
	n := 0
	for _, v := range b {
		for ; v != 0; v &= v - 1 {
			n++
		}
	}
	return n
}

func TestRegistryList(t *testing.T) {
	assert.Equal(t, []string{"checker", "gradient", "solid", "stripes", "sweep"}, Builtins().List())

	_, err := Builtins().Build("plasma", "", nil)
	assert.Error(t, err)
	_, err = Builtins().Build("solid", "neon", nil)
	assert.Error(t, err)
}

func TestSolid(t *testing.T) {
	lines := runBuiltin(t, "solid", "grey", nil, 2)
	require.Len(t, lines, 2)
	for _, b := range lines[0].Pixels {
		assert.Equal(t, byte(0xAA), b)
	}
	lines = runBuiltin(t, "solid", "grey", Params{"value": 0x0F}, 1)
	assert.Equal(t, byte(0x0F), lines[0].Pixels[10], "params override presets")

	_, err := Builtins().Build("solid", "", Params{"value": 300})
	assert.Error(t, err)
}

func TestGradientDensityRamps(t *testing.T) {
	lines := runBuiltin(t, "gradient", "fade-in", nil, 64)
	require.Len(t, lines, 64)
	assert.Equal(t, 0, ones(lines[0].Pixels))
	assert.Greater(t, ones(lines[48].Pixels), ones(lines[16].Pixels))

	lines = runBuiltin(t, "gradient", "across", nil, 4)
	first, last := 0, 0
	for x := 0; x < 64; x++ {
		if lines[0].Pixels[x/8]&(0x80>>(x&7)) != 0 {
			first++
		}
		if lines[0].Pixels[(Width-64+x)/8]&(0x80>>((Width-64+x)&7)) != 0 {
			last++
		}
	}
	assert.Less(t, first, last)
}

func TestStripesAndChecker(t *testing.T) {
	lines := runBuiltin(t, "stripes", "", Params{"period": 16}, 2)
	assert.Equal(t, byte(0xFF), lines[0].Pixels[0])
	assert.Equal(t, byte(0x00), lines[0].Pixels[1])
	assert.Equal(t, Width/2, ones(lines[0].Pixels))

	diag := runBuiltin(t, "stripes", "diagonal", nil, 2)
	assert.NotEqual(t, diag[0].Pixels, diag[1].Pixels)

	cells := runBuiltin(t, "checker", "", nil, 16)
	assert.Equal(t, byte(0xFF), cells[0].Pixels[0])
	assert.Equal(t, byte(0x00), cells[8].Pixels[0])
	assert.Equal(t, byte(0xFF), cells[8].Pixels[1])
}

func TestSweepFinishesAtEdge(t *testing.T) {
	lines := runBuiltin(t, "sweep", "", nil, 1000)
	assert.Len(t, lines, Width/8)
	for i, l := range lines {
		assert.Equal(t, 8, ones(l.Pixels), "line %d", i)
		assert.Equal(t, byte(0xFF), l.Pixels[i])
	}
}
