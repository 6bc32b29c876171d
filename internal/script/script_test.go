package script

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-pgp/internal/linegen"
)

func run(t *testing.T, src string, max int, vars *linegen.Vars) ([]linegen.Line, linegen.Result) {
	t.Helper()
	g, err := Compile("test", src)
	require.NoError(t, err)
	defer g.Close()
	var lines []linegen.Line
	res, err := linegen.Run("s", g.Linegen(), max, vars, func(l linegen.Line) error {
		lines = append(lines, l)
		return nil
	})
	require.NoError(t, err)
	return lines, res
}

func TestDoneAtIndexThree(t *testing.T) {
	lines, res := run(t, `
function line(ctx)
  ctx:set(ctx:index())
  if ctx:index() == 3 then ctx:done() end
end`, 100, nil)
	assert.Len(t, lines, 4)
	assert.Equal(t, 4, res.Lines)
	assert.Equal(t, byte(0x10), lines[3].Pixels[0])
}

func TestDotAndColonCalls(t *testing.T) {
	lines, _ := run(t, `
function line(ctx)
  ctx.hline(0, 7)
  ctx:hline(16, 23)
  if ctx.get(3) and not ctx:get(12) then ctx:set(575) end
end`, 1, nil)
	assert.Equal(t, []byte{0xFF, 0x00, 0xFF}, lines[0].Pixels[:3])
	assert.Equal(t, byte(0x01), lines[0].Pixels[71])
}

func TestJumpSpeedAndVars(t *testing.T) {
	vars := linegen.NewVars(map[int]int{4: 2})
	lines, res := run(t, `
count = 0
function enter() setvar(5, getvar(4) * 10) end
function line(ctx)
  count = count + 1
  ctx:speed(ctx:index() + 1)
  ctx:speed(99)
  if count == getvar(4) then ctx:jump("next"); ctx:jump("other") end
end
function exit() setvar(6, count) end`, 50, vars)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Speed)
	assert.Equal(t, 2, lines[1].Speed)
	require.NotNil(t, res.Transition)
	assert.Equal(t, "next", res.Transition.To)
	assert.Equal(t, 1, res.Transition.Line)
	assert.Equal(t, 20, vars.Get(5))
	assert.Equal(t, 2, vars.Get(6))
}

func TestFinishedPredicate(t *testing.T) {
	lines, _ := run(t, `
function line(ctx) ctx:fill(0x0F) end
function finished(ctx) return ctx:progress() >= 0.5 end`, 10, nil)
	assert.Len(t, lines, 6)
	assert.Equal(t, byte(0x0F), lines[0].Pixels[40])
}

func TestScriptErrors(t *testing.T) {
	_, err := Compile("nofn", "x = 1")
	assert.ErrorContains(t, err, "no line(ctx)")

	_, err = Compile("syntax", "function line(ctx")
	assert.Error(t, err)

	_, err = Compile("sandbox", "os.exit(1)")
	assert.Error(t, err, "os library is not loaded")

	g, err := Compile("boom", `function line(ctx) if ctx:index() == 2 then error("boom") end end`)
	require.NoError(t, err)
	defer g.Close()
	_, err = linegen.Run("s", g.Linegen(), 10, nil, func(linegen.Line) error { return nil })
	assert.ErrorContains(t, err, `section "s" line 2`)
	assert.ErrorContains(t, err, "boom")
}

func TestSandboxedGlobals(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.lua")
	require.NoError(t, os.WriteFile(secret, []byte(`function line(ctx) end`), 0o644))

	tests := []struct {
		name string
		src  string
	}{
		{"Dofile", `dofile(` + strconv.Quote(secret) + `)`},
		{"Loadfile", `loadfile(` + strconv.Quote(secret) + `)()`},
		{"Load", `load("function line(ctx) end")()`},
		{"Loadstring", `loadstring("function line(ctx) end")()`},
		{"Require", `require("secret")`},
		{"Package", `package.path = "/tmp/?.lua"`},
		{"StringRep", `local s = string.rep("x", 1e10)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Compile(tt.name, tt.src+"\nfunction line(ctx) end")
			assert.Error(t, err)
			assert.Nil(t, g)
		})
	}
}

func TestScriptBudget(t *testing.T) {
	defer func(b time.Duration) { Budget = b }(Budget)
	Budget = 100 * time.Millisecond

	start := time.Now()
	_, err := Compile("spin", `while true do end`)
	assert.ErrorIs(t, err, ErrBudget)
	assert.Less(t, time.Since(start), 5*time.Second)

	g, err := Compile("spinline", `function line(ctx) while true do end end`)
	require.NoError(t, err)
	defer g.Close()
	_, err = linegen.Run("s", g.Linegen(), 10, nil, func(linegen.Line) error { return nil })
	assert.ErrorIs(t, err, ErrBudget)

	_, err = linegen.Run("s", g.Linegen(), 10, nil, func(linegen.Line) error { return nil })
	assert.ErrorIs(t, err, ErrBudget, "spent budget is not refilled")
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wave.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function line(ctx) ctx:set(ctx:width() - 1) end`), 0o644))
	g, err := CompileFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wave.lua", g.Name())
	require.NoError(t, g.Close())

	_, err = linegen.Run("s", g.Linegen(), 1, nil, func(linegen.Line) error { return nil })
	assert.Error(t, err, "closed script cannot run")
}
