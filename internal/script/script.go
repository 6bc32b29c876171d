// Package script runs dynamic sections written in Lua.
//
// A script must define line(ctx) and may define enter(), exit() and
// finished(ctx). ctx exposes set, clear, get, hline, fill, invert, done,
// jump, speed, index, max, progress and width; getvar and setvar reach the
// shared variable table. Methods accept both ctx.set(x) and ctx:set(x).
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/coreman2200/funtimes-pgp/internal/linegen"
)

// Budget is the total wall time a script may spend running, counting its
// top-level chunk and every hook and line call.
var Budget = 5 * time.Second

// ErrBudget is returned once a script has used up its Budget.
var ErrBudget = errors.New("time budget exhausted")

// Globals removed after the libraries open. None of them is needed to draw a
// line and each reaches the filesystem or compiles new code.
var blocked = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// Generator is one loaded script with its own interpreter. It is safe for
// use by one compilation at a time; calls are serialised.
type Generator struct {
	name string
	left time.Duration

	mu   sync.Mutex
	L    *lua.LState
	ctx  *lua.LTable
	cur  *linegen.LineContext
	vars *linegen.Vars
}

var safeLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// Compile loads source under name. The chunk runs once, so top-level code
// may set up state shared across lines.
func Compile(name, source string) (*Generator, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true, CallStackSize: 256, RegistryMaxSize: 1 << 20})
	for _, lib := range safeLibs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("script %s: open %q: %w", name, lib.name, err)
		}
	}
	for _, fn := range blocked {
		L.SetGlobal(fn, lua.LNil)
	}
	if str, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable); ok {
		L.SetField(str, "rep", lua.LNil)
	}
	g := &Generator{name: name, L: L, left: Budget}
	g.install()

	fn, err := L.LoadString(source)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	if err := g.timed(func() error {
		L.Push(fn)
		return L.PCall(0, 0, nil)
	}); err != nil {
		L.Close()
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	if _, ok := L.GetGlobal("line").(*lua.LFunction); !ok {
		L.Close()
		return nil, fmt.Errorf("script %s: no line(ctx) function", name)
	}
	return g, nil
}

// CompileFile loads a script from disk, named after its base name.
func CompileFile(path string) (*Generator, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(filepath.Base(path), string(src))
}

// Name is the script name used in errors.
func (g *Generator) Name() string { return g.name }

// Close releases the interpreter.
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.L != nil {
		g.L.Close()
		g.L = nil
	}
	return nil
}

func (g *Generator) defined(fn string) bool {
	_, ok := g.L.GetGlobal(fn).(*lua.LFunction)
	return ok
}

func (g *Generator) call(fn string, nret int, args ...lua.LValue) error {
	if g.L == nil {
		return fmt.Errorf("script %s: closed", g.name)
	}
	return g.timed(func() error {
		return g.L.CallByParam(lua.P{Fn: g.L.GetGlobal(fn), NRet: nret, Protect: true}, args...)
	})
}

// timed runs f against what is left of the script's budget.
func (g *Generator) timed(f func() error) error {
	if g.left <= 0 {
		return ErrBudget
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.left)
	defer cancel()
	g.L.SetContext(ctx)
	defer g.L.RemoveContext()

	start := time.Now()
	err := f()
	g.left -= time.Since(start)
	if err != nil && ctx.Err() != nil {
		return ErrBudget
	}
	return err
}

// Linegen adapts the script to the section runner. Optional Lua hooks map to
// the matching Generator fields.
func (g *Generator) Linegen() *linegen.Generator {
	lg := &linegen.Generator{Line: g.line}
	if g.L == nil {
		return lg
	}
	if g.defined("enter") {
		lg.Enter = func(v *linegen.Vars) error { return g.hook("enter", v) }
	}
	if g.defined("exit") {
		lg.Exit = func(v *linegen.Vars) error { return g.hook("exit", v) }
	}
	if g.defined("finished") {
		lg.Until = g.finished
	}
	return lg
}

func (g *Generator) hook(fn string, v *linegen.Vars) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vars = v
	return g.call(fn, 0)
}

func (g *Generator) line(lc *linegen.LineContext) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cur, g.vars = lc, lc.Vars
	defer func() { g.cur = nil }()
	return g.call("line", 0, g.ctx)
}

func (g *Generator) finished(lc *linegen.LineContext) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cur, g.vars = lc, lc.Vars
	defer func() { g.cur = nil }()
	if err := g.call("finished", 1, g.ctx); err != nil {
		return false, err
	}
	ret := g.L.Get(-1)
	g.L.Pop(1)
	return lua.LVAsBool(ret), nil
}
