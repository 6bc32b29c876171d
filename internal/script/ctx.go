package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/coreman2200/funtimes-pgp/internal/linegen"
)

// install builds the ctx table and the variable globals.
func (g *Generator) install() {
	L := g.L
	g.ctx = L.NewTable()
	L.SetFuncs(g.ctx, map[string]lua.LGFunction{
		"set":      g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.Set(L.CheckInt(a)); return 0 }),
		"clear":    g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.Clear(L.CheckInt(a)); return 0 }),
		"get":      g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { L.Push(lua.LBool(lc.Get(L.CheckInt(a)))); return 1 }),
		"hline":    g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.HLine(L.CheckInt(a), L.CheckInt(a+1)); return 0 }),
		"fill":     g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.Fill(byte(L.CheckInt(a))); return 0 }),
		"invert":   g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.Invert(); return 0 }),
		"done":     g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.Done(); return 0 }),
		"jump":     g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.Goto(L.CheckString(a)); return 0 }),
		"speed":    g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { lc.SetSpeed(L.CheckInt(a)); return 0 }),
		"index":    g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { L.Push(lua.LNumber(lc.Index)); return 1 }),
		"max":      g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { L.Push(lua.LNumber(lc.Max)); return 1 }),
		"progress": g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { L.Push(lua.LNumber(lc.Progress())); return 1 }),
		"width":    g.withLine(func(L *lua.LState, lc *linegen.LineContext, a int) int { L.Push(lua.LNumber(linegen.Width)); return 1 }),
	})
	L.SetGlobal("getvar", L.NewFunction(func(L *lua.LState) int {
		if g.vars == nil {
			L.RaiseError("getvar: no variable table")
			return 0
		}
		L.Push(lua.LNumber(g.vars.Get(L.CheckInt(1))))
		return 1
	}))
	L.SetGlobal("setvar", L.NewFunction(func(L *lua.LState) int {
		if g.vars == nil {
			L.RaiseError("setvar: no variable table")
			return 0
		}
		g.vars.Set(L.CheckInt(1), L.CheckInt(2))
		return 0
	}))
}

// withLine resolves the current line and the first real argument index,
// skipping ctx itself when called with colon syntax.
func (g *Generator) withLine(fn func(L *lua.LState, lc *linegen.LineContext, arg int) int) lua.LGFunction {
	return func(L *lua.LState) int {
		if g.cur == nil {
			L.RaiseError("ctx used outside line()")
			return 0
		}
		arg := 1
		if t, ok := L.Get(1).(*lua.LTable); ok && t == g.ctx {
			arg = 2
		}
		return fn(L, g.cur, arg)
	}
}
