package linegen

import (
	"fmt"
	"sort"
)

// Params are the numeric knobs of a built-in pattern.
type Params map[string]float64

// Get returns p[key] or def.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Pattern is a named, parameterised generator factory.
type Pattern interface {
	Name() string
	Presets() []string
	ApplyPreset(name string, p Params)
	New(p Params) (*Generator, error)
}

type Registry struct{ m map[string]Pattern }

func NewRegistry() *Registry { return &Registry{m: map[string]Pattern{}} }

func (r *Registry) Register(p Pattern) {
	if p == nil {
		return
	}
	r.m[p.Name()] = p
}

func (r *Registry) Get(name string) (Pattern, bool) { p, ok := r.m[name]; return p, ok }

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build applies preset (if any) and then params, and returns a fresh
// generator.
func (r *Registry) Build(name, preset string, params Params) (*Generator, error) {
	pat, ok := r.m[name]
	if !ok {
		return nil, fmt.Errorf("unknown generator %q", name)
	}
	p := Params{}
	if preset != "" {
		found := false
		for _, n := range pat.Presets() {
			if n == preset {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("generator %q has no preset %q", name, preset)
		}
		pat.ApplyPreset(preset, p)
	}
	for k, v := range params {
		p[k] = v
	}
	return pat.New(p)
}

// Builtins returns a registry holding every built-in pattern.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register(Solid{})
	r.Register(Gradient{})
	r.Register(Stripes{})
	r.Register(Checker{})
	r.Register(Sweep{})
	return r
}
