package linegen

import "sort"

// Keyframe is a value at section progress T in [0,1]. Ease shapes the
// segment that starts at this key.
type Keyframe struct {
	T    float64 `yaml:"t" json:"t"`
	V    float64 `yaml:"v" json:"v"`
	Ease string  `yaml:"ease,omitempty" json:"ease,omitempty"`
}

// Envelope is a piecewise curve over section progress.
type Envelope struct {
	Keys []Keyframe `yaml:"keys" json:"keys"`
}

// Ramp is a two-key envelope from a to b.
func Ramp(a, b float64, ease string) Envelope {
	return Envelope{Keys: []Keyframe{{T: 0, V: a, Ease: ease}, {T: 1, V: b}}}
}

// Sort orders the keys by T.
func (e Envelope) Sort() {
	sort.SliceStable(e.Keys, func(i, j int) bool { return e.Keys[i].T < e.Keys[j].T })
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// smootherstep: 6x^5 - 15x^4 + 10x^3
func smootherstep(x float64) float64 {
	return x * x * x * (x*(x*6-15) + 10)
}

func ease(kind string, x float64) float64 {
	switch kind {
	case "smooth":
		return x * x * (3 - 2*x)
	case "cubic":
		return smootherstep(x)
	case "in":
		return x * x
	case "out":
		return 1 - (1-x)*(1-x)
	}
	return x
}

// Eval returns the envelope value at t. Keys must be sorted.
func (e Envelope) Eval(t float64) float64 {
	n := len(e.Keys)
	if n == 0 {
		return 0
	}
	if n == 1 || t <= e.Keys[0].T {
		return e.Keys[0].V
	}
	if t >= e.Keys[n-1].T {
		return e.Keys[n-1].V
	}
	for i := 0; i < n-1; i++ {
		a, b := e.Keys[i], e.Keys[i+1]
		if t < a.T || t > b.T {
			continue
		}
		den := b.T - a.T
		if den <= 0 {
			return b.V
		}
		u := ease(a.Ease, clamp01((t-a.T)/den))
		return a.V + (b.V-a.V)*u
	}
	return e.Keys[n-1].V
}
