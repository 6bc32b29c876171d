package linegen

import "sort"

// Vars is the integer-keyed variable table shared by every generator of one
// compilation. It is passed explicitly and discarded afterwards.
type Vars struct {
	m map[int]int
}

// NewVars copies init into a fresh table.
func NewVars(init map[int]int) *Vars {
	v := &Vars{m: make(map[int]int, len(init))}
	for k, val := range init {
		v.m[k] = val
	}
	return v
}

// Get returns slot k, or 0 when unset.
func (v *Vars) Get(k int) int { return v.m[k] }

// Set stores val in slot k.
func (v *Vars) Set(k, val int) { v.m[k] = val }

// Has reports whether slot k was ever set.
func (v *Vars) Has(k int) bool {
	_, ok := v.m[k]
	return ok
}

// Keys returns the set slots in ascending order.
func (v *Vars) Keys() []int {
	out := make([]int, 0, len(v.m))
	for k := range v.m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Map returns a copy of the table.
func (v *Vars) Map() map[int]int {
	out := make(map[int]int, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

// Clone returns an independent copy.
func (v *Vars) Clone() *Vars { return NewVars(v.m) }
