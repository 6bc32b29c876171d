package linegen

import (
	"errors"
	"fmt"
)

// DefaultMaxLines bounds a dynamic section that does not set its own limit.
const DefaultMaxLines = 1000

// Generator produces a dynamic section one line at a time. Only Line is
// required.
type Generator struct {
	Line  func(lc *LineContext) error
	Enter func(v *Vars) error
	Exit  func(v *Vars) error
	// Until is checked after every line; true ends the section.
	Until func(lc *LineContext) (bool, error)
}

// Line is one generated raster line.
type Line struct {
	Index  int
	Pixels []byte
	// Speed is the per-line speed override, 0 when none was requested.
	Speed int
}

// Transition is a section change requested by a generator. The compiled
// stream does not jump; callers decide what to do with it.
type Transition struct {
	From string `json:"from" yaml:"from"`
	Line int    `json:"line" yaml:"line"`
	To   string `json:"to" yaml:"to"`
}

// Result summarises one section run.
type Result struct {
	Lines      int
	Transition *Transition
}

// Run drives gen for section until it reaches max lines, calls Done or Goto,
// or Until reports true. Each line is passed to emit in order.
func Run(section string, gen *Generator, max int, vars *Vars, emit func(Line) error) (Result, error) {
	var res Result
	if gen == nil || gen.Line == nil {
		return res, errors.New("linegen: generator has no line function")
	}
	if max <= 0 {
		max = DefaultMaxLines
	}
	if vars == nil {
		vars = NewVars(nil)
	}
	if gen.Enter != nil {
		if err := gen.Enter(vars); err != nil {
			return res, fmt.Errorf("section %q enter: %w", section, err)
		}
	}
	for i := 0; i < max; i++ {
		lc := newLineContext(i, max, vars)
		if err := gen.Line(lc); err != nil {
			return res, fmt.Errorf("section %q line %d: %w", section, i, err)
		}
		ln := Line{Index: i, Pixels: lc.Bytes()}
		if lc.speedSet {
			ln.Speed = lc.speed
		}
		if err := emit(ln); err != nil {
			return res, err
		}
		res.Lines++

		if lc.jumped {
			res.Transition = &Transition{From: section, Line: i, To: lc.next}
			break
		}
		if lc.done {
			break
		}
		if gen.Until != nil {
			stop, err := gen.Until(lc)
			if err != nil {
				return res, fmt.Errorf("section %q end condition: %w", section, err)
			}
			if stop {
				break
			}
		}
	}
	if gen.Exit != nil {
		if err := gen.Exit(vars); err != nil {
			return res, fmt.Errorf("section %q exit: %w", section, err)
		}
	}
	return res, nil
}
