// Package compiler turns a scene.Program into a PGP byte stream.
package compiler

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-pgp/internal/emit"
	"github.com/coreman2200/funtimes-pgp/internal/linegen"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/scene"
)

// TrailerFeed is the paper advanced after the last section so the output
// clears the tear bar.
const TrailerFeed = 16

// Options tune one compile.
type Options struct {
	// Vars seeds the generator variable table. Program.Vars is used when nil.
	Vars map[int]int
	// MaxLines bounds dynamic sections that do not set their own limit.
	MaxLines int
}

// Result is a compiled program.
type Result struct {
	Bytes       []byte
	Frames      []pgp.Frame
	Branching   bool
	Transitions []linegen.Transition
	Warnings    []string
	// Lines counts raster lines produced by dynamic sections.
	Lines int
	// Vars is the variable table after every generator has run.
	Vars map[int]int
}

type state struct {
	p      *scene.Program
	opts   Options
	vars   *linegen.Vars
	sprite map[int]bool
	res    *Result
}

func (s *state) add(frames ...pgp.Frame) { s.res.Frames = append(s.res.Frames, frames...) }

func (s *state) warnf(format string, a ...any) {
	s.res.Warnings = append(s.res.Warnings, fmt.Sprintf(format, a...))
}

// Compile runs every stage in order. A *ValidationError means nothing was
// emitted; a *pgp.ContractError means the scene holds something the protocol
// cannot carry.
func Compile(p *scene.Program, opts Options) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("compile: nil program")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	branching := Branching(p)
	if err := Validate(p, branching); err != nil {
		return nil, err
	}

	seed := opts.Vars
	if seed == nil {
		seed = p.Vars
	}
	s := &state{
		p:      p,
		opts:   opts,
		vars:   linegen.NewVars(seed),
		sprite: map[int]bool{},
		res:    &Result{Branching: branching},
	}

	if branching {
		s.add(pgp.ProgramStart())
	}
	for _, sp := range p.Sprites {
		f, err := emit.Sprite(sp)
		if err != nil {
			return nil, err
		}
		s.sprite[sp.ID] = true
		s.add(f)
	}
	for _, sec := range order(p, branching) {
		if err := s.section(sec); err != nil {
			return nil, err
		}
	}
	s.add(pgp.Feed(TrailerFeed), pgp.Stop())
	if branching {
		s.add(pgp.ProgramEnd())
	}

	n := 0
	for _, f := range s.res.Frames {
		n += f.Len()
	}
	s.res.Bytes = make([]byte, 0, n)
	for _, f := range s.res.Frames {
		s.res.Bytes = f.AppendTo(s.res.Bytes)
	}
	s.res.Vars = s.vars.Map()

	log.Debug().
		Str("title", p.Title).
		Bool("branching", branching).
		Int("frames", len(s.res.Frames)).
		Int("bytes", len(s.res.Bytes)).
		Int("lines", s.res.Lines).
		Int("warnings", len(s.res.Warnings)).
		Msg("compiled program")
	return s.res, nil
}

// Branching reports whether any static section holds a control-flow block.
func Branching(p *scene.Program) bool {
	for _, sec := range p.Sections {
		for _, b := range sec.Blocks {
			if scene.IsControl(b) {
				return true
			}
		}
	}
	return false
}

// Validate collects every bad flow entry and, for branching programs, every
// undefined or duplicated label.
func Validate(p *scene.Program, branching bool) error {
	var vs []Violation
	for _, id := range p.Flow {
		if _, ok := p.Section(id); !ok {
			vs = append(vs, Violation{Problem: UnknownSection, Section: id, Block: -1})
		}
	}
	if branching {
		defined := map[int]bool{}
		for _, sec := range p.Sections {
			for i, b := range sec.Blocks {
				l, ok := b.(scene.Label)
				if !ok {
					continue
				}
				if defined[l.ID] {
					vs = append(vs, Violation{Problem: DuplicateLabel, Section: sec.ID, Block: i, Label: l.ID})
				}
				defined[l.ID] = true
			}
		}
		for _, sec := range p.Sections {
			for i, b := range sec.Blocks {
				for _, ref := range scene.LabelRefs(b) {
					if !defined[ref] {
						vs = append(vs, Violation{Problem: UndefinedLabel, Section: sec.ID, Block: i, Label: ref})
					}
				}
			}
		}
	}
	if len(vs) > 0 {
		return &ValidationError{Violations: vs}
	}
	return nil
}

// order lists the sections to emit: the flow, then for branching programs
// every section the flow does not name, in table order.
func order(p *scene.Program, branching bool) []*scene.Section {
	var out []*scene.Section
	inFlow := map[string]bool{}
	for _, id := range p.Flow {
		sec, _ := p.Section(id)
		out = append(out, sec)
		inFlow[id] = true
	}
	if branching {
		for _, sec := range p.Sections {
			if !inFlow[sec.ID] {
				out = append(out, sec)
			}
		}
	}
	return out
}

func (s *state) section(sec *scene.Section) error {
	if sec.FeedMode != pgp.FeedAuto {
		s.add(pgp.SetMode(sec.FeedMode))
	} else if sec.Speed > 0 {
		s.add(pgp.SetSpeed(uint16(sec.Speed)))
	}
	if sec.Dynamic() {
		return s.dynamic(sec)
	}
	for i, b := range sec.Blocks {
		if d, ok := b.(scene.SpriteDraw); ok && !s.sprite[d.ID] {
			s.warnf("section %q block %d: sprite %d is not defined", sec.ID, i, d.ID)
		}
		frames, err := emit.Block(b)
		if err != nil {
			return fmt.Errorf("section %q block %d (%s): %w", sec.ID, i, b.Kind(), err)
		}
		s.add(frames...)
	}
	return nil
}

func (s *state) dynamic(sec *scene.Section) error {
	limit := sec.MaxLines
	if limit <= 0 {
		limit = s.opts.MaxLines
	}
	base := 0
	if sec.FeedMode == pgp.FeedAuto {
		base = sec.Speed
	}
	current := base
	warned := false
	res, err := linegen.Run(sec.ID, sec.Generator, limit, s.vars, func(l linegen.Line) error {
		want := base
		if l.Speed > 0 {
			want = l.Speed
		}
		if want > 0 && want != current {
			if want > 0xFFFF {
				return &pgp.ContractError{Op: "speed", Detail: fmt.Sprintf("section %q line %d speed %d out of range", sec.ID, l.Index, want)}
			}
			s.add(pgp.SetSpeed(uint16(want)))
			current = want
			if base == 0 && !warned {
				s.warnf("section %q line %d: speed %d stays in effect, the section has no auto speed to restore", sec.ID, l.Index, want)
				warned = true
			}
		}
		f, err := pgp.RawLineRLE(l.Pixels)
		if err != nil {
			return err
		}
		s.add(f)
		return nil
	})
	s.res.Lines += res.Lines
	if err != nil {
		return err
	}
	if res.Transition != nil {
		s.res.Transitions = append(s.res.Transitions, *res.Transition)
	}
	return nil
}
