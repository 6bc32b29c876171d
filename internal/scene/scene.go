// Package scene is the in-memory program model the compiler consumes, and
// its YAML/JSON file form.
package scene

import (
	"errors"
	"fmt"
	"io"

	"github.com/coreman2200/funtimes-pgp/internal/linegen"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
)

// Program is a whole scene: sections, the order to play them in, sprites and
// the initial variable table.
type Program struct {
	Title    string
	Flow     []string
	Sections []*Section
	Sprites  []Sprite
	Vars     map[int]int

	closers []io.Closer
}

// Section is either a static block list or a dynamic generator, never both.
type Section struct {
	ID        string
	Blocks    []Block
	Generator *linegen.Generator
	FeedMode  pgp.FeedMode
	// Speed is only emitted when positive and the feed mode is auto.
	Speed int
	// MaxLines bounds a dynamic section; 0 uses linegen.DefaultMaxLines.
	MaxLines int
}

// Dynamic reports whether the section is generated line by line.
func (s *Section) Dynamic() bool { return s.Generator != nil }

// Sprite is a 1-bit bitmap, (W+7)/8 bytes per row.
type Sprite struct {
	ID     int
	W, H   int
	Bitmap []byte
}

// Section returns the section named id.
func (p *Program) Section(id string) (*Section, bool) {
	for _, s := range p.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Sprite returns the sprite with the given id.
func (p *Program) Sprite(id int) (Sprite, bool) {
	for _, s := range p.Sprites {
		if s.ID == id {
			return s, true
		}
	}
	return Sprite{}, false
}

// Own registers a resource released by Close.
func (p *Program) Own(c io.Closer) { p.closers = append(p.closers, c) }

// Close releases script interpreters attached while loading.
func (p *Program) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Validate checks structural rules that do not depend on compilation:
// unique, non-empty section ids, one body per section and well-formed sprites.
func (p *Program) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, s := range p.Sections {
		switch {
		case s == nil:
			errs = append(errs, fmt.Errorf("section %d is nil", i))
			continue
		case s.ID == "":
			errs = append(errs, fmt.Errorf("section %d has no id", i))
		case seen[s.ID]:
			errs = append(errs, fmt.Errorf("section %q defined twice", s.ID))
		}
		seen[s.ID] = true
		if s.Generator != nil && len(s.Blocks) > 0 {
			errs = append(errs, fmt.Errorf("section %q has both blocks and a generator", s.ID))
		}
		if s.Speed < 0 || s.Speed > 0xFFFF {
			errs = append(errs, fmt.Errorf("section %q speed %d out of range", s.ID, s.Speed))
		}
	}
	ids := map[int]bool{}
	for _, sp := range p.Sprites {
		if sp.ID < 0 || sp.ID > 0xFF {
			errs = append(errs, fmt.Errorf("sprite id %d out of range 0..255", sp.ID))
		}
		if ids[sp.ID] {
			errs = append(errs, fmt.Errorf("sprite %d defined twice", sp.ID))
		}
		ids[sp.ID] = true
		if sp.W <= 0 || sp.W > 0xFF || sp.H <= 0 || sp.H > 0xFF {
			errs = append(errs, fmt.Errorf("sprite %d size %dx%d out of range", sp.ID, sp.W, sp.H))
		} else if len(sp.Bitmap) != pgp.SpriteStride(sp.W)*sp.H {
			errs = append(errs, fmt.Errorf("sprite %d bitmap is %d bytes, want %d", sp.ID, len(sp.Bitmap), pgp.SpriteStride(sp.W)*sp.H))
		}
	}
	return errors.Join(errs...)
}
