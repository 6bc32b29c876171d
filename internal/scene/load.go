package scene

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/funtimes-pgp/internal/linegen"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/raster"
	"github.com/coreman2200/funtimes-pgp/internal/script"
)

// File is the on-disk scene shape. JSON documents parse the same way.
type File struct {
	Title    string         `yaml:"title" json:"title"`
	Flow     []string       `yaml:"flow" json:"flow"`
	Vars     map[string]int `yaml:"vars,omitempty" json:"vars,omitempty"`
	Sprites  []SpriteDoc    `yaml:"sprites,omitempty" json:"sprites,omitempty"`
	Sections []SectionDoc   `yaml:"sections" json:"sections"`
}

// SpriteDoc gives a bitmap either as '#'/'.' rows or as hex with an explicit
// size.
type SpriteDoc struct {
	ID     int      `yaml:"id" json:"id"`
	Rows   []string `yaml:"rows,omitempty" json:"rows,omitempty"`
	Width  int      `yaml:"width,omitempty" json:"width,omitempty"`
	Height int      `yaml:"height,omitempty" json:"height,omitempty"`
	Hex    string   `yaml:"hex,omitempty" json:"hex,omitempty"`
}

type SectionDoc struct {
	ID         string        `yaml:"id" json:"id"`
	FeedMode   string        `yaml:"feed_mode,omitempty" json:"feed_mode,omitempty"`
	Speed      int           `yaml:"speed,omitempty" json:"speed,omitempty"`
	MaxLines   int           `yaml:"max_lines,omitempty" json:"max_lines,omitempty"`
	Blocks     []BlockDoc    `yaml:"blocks,omitempty" json:"blocks,omitempty"`
	Generator  *GeneratorDoc `yaml:"generator,omitempty" json:"generator,omitempty"`
	Script     string        `yaml:"script,omitempty" json:"script,omitempty"`
	ScriptFile string        `yaml:"script_file,omitempty" json:"script_file,omitempty"`
}

type GeneratorDoc struct {
	Name   string         `yaml:"name" json:"name"`
	Preset string         `yaml:"preset,omitempty" json:"preset,omitempty"`
	Params linegen.Params `yaml:"params,omitempty" json:"params,omitempty"`
}

// BlockDoc is a flat union discriminated by Kind; each kind reads only the
// fields it needs.
type BlockDoc struct {
	Kind string `yaml:"kind" json:"kind"`

	X      int    `yaml:"x,omitempty" json:"x,omitempty"`
	Y      int    `yaml:"y,omitempty" json:"y,omitempty"`
	W      int    `yaml:"w,omitempty" json:"w,omitempty"`
	H      int    `yaml:"h,omitempty" json:"h,omitempty"`
	X1     int    `yaml:"x1,omitempty" json:"x1,omitempty"`
	Y1     int    `yaml:"y1,omitempty" json:"y1,omitempty"`
	R      int    `yaml:"r,omitempty" json:"r,omitempty"`
	Size   int    `yaml:"size,omitempty" json:"size,omitempty"`
	Font   *int   `yaml:"font,omitempty" json:"font,omitempty"`
	Text   string `yaml:"text,omitempty" json:"text,omitempty"`
	Filled bool   `yaml:"filled,omitempty" json:"filled,omitempty"`
	Value  int    `yaml:"value,omitempty" json:"value,omitempty"`
	Lines  int    `yaml:"lines,omitempty" json:"lines,omitempty"`

	Rows   []string `yaml:"rows,omitempty" json:"rows,omitempty"`
	Hex    []string `yaml:"hex,omitempty" json:"hex,omitempty"`
	Image  string   `yaml:"image,omitempty" json:"image,omitempty"`
	Width  int      `yaml:"width,omitempty" json:"width,omitempty"`
	Level  int      `yaml:"level,omitempty" json:"level,omitempty"`
	Dither bool     `yaml:"dither,omitempty" json:"dither,omitempty"`

	ID        int    `yaml:"id,omitempty" json:"id,omitempty"`
	Speed     int    `yaml:"speed,omitempty" json:"speed,omitempty"`
	Heat      int    `yaml:"heat,omitempty" json:"heat,omitempty"`
	Button    int    `yaml:"button,omitempty" json:"button,omitempty"`
	Marker    int    `yaml:"marker,omitempty" json:"marker,omitempty"`
	Label     int    `yaml:"label,omitempty" json:"label,omitempty"`
	Labels    []int  `yaml:"labels,omitempty" json:"labels,omitempty"`
	Var       int    `yaml:"var,omitempty" json:"var,omitempty"`
	Op        string `yaml:"op,omitempty" json:"op,omitempty"`
	Fader     int    `yaml:"fader,omitempty" json:"fader,omitempty"`
	Threshold int    `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Mode      string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// Loader turns scene files into Programs.
// ErrOutsideDir is returned for image or script paths that are absolute or
// climb out of the scene directory.
var ErrOutsideDir = errors.New("path outside the scene directory")

type Loader struct {
	// Dir resolves image and script paths, which must stay beneath it.
	Dir      string
	Patterns *linegen.Registry
}

// Load reads a scene file. Relative paths inside it resolve against the
// file's directory.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := (&Loader{Dir: filepath.Dir(path)}).Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse reads a YAML or JSON scene with the built-in patterns.
func Parse(data []byte, dir string) (*Program, error) {
	return (&Loader{Dir: dir}).Parse(data)
}

func (l *Loader) Parse(data []byte) (*Program, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return l.Build(&f)
}

// Build converts a decoded file. On error every script already loaded is
// released.
func (l *Loader) Build(f *File) (p *Program, err error) {
	p = &Program{Title: f.Title, Flow: f.Flow, Vars: map[int]int{}}
	defer func() {
		if err != nil {
			p.Close()
			p = nil
		}
	}()
	for k, v := range f.Vars {
		slot, err := strconv.Atoi(k)
		if err != nil {
			return p, fmt.Errorf("vars: bad slot %q", k)
		}
		p.Vars[slot] = v
	}
	for _, sd := range f.Sprites {
		sp, err := sd.sprite()
		if err != nil {
			return p, fmt.Errorf("sprite %d: %w", sd.ID, err)
		}
		p.Sprites = append(p.Sprites, sp)
	}
	for i, sd := range f.Sections {
		s, err := l.section(p, sd)
		if err != nil {
			if sd.ID == "" {
				return p, fmt.Errorf("section %d: %w", i, err)
			}
			return p, fmt.Errorf("section %q: %w", sd.ID, err)
		}
		p.Sections = append(p.Sections, s)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (sd SpriteDoc) sprite() (Sprite, error) {
	if len(sd.Rows) > 0 {
		bm, w, h, err := raster.Pack(sd.Rows)
		if err != nil {
			return Sprite{}, err
		}
		return Sprite{ID: sd.ID, W: w, H: h, Bitmap: bm}, nil
	}
	bm, err := hex.DecodeString(sd.Hex)
	if err != nil {
		return Sprite{}, err
	}
	return Sprite{ID: sd.ID, W: sd.Width, H: sd.Height, Bitmap: bm}, nil
}

func (l *Loader) section(p *Program, sd SectionDoc) (*Section, error) {
	s := &Section{ID: sd.ID, Speed: sd.Speed, MaxLines: sd.MaxLines}
	if sd.FeedMode != "" {
		m, err := pgp.ParseFeedMode(sd.FeedMode)
		if err != nil {
			return nil, err
		}
		s.FeedMode = m
	}

	bodies := 0
	for _, set := range []bool{len(sd.Blocks) > 0, sd.Generator != nil, sd.Script != "", sd.ScriptFile != ""} {
		if set {
			bodies++
		}
	}
	if bodies > 1 {
		return nil, fmt.Errorf("blocks, generator, script and script_file are mutually exclusive")
	}

	switch {
	case sd.Generator != nil:
		reg := l.Patterns
		if reg == nil {
			reg = linegen.Builtins()
		}
		g, err := reg.Build(sd.Generator.Name, sd.Generator.Preset, sd.Generator.Params)
		if err != nil {
			return nil, err
		}
		s.Generator = g
	case sd.Script != "" || sd.ScriptFile != "":
		var (
			g   *script.Generator
			err error
		)
		if sd.ScriptFile != "" {
			var path string
			if path, err = l.path(sd.ScriptFile); err == nil {
				g, err = script.CompileFile(path)
			}
		} else {
			g, err = script.Compile(sd.ID, sd.Script)
		}
		if err != nil {
			return nil, err
		}
		p.Own(g)
		s.Generator = g.Linegen()
	default:
		for i, bd := range sd.Blocks {
			b, err := l.block(bd)
			if err != nil {
				return nil, fmt.Errorf("block %d (%s): %w", i, bd.Kind, err)
			}
			s.Blocks = append(s.Blocks, b)
		}
	}
	return s, nil
}

// path resolves a scene-relative file. Absolute paths and paths that climb
// out of Dir are refused.
func (l *Loader) path(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) || !filepath.IsLocal(p) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDir, p)
	}
	return filepath.Join(l.Dir, p), nil
}

func (l *Loader) block(d BlockDoc) (Block, error) {
	switch d.Kind {
	case "text":
		return Text{X: d.X, Y: d.Y, Size: d.Size, Font: d.Font, Text: d.Text}, nil
	case "rect":
		return Rect{X: d.X, Y: d.Y, W: d.W, H: d.H, Filled: d.Filled}, nil
	case "fill":
		if d.Value < 0 || d.Value > 0xFF {
			return nil, fmt.Errorf("value %d out of range 0..255", d.Value)
		}
		return Fill{Value: byte(d.Value), Lines: d.Lines}, nil
	case "raster":
		return rasterBlock(d)
	case "image":
		path, err := l.path(d.Image)
		if err != nil {
			return nil, err
		}
		img, err := raster.Open(path)
		if err != nil {
			return nil, err
		}
		rows, err := raster.FromImage(img, raster.Options{X: d.X, Width: d.Width, Threshold: uint8(d.Level), Dither: d.Dither})
		if err != nil {
			return nil, err
		}
		return Raster{Rows: rows}, nil
	case "circle":
		rows, err := raster.Circle(d.X, d.Y, d.R, d.Filled)
		if err != nil {
			return nil, err
		}
		return Raster{Rows: rows}, nil
	case "line":
		rows, err := raster.Line(d.X, d.Y, d.X1, d.Y1)
		if err != nil {
			return nil, err
		}
		return Raster{Rows: rows}, nil
	case "sprite":
		return SpriteDraw{ID: d.ID, X: d.X, Y: d.Y}, nil
	case "feed":
		return Feed{Lines: d.Lines}, nil
	case "speed":
		return SetSpeed{Speed: d.Speed}, nil
	case "heat":
		return SetHeat{Heat: d.Heat}, nil
	case "poll_input":
		return PollInput{}, nil
	case "wait_button":
		return WaitButton{Button: d.Button}, nil
	case "sync":
		return SyncMarker{Marker: d.Marker}, nil
	case "label":
		return Label{ID: d.ID}, nil
	case "jump":
		return Jump{Label: d.Label}, nil
	case "jump_if_button":
		return JumpIfButton{Button: d.Button, Label: d.Label}, nil
	case "random_jump":
		return RandomJump{Labels: d.Labels}, nil
	case "set_variable":
		return SetVariable{Var: d.Var, Value: d.Value}, nil
	case "jump_if_variable":
		op, err := pgp.ParseOp(d.Op)
		if err != nil {
			return nil, err
		}
		return JumpIfVariable{Var: d.Var, Op: op, Value: d.Value, Label: d.Label}, nil
	case "jump_if_fader":
		op, err := pgp.ParseOp(d.Op)
		if err != nil {
			return nil, err
		}
		return JumpIfFader{Fader: d.Fader, Op: op, Threshold: d.Threshold, Label: d.Label}, nil
	case "wait_fader":
		op, err := pgp.ParseOp(d.Op)
		if err != nil {
			return nil, err
		}
		return WaitFader{Fader: d.Fader, Op: op, Threshold: d.Threshold}, nil
	case "feed_mode":
		m, err := pgp.ParseFeedMode(d.Mode)
		if err != nil {
			return nil, err
		}
		return SetFeedMode{Mode: m}, nil
	case "":
		return nil, fmt.Errorf("missing kind")
	}
	return nil, fmt.Errorf("unknown kind %q", d.Kind)
}

// rasterBlock places '#'/'.' rows or hex rows at X.
func rasterBlock(d BlockDoc) (Block, error) {
	b := raster.New(0)
	switch {
	case len(d.Rows) > 0:
		bm, w, h, err := raster.Pack(d.Rows)
		if err != nil {
			return nil, err
		}
		stride := pgp.SpriteStride(w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if bm[y*stride+(x>>3)]&(0x80>>(x&7)) != 0 {
					b.Set(d.X+x, d.Y+y)
				}
			}
		}
	case len(d.Hex) > 0:
		for y, h := range d.Hex {
			row, err := hex.DecodeString(h)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", y, err)
			}
			if len(row) > pgp.LineBytes {
				return nil, fmt.Errorf("row %d is %d bytes, max %d", y, len(row), pgp.LineBytes)
			}
			for x := 0; x < len(row)*8; x++ {
				if row[x>>3]&(0x80>>(x&7)) != 0 {
					b.Set(d.X+x, d.Y+y)
				}
			}
		}
	default:
		return nil, fmt.Errorf("raster needs rows or hex")
	}
	return Raster{Rows: b.Rows()}, nil
}
