package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/funtimes-pgp/internal/compiler"
	"github.com/coreman2200/funtimes-pgp/internal/linegen"
	"github.com/coreman2200/funtimes-pgp/internal/scene"
)

func compileFile(path string, maxLines int) (*compiler.Result, error) {
	p, err := scene.Load(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	res, err := compiler.Compile(p, compiler.Options{MaxLines: maxLines})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func compileProgram(p *scene.Program) (*compiler.Result, error) {
	return compiler.Compile(p, compiler.Options{})
}

// sceneFromText is a one-block scene printing s.
func sceneFromText(s string, size int) (*scene.Program, error) {
	p := &scene.Program{
		Flow: []string{"console"},
		Sections: []*scene.Section{{
			ID:     "console",
			Blocks: []scene.Block{scene.Text{Size: size, Text: s}},
		}},
	}
	return p, p.Validate()
}

func runBuild(args []string) error {
	fs := newFlags("build")
	out := fs.String("o", "", "output directory (default: next to each scene)")
	jobs := fs.Int("j", runtime.NumCPU(), "scenes compiled in parallel")
	maxLines := fs.Int("max-lines", linegen.DefaultMaxLines, "line limit for generated sections")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("build: no scene files given")
	}

	var g errgroup.Group
	g.SetLimit(max(1, *jobs))
	for _, path := range fs.Args() {
		path := path
		g.Go(func() error {
			res, err := compileFile(path, *maxLines)
			if err != nil {
				return err
			}
			warn(res.Warnings)
			dst := strings.TrimSuffix(path, filepath.Ext(path)) + ".pgp"
			if *out != "" {
				dst = filepath.Join(*out, filepath.Base(dst))
			}
			if err := os.WriteFile(dst, res.Bytes, 0644); err != nil {
				return err
			}
			log.Info().
				Str("scene", path).
				Str("out", dst).
				Int("bytes", len(res.Bytes)).
				Int("frames", len(res.Frames)).
				Bool("branching", res.Branching).
				Int("generated_lines", res.Lines).
				Msg("built")
			for _, t := range res.Transitions {
				log.Info().Str("from", t.From).Int("line", t.Line).Str("to", t.To).Msg("generator requested a section change")
			}
			return nil
		})
	}
	return g.Wait()
}
