package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/themepack/internal/sass"
)

// ErrUnresolved is returned by a stage when an import in the file cannot be found.
var ErrUnresolved = errors.New("unresolved import")

// Compiler compiles a Sass entry. *sass.Compiler satisfies it.
type Compiler interface {
	Compile(ctx context.Context, req sass.Request) (*sass.Result, error)
}

// SassOptions configures the sass stage.
type SassOptions struct {
	SourceMap bool `yaml:"sourceMap"`
	// Importer selects the custom importer; "glob" enables glob imports.
	Importer            string   `yaml:"importer"`
	IncludePaths        []string `yaml:"includePaths"`
	OutputStyle         string   `yaml:"outputStyle"`
	SilenceDeprecations []string `yaml:"silenceDeprecations"`
}

// Sass preprocesses .scss, .sass and .css sources into plain CSS.
type Sass struct {
	compiler Compiler
	opts     SassOptions
}

func NewSass(compiler Compiler, opts SassOptions) *Sass {
	return &Sass{compiler: compiler, opts: opts}
}

func (s *Sass) Name() string { return "sass" }

func (s *Sass) Accepts(f Format) bool { return f == FormatSource }

func (s *Sass) Produces() Format { return FormatStylesheet }

func (s *Sass) Transform(ctx context.Context, a *Artifact) (*Artifact, error) {
	res, err := s.compiler.Compile(ctx, sass.Request{
		Path:                a.Path,
		Source:              string(a.Contents),
		Globs:               s.opts.Importer == "glob",
		IncludePaths:        s.opts.IncludePaths,
		SourceMap:           s.opts.SourceMap,
		OutputStyle:         s.opts.OutputStyle,
		SilenceDeprecations: s.opts.SilenceDeprecations,
	})
	if err != nil {
		if errors.Is(err, sass.ErrUnresolvedImport) {
			return nil, fmt.Errorf("%w: %w", ErrUnresolved, err)
		}
		return nil, err
	}

	next := a.With(FormatStylesheet, []byte(res.CSS))
	if res.SourceMap != "" {
		next.SourceMap = []byte(res.SourceMap)
	}
	next.Dependencies = append(next.Dependencies, res.Dependencies...)

	return next, nil
}
