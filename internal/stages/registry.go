package stages

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/evanw/esbuild/pkg/api"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownStage is returned for a stage name with no registered factory.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrNoCompiler is returned when a sass stage is configured without a compiler.
	ErrNoCompiler = errors.New("sass stage needs a compiler")
)

// Env carries the shared collaborators stage factories may need.
type Env struct {
	Target api.Target
	Sass   Compiler
}

// Factory builds a stage from its raw options.
type Factory func(options *yaml.Node, env Env) (Stage, error)

var factories = map[string]Factory{
	"transpile": func(options *yaml.Node, env Env) (Stage, error) {
		var opts TranspileOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		target := env.Target
		if opts.Target != "" {
			t, err := ParseTarget(opts.Target)
			if err != nil {
				return nil, err
			}
			target = t
		}
		return NewTranspile(target), nil
	},
	"asset": func(options *yaml.Node, env Env) (Stage, error) {
		var opts AssetOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return NewAsset(opts.Name)
	},
	"sass": func(options *yaml.Node, env Env) (Stage, error) {
		var opts SassOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		if env.Sass == nil {
			return nil, ErrNoCompiler
		}
		return NewSass(env.Sass, opts), nil
	},
	"resolve-url": func(options *yaml.Node, env Env) (Stage, error) {
		return NewResolveURL(), nil
	},
	"postcss": func(options *yaml.Node, env Env) (Stage, error) {
		var opts PostCSSOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return NewPostCSS(opts), nil
	},
	"css": func(options *yaml.Node, env Env) (Stage, error) {
		return NewCSS(), nil
	},
}

// New builds the named stage.
func New(name string, options *yaml.Node, env Env) (Stage, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownStage, name, Names())
	}

	s, err := f(options, env)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	return s, nil
}

// Names lists the registered stage names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(factories))
}

func decode(options *yaml.Node, v any) error {
	if options == nil || options.Kind == 0 {
		return nil
	}
	if err := options.Decode(v); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
