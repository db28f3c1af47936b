// Package theme turns a loaded descriptor into a runnable asset pipeline.
package theme

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/assets"
	"github.com/wolfeidau/themepack/internal/config"
	"github.com/wolfeidau/themepack/internal/logger"
	"github.com/wolfeidau/themepack/internal/plugins"
	"github.com/wolfeidau/themepack/internal/sass"
	"github.com/wolfeidau/themepack/internal/stages"
)

// Overrides are command line settings applied on top of the descriptor.
type Overrides struct {
	Minify bool
	// NoClean disables the clean hook even when the descriptor enables it.
	NoClean bool
	// Precompress adds encodings to those the descriptor lists.
	Precompress []string
}

// Theme owns the pipeline configuration and the shared Sass compiler.
type Theme struct {
	Config assets.Config

	compiler *sass.Compiler
}

// New compiles rules and stage chains and selects hooks.
func New(cfg *config.Config, overrides Overrides) (*Theme, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	target, err := stages.ParseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}

	compiler := sass.NewCompiler(sass.Options{
		Binary:    cfg.Sass.Binary,
		Timeout:   cfg.Sass.Timeout,
		LogEvents: logger.SassEvents(log.Logger),
	})

	env := stages.Env{Target: target, Sass: compiler}

	rules, err := buildRules(cfg.Rules, env)
	if err != nil {
		return nil, err
	}

	ac := assets.Config{
		Root: cfg.Root,
		Output: assets.OutputSpec{
			Dir:        cfg.Output.Path,
			PublicPath: cfg.Output.PublicPath,
			Filename:   cfg.Output.Filename,
		},
		Devtool:      assets.Devtool(cfg.Devtool),
		Target:       target,
		Minify:       cfg.Minify || overrides.Minify,
		Rules:        rules,
		MetafilePath: cfg.Metafile,
	}

	for _, name := range cfg.EntryNames() {
		ac.Entries = append(ac.Entries, assets.Entry{Name: name, Path: filepath.FromSlash(cfg.Entry[name])})
	}

	if cfg.Plugins.Clean && !overrides.NoClean {
		ac.BeforeBuild = append(ac.BeforeBuild, plugins.Clean())
	}
	if cfg.Plugins.ExtractCSS != nil {
		ac.AfterBuild = append(ac.AfterBuild, plugins.ExtractStylesheets(cfg.Plugins.ExtractCSS.Filename))
	}
	if encodings := mergeEncodings(cfg.Plugins.Precompress, overrides.Precompress); len(encodings) > 0 {
		ac.AfterBuild = append(ac.AfterBuild, plugins.Precompress(encodings...))
	}
	if cfg.Plugins.Manifest != "" {
		ac.AfterBuild = append(ac.AfterBuild, plugins.Manifest(cfg.Plugins.Manifest))
	}

	return &Theme{Config: ac, compiler: compiler}, nil
}

// Pipeline creates an asset pipeline for the theme.
func (t *Theme) Pipeline(opts ...assets.Option) (*assets.Pipeline, error) {
	return assets.New(t.Config, opts...)
}

// Close stops the Sass compiler if it was started.
func (t *Theme) Close() error {
	return t.compiler.Close()
}

func buildRules(rules []config.Rule, env stages.Env) ([]assets.Rule, error) {
	out := make([]assets.Rule, 0, len(rules))
	var errs []error

	for _, r := range rules {
		rule, err := buildRule(r, env)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.Name, err))
			continue
		}
		out = append(out, rule)
	}

	return out, errors.Join(errs...)
}

func buildRule(r config.Rule, env stages.Env) (assets.Rule, error) {
	test, err := regexp.Compile(r.Test)
	if err != nil {
		return assets.Rule{}, err
	}

	var exclude *regexp.Regexp
	if r.Exclude != "" {
		if exclude, err = regexp.Compile(r.Exclude); err != nil {
			return assets.Rule{}, err
		}
	}

	chain := make([]stages.Stage, 0, len(r.Use))
	for _, ref := range r.Use {
		s, err := stages.New(ref.Stage, &ref.Options, env)
		if err != nil {
			return assets.Rule{}, err
		}
		chain = append(chain, s)
	}

	stage, err := stages.Compose(chain...)
	if err != nil {
		return assets.Rule{}, err
	}

	log.Debug().Str("rule", r.Name).Str("stages", stage.Name()).Msg("Configured rule")

	return assets.Rule{Name: r.Name, Test: test, Exclude: exclude, Stage: stage}, nil
}

func mergeEncodings(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, enc := range list {
			if !slices.Contains(out, enc) {
				out = append(out, enc)
			}
		}
	}
	return out
}
