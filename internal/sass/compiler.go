// Package sass compiles Sass and SCSS stylesheets through the Dart Sass
// embedded protocol.
package sass

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
	"github.com/rs/zerolog/log"
)

var (
	// ErrClosed is returned by Compile after Close.
	ErrClosed = errors.New("sass compiler closed")
	// ErrUnresolvedImport is returned when an @import or @use target cannot be found.
	ErrUnresolvedImport = errors.New("unresolved stylesheet import")
)

// Options configures the Dart Sass process.
type Options struct {
	// Binary is the Dart Sass executable, "sass" from $PATH when empty.
	Binary string
	// Timeout bounds a single compilation.
	Timeout time.Duration
	// LogEvents receives @warn, @debug and deprecation messages.
	LogEvents func(godartsass.LogEvent)
}

// Request describes one stylesheet compilation.
type Request struct {
	// Path is the absolute path of the entry stylesheet.
	Path   string
	Source string
	// Globs enables glob imports.
	Globs               bool
	IncludePaths        []string
	SourceMap           bool
	OutputStyle         string
	SilenceDeprecations []string
}

// Result is the compiled CSS with its source map and the files it was built from.
type Result struct {
	CSS          string
	SourceMap    string
	Dependencies []string
}

// Compiler owns a single Dart Sass process, started on first use. It is safe
// for concurrent use.
type Compiler struct {
	opts Options

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
	closed     bool
}

// NewCompiler returns a compiler; no process is started until Compile is called.
func NewCompiler(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

func (c *Compiler) start() (*godartsass.Transpiler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if c.transpiler != nil && !c.transpiler.IsShutDown() {
		return c.transpiler, nil
	}

	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: c.opts.Binary,
		Timeout:                  c.opts.Timeout,
		LogEventHandler:          c.opts.LogEvents,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start dart sass: %w", err)
	}

	log.Debug().Str("binary", c.opts.Binary).Msg("Started dart sass")

	c.transpiler = t
	return t, nil
}

// Compile transpiles req.Source to CSS.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := c.start()
	if err != nil {
		return nil, err
	}

	importer := NewImporter(filepath.Dir(req.Path), req.IncludePaths, req.Globs)

	res, err := t.Execute(godartsass.Args{
		Source:              req.Source,
		URL:                 PathToFileURL(req.Path),
		SourceSyntax:        SyntaxFor(req.Path),
		OutputStyle:         godartsass.ParseOutputStyle(req.OutputStyle),
		EnableSourceMap:     req.SourceMap,
		ImportResolver:      importer,
		IncludePaths:        req.IncludePaths,
		SilenceDeprecations: req.SilenceDeprecations,
	})
	if err != nil {
		var sassErr godartsass.SassError
		if errors.As(err, &sassErr) && isUnresolved(sassErr.Message) {
			return nil, fmt.Errorf("%w: %w", ErrUnresolvedImport, err)
		}
		return nil, err
	}

	return &Result{
		CSS:          res.CSS,
		SourceMap:    res.SourceMap,
		Dependencies: importer.Loaded(),
	}, nil
}

// Close stops the Dart Sass process if one was started.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.transpiler == nil {
		return nil
	}

	err := c.transpiler.Close()
	c.transpiler = nil
	if errors.Is(err, godartsass.ErrShutdown) {
		return nil
	}
	return err
}

func isUnresolved(msg string) bool {
	return strings.HasPrefix(msg, "Can't find stylesheet to import")
}
