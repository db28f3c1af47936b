package assets

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"maps"
	"os"
	"sync"
	"time"
)

//go:embed templates/*.html
var templates embed.FS

const previewTemplate = "preview.html"

// BuildMetadata is the subset of the bundler metafile the pipeline reads.
type BuildMetadata struct {
	Inputs  map[string]InputInfo  `json:"inputs"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type InputInfo struct {
	Bytes   int          `json:"bytes"`
	Imports []ImportInfo `json:"imports"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Bytes      int          `json:"bytes"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Result summarises a successful build.
type Result struct {
	ID      string
	Outputs []*OutputFile
	// Written lists outputs whose content changed on disk.
	Written []string
	// Inputs lists every source read through a stage rule.
	Inputs   []string
	Warnings []string
	Duration time.Duration
}

// Pipeline runs builds for one descriptor and serves the last build's outputs.
type Pipeline struct {
	config Config
	last   *BuildContext
	tmpl   *template.Template
	mu     sync.RWMutex
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithTemplateFuncs parses the preview template with additional functions.
func WithTemplateFuncs(customFuncs template.FuncMap) Option {
	return func(p *Pipeline) error {
		tmpl, err := parseTemplate(customFuncs)
		if err != nil {
			return err
		}
		p.tmpl = tmpl
		return nil
	}
}

// WithTemplateFile replaces the embedded preview page with a template file.
func WithTemplateFile(templatePath string) Option {
	return func(p *Pipeline) error {
		b, err := os.ReadFile(templatePath)
		if err != nil {
			return err
		}
		tmpl, err := template.New(previewTemplate).Funcs(templateFuncs(nil)).Parse(string(b))
		if err != nil {
			return err
		}
		p.tmpl = tmpl
		return nil
	}
}

// New creates a new asset pipeline with the given configuration
func New(config Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		config: config,
	}

	tmpl, err := parseTemplate(nil)
	if err != nil {
		return nil, err
	}
	p.tmpl = tmpl

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Config returns the descriptor the pipeline was created with.
func (p *Pipeline) Config() Config {
	return p.config
}

func parseTemplate(customFuncs template.FuncMap) (*template.Template, error) {
	return template.New(previewTemplate).Funcs(templateFuncs(customFuncs)).ParseFS(templates, "templates/"+previewTemplate)
}

func templateFuncs(customFuncs template.FuncMap) template.FuncMap {
	funcs := template.FuncMap{
		"marshal": marshal,
	}

	// Merge custom functions
	maps.Copy(funcs, customFuncs)

	return funcs
}

func marshal(value any) (template.JS, error) {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		return "", errors.New("context can only be json serializable")
	}

	return template.JS(buf.String()), nil //nolint:gosec
}
