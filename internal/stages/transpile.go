package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a target name such as "es2015" to the esbuild constant.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ES2015, nil
	}
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown target %q", name)
	}
	return t, nil
}

// TranspileOptions configures the transpile stage.
type TranspileOptions struct {
	// Target overrides the descriptor-wide target for this rule.
	Target string `yaml:"target"`
}

// Transpile lowers modern script syntax to the configured target. It keeps
// imports intact so the bundler can still link modules, and attaches an
// inline source map the bundler chains into the bundle's map.
type Transpile struct {
	target api.Target
}

func NewTranspile(target api.Target) *Transpile {
	return &Transpile{target: target}
}

func (t *Transpile) Name() string { return "transpile" }

func (t *Transpile) Accepts(f Format) bool { return f == FormatSource }

func (t *Transpile) Produces() Format { return FormatScript }

func (t *Transpile) Transform(ctx context.Context, a *Artifact) (*Artifact, error) {
	result := api.Transform(string(a.Contents), api.TransformOptions{
		Loader:         scriptLoader(a.Ext()),
		Target:         t.target,
		Sourcefile:     filepath.Base(a.Path),
		Sourcemap:      api.SourceMapInline,
		SourcesContent: api.SourcesContentInclude,
		LogLevel:       api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		for i := range result.Errors {
			if loc := result.Errors[i].Location; loc != nil {
				loc.File = a.Path
			}
		}
		return nil, MessagesError(result.Errors)
	}

	return a.With(FormatScript, result.Code), nil
}

func scriptLoader(ext string) api.Loader {
	switch ext {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJS
	}
}
