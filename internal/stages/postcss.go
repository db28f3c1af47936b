package stages

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	consolestream "github.com/wolfeidau/console-stream"
)

// PostCSSOptions configures the postcss stage. Args may reference the input
// and output stylesheet with {in} and {out}.
type PostCSSOptions struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// PostCSS hands the stylesheet to an external post-processor, for example
//
//	command: npx
//	args: [postcss, "{in}", -o, "{out}"]
//
// With no command configured the stylesheet passes through unchanged.
type PostCSS struct {
	opts PostCSSOptions
}

func NewPostCSS(opts PostCSSOptions) *PostCSS {
	return &PostCSS{opts: opts}
}

func (p *PostCSS) Name() string { return "postcss" }

func (p *PostCSS) Accepts(f Format) bool { return f == FormatStylesheet }

func (p *PostCSS) Produces() Format { return FormatStylesheet }

func (p *PostCSS) Transform(ctx context.Context, a *Artifact) (*Artifact, error) {
	if p.opts.Command == "" {
		return a, nil
	}

	dir, err := os.MkdirTemp("", "themepack-postcss-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.css")
	out := filepath.Join(dir, "out.css")
	if err := os.WriteFile(in, a.Contents, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write postcss input: %w", err)
	}

	args := make([]string, len(p.opts.Args))
	replacer := strings.NewReplacer("{in}", in, "{out}", out)
	for i, arg := range p.opts.Args {
		args[i] = replacer.Replace(arg)
	}

	opts := []consolestream.ProcessOption{
		consolestream.WithPipeMode(),
		consolestream.WithFlushInterval(100 * time.Millisecond),
	}
	if len(p.opts.Env) > 0 {
		opts = append(opts, consolestream.WithEnvMap(p.opts.Env))
	}

	process := consolestream.NewProcess(p.opts.Command, args, opts...)

	var output bytes.Buffer
	for event, err := range process.ExecuteAndStream(ctx) {
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w", p.opts.Command, err)
		}

		switch e := event.Event.(type) {
		case *consolestream.OutputData:
			output.Write(e.Data)
		case *consolestream.ProcessEnd:
			if e.ExitCode != 0 {
				return nil, fmt.Errorf("%s exited with code %d: %s", p.opts.Command, e.ExitCode, strings.TrimSpace(output.String()))
			}
		}
	}

	contents, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read postcss output: %w", err)
	}

	log.Debug().Str("path", a.Path).Str("command", p.opts.Command).Msg("Post-processed stylesheet")

	return a.With(FormatStylesheet, contents), nil
}
