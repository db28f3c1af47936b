package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/stages"
	"github.com/wolfeidau/themepack/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Build creates a pipeline for cfg and runs a single build.
func Build(ctx context.Context, cfg Config) (*Result, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return p.Build(ctx)
}

// Build runs the before hooks, bundles every entry through the configured
// rules, runs the after hooks and writes the outputs. Nothing is written when
// bundling fails.
func (p *Pipeline) Build(ctx context.Context) (res *Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "assets.Build")
	m := telemetry.GetMetrics()

	defer func() {
		m.BuildsTotal.Add(ctx, 1)
		m.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
		if err != nil {
			m.BuildFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", failureKind(err))))
			span.RecordError(err)
			span.SetStatus(codes.Error, "build failed")
		}
		span.End()
	}()

	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	root, err := p.config.RootDir()
	if err != nil {
		return nil, err
	}
	outDir, err := p.config.OutputDir()
	if err != nil {
		return nil, err
	}

	bc := newBuildContext(root, outDir, p.config)
	span.SetAttributes(attribute.String("build.id", bc.ID))

	log.Info().Str("build_id", bc.ID).Strs("entrypoints", entryList(bc.Entries)).Msg("Building assets")

	bc, err = phase(ctx, "before_build", func(ctx context.Context) (*BuildContext, error) {
		return runHooks(ctx, "before", p.config.BeforeBuild, bc)
	})
	if err != nil {
		return nil, err
	}

	var warnings []string
	bc, err = phase(ctx, "bundle", func(ctx context.Context) (*BuildContext, error) {
		w, err := p.bundle(ctx, bc)
		warnings = w
		return bc, err
	})
	if err != nil {
		return nil, err
	}

	bc, err = phase(ctx, "after_build", func(ctx context.Context) (*BuildContext, error) {
		return runHooks(ctx, "after", p.config.AfterBuild, bc)
	})
	if err != nil {
		return nil, err
	}

	var written []string
	_, err = phase(ctx, "emit", func(ctx context.Context) (*BuildContext, error) {
		written, err = emit(ctx, bc)
		return bc, err
	})
	if err != nil {
		return nil, err
	}

	p.last = bc

	res = &Result{
		ID:       bc.ID,
		Outputs:  bc.Outputs,
		Written:  written,
		Inputs:   bc.Inputs(),
		Warnings: warnings,
		Duration: time.Since(started),
	}

	log.Info().
		Str("build_id", bc.ID).
		Int("outputs", len(res.Outputs)).
		Int("written", len(res.Written)).
		Dur("duration", res.Duration).
		Msg("Build complete")

	return res, nil
}

func (p *Pipeline) bundle(ctx context.Context, bc *BuildContext) ([]string, error) {
	opts, err := p.buildOptions(ctx, bc)
	if err != nil {
		return nil, err
	}

	result := api.Build(opts)

	var warnings []string
	for _, msg := range result.Warnings {
		warnings = append(warnings, stages.FormatMessage(msg))
		log.Warn().Str("warning", msg.Text).Str("location", location(msg)).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Str("location", location(msg)).Msg("Build error")
		}
		buildErr := newBuildError(result.Errors)
		if bc.hasUnresolved() {
			buildErr.Kind = ErrResolution
		}
		return warnings, buildErr
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return warnings, fmt.Errorf("failed to parse metafile: %w", err)
	}
	bc.Metadata = &metadata

	if err := collectOutputs(bc, result.OutputFiles); err != nil {
		return warnings, err
	}

	if p.config.MetafilePath != "" {
		err := bc.AddOutput(&OutputFile{
			Path:     filepath.ToSlash(filepath.Clean(p.config.MetafilePath)),
			Contents: []byte(result.Metafile),
			Kind:     KindAsset,
		})
		if err != nil {
			return warnings, err
		}
	}

	return warnings, nil
}

func (p *Pipeline) buildOptions(ctx context.Context, bc *BuildContext) (api.BuildOptions, error) {
	names, static, err := entryNames(p.config.Output.Filename)
	if err != nil {
		return api.BuildOptions{}, err
	}

	assets, err := assetNames(p.config.Rules)
	if err != nil {
		return api.BuildOptions{}, err
	}

	sourceMap, err := p.config.Devtool.sourceMap()
	if err != nil {
		return api.BuildOptions{}, err
	}

	entryPoints := make([]api.EntryPoint, 0, len(bc.Entries))
	for _, e := range bc.Entries {
		out := e.Name
		if static {
			out = strings.ReplaceAll(names, "[name]", e.Name)
		}
		entryPoints = append(entryPoints, api.EntryPoint{InputPath: e.Path, OutputPath: out})
	}

	entryTemplate := names
	if static {
		entryTemplate = "[name]"
	}

	mode := "development"
	if p.config.Minify {
		mode = "production"
	}

	return api.BuildOptions{
		AbsWorkingDir:       bc.Root,
		EntryPointsAdvanced: entryPoints,
		Bundle:              true,
		Write:               false,
		Outdir:              bc.OutputDir,
		EntryNames:          entryTemplate,
		AssetNames:          assets,
		PublicPath:          bc.PublicPath,
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		Target:              p.config.Target,
		MinifyWhitespace:    p.config.Minify,
		MinifyIdentifiers:   p.config.Minify,
		MinifySyntax:        p.config.Minify,
		Sourcemap:           sourceMap,
		Define:              map[string]string{"process.env.NODE_ENV": fmt.Sprintf("%q", mode)},
		Metafile:            true,
		LogLevel:            api.LogLevelSilent,
		Plugins:             []api.Plugin{p.rulesPlugin(ctx, bc)},
	}, nil
}

// collectOutputs records the bundler outputs relative to the output dir and
// attributes each to its entry using the metafile.
func collectOutputs(bc *BuildContext, files []api.OutputFile) error {
	bundles := bundleIndex(bc)

	for _, f := range files {
		rel, err := filepath.Rel(bc.OutputDir, f.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return writeError(fmt.Errorf("output %s is outside %s", f.Path, bc.OutputDir))
		}
		rel = filepath.ToSlash(rel)

		kind := kindOf(rel)
		bundle := bundles[rel]
		if kind == KindSourceMap {
			bundle = bundles[strings.TrimSuffix(rel, ".map")]
		}

		if err := bc.AddOutput(&OutputFile{Path: rel, Contents: f.Contents, Kind: kind, Bundle: bundle}); err != nil {
			return err
		}
	}

	return nil
}

func bundleIndex(bc *BuildContext) map[string]string {
	byInput := make(map[string]string, len(bc.Entries))
	for _, e := range bc.Entries {
		if rel, err := filepath.Rel(bc.Root, e.Path); err == nil {
			byInput[filepath.ToSlash(rel)] = e.Name
		}
	}

	index := make(map[string]string)
	if bc.Metadata == nil {
		return index
	}

	for key, info := range bc.Metadata.Outputs {
		name, ok := byInput[info.EntryPoint]
		if !ok {
			continue
		}
		index[bc.outputRel(key)] = name
		if info.CSSBundle != "" {
			index[bc.outputRel(info.CSSBundle)] = name
		}
	}

	return index
}

// outputRel converts a metafile path, relative to the root, to a path
// relative to the output directory.
func (bc *BuildContext) outputRel(key string) string {
	rel, err := filepath.Rel(bc.OutputDir, filepath.Join(bc.Root, filepath.FromSlash(key)))
	if err != nil {
		return key
	}
	return filepath.ToSlash(rel)
}

func phase(ctx context.Context, name string, fn func(ctx context.Context) (*BuildContext, error)) (*BuildContext, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "assets."+name)
	defer span.End()

	bc, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
	}
	return bc, err
}

// Assets returns the public script and stylesheet URLs for an entry from the
// last successful build.
func (p *Pipeline) Assets(entry string) (scripts, styles []string, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.last == nil {
		return nil, nil, ErrNotBuilt
	}

	found := false
	for _, e := range p.last.Entries {
		found = found || e.Name == entry
	}
	if !found {
		return nil, nil, fmt.Errorf("entrypoint %q not found in build", entry)
	}

	for _, o := range p.last.BundleOutputs(entry, KindScript) {
		scripts = append(scripts, p.last.PublicURL(o.Path))
	}
	for _, o := range p.last.BundleOutputs(entry, KindStylesheet) {
		styles = append(styles, p.last.PublicURL(o.Path))
	}

	return scripts, styles, nil
}

// Handler returns an http.HandlerFunc rendering a preview page for an entry.
// An empty entry takes the name from the "entry" path value.
func (p *Pipeline) Handler(entry, title string, contextFn func(ctx context.Context) any) http.HandlerFunc {
	if contextFn == nil {
		contextFn = func(ctx context.Context) any {
			return nil
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		name := entry
		if name == "" {
			name = r.PathValue("entry")
		}

		scripts, styles, err := p.Assets(name)
		if errors.Is(err, ErrNotBuilt) {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			log.Debug().Err(err).Str("entry", name).Msg("Failed to load assets")
			http.NotFound(w, r)
			return
		}

		data := map[string]any{
			"Title":   cond(title != "", title, name),
			"Entry":   name,
			"Scripts": scripts,
			"Styles":  styles,
			"Context": contextFn(r.Context()),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := p.tmpl.ExecuteTemplate(w, previewTemplate, data); err != nil {
			log.Error().Err(err).Msg("Failed to render template")
		}
	}
}

func entryList(entries []Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrTransform):
		return "transform"
	case errors.Is(err, ErrWrite):
		return "write"
	default:
		return "other"
	}
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
