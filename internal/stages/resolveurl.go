package stages

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/cssurl"
)

// ResolveURL rewrites relative url() references using the source map from an
// earlier stage, so references written in an imported partial still point at
// files next to that partial once everything is inlined into one stylesheet.
// It must run before anything moves the stylesheet.
type ResolveURL struct{}

func NewResolveURL() *ResolveURL { return &ResolveURL{} }

func (r *ResolveURL) Name() string { return "resolve-url" }

func (r *ResolveURL) Accepts(f Format) bool { return f == FormatStylesheet }

func (r *ResolveURL) Produces() Format { return FormatStylesheet }

func (r *ResolveURL) Transform(ctx context.Context, a *Artifact) (*Artifact, error) {
	if len(a.SourceMap) == 0 {
		log.Debug().Str("path", a.Path).Msg("No source map, url() references left as written")
		return a, nil
	}

	out, err := cssurl.Rewrite(a.Contents, a.SourceMap, a.ResolveDir)
	if err != nil {
		return nil, err
	}

	next := a.With(FormatStylesheet, out)
	next.SourceMap = a.SourceMap
	return next, nil
}
