package stages

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
)

// CSS hands a stylesheet to the bundler. Plain .css sources enter the chain
// here; stylesheets from earlier stages get their source map embedded so the
// bundler can chain it into the emitted map.
type CSS struct{}

func NewCSS() *CSS { return &CSS{} }

func (c *CSS) Name() string { return "css" }

func (c *CSS) Accepts(f Format) bool { return f == FormatSource || f == FormatStylesheet }

func (c *CSS) Produces() Format { return FormatStylesheet }

func (c *CSS) Transform(ctx context.Context, a *Artifact) (*Artifact, error) {
	if len(a.SourceMap) == 0 {
		return a.With(FormatStylesheet, a.Contents), nil
	}

	sm, err := relativeSources(a.SourceMap, a.ResolveDir)
	if err != nil {
		return nil, err
	}

	contents := make([]byte, 0, len(a.Contents)+len(sm)*2)
	contents = append(contents, a.Contents...)
	contents = append(contents, "\n/*# sourceMappingURL=data:application/json;base64,"...)
	contents = append(contents, base64.StdEncoding.EncodeToString(sm)...)
	contents = append(contents, " */\n"...)

	next := a.With(FormatStylesheet, contents)
	next.SourceMap = sm
	return next, nil
}

// relativeSources rewrites file:// sources to paths relative to dir, which is
// where the inline map will be read from.
func relativeSources(sourceMap []byte, dir string) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(sourceMap, &m); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}

	sources, _ := m["sources"].([]any)
	for i, s := range sources {
		str, ok := s.(string)
		if !ok {
			continue
		}
		u, err := url.Parse(str)
		if err != nil || u.Scheme != "file" {
			continue
		}
		rel, err := filepath.Rel(dir, filepath.FromSlash(u.Path))
		if err != nil {
			continue
		}
		sources[i] = filepath.ToSlash(rel)
	}

	return json.Marshal(m)
}
