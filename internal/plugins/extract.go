package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/wolfeidau/themepack/internal/assets"
	"github.com/wolfeidau/themepack/internal/cssurl"
)

// DefaultStylesheetName names extracted stylesheets after their entry.
const DefaultStylesheetName = "[name].css"

var sourceMappingURL = regexp.MustCompile(`/\*# sourceMappingURL=([^ *]+) \*/`)

// ExtractStylesheets gives each entry's stylesheet a name of its own instead
// of one derived from the script bundle, moving its source map with it.
func ExtractStylesheets(template string) assets.Hook {
	if template == "" {
		template = DefaultStylesheetName
	}

	return assets.Hook{
		Name: "extract-css",
		Run: func(ctx context.Context, bc *assets.BuildContext) (*assets.BuildContext, error) {
			for _, e := range bc.Entries {
				for _, css := range bc.BundleOutputs(e.Name, assets.KindStylesheet) {
					if err := extract(bc, css, strings.ReplaceAll(template, "[name]", e.Name)); err != nil {
						return nil, err
					}
				}
			}
			return bc, nil
		},
	}
}

func extract(bc *assets.BuildContext, css *assets.OutputFile, target string) error {
	if css.Path == target {
		return nil
	}

	fromDir, toDir := path.Dir(css.Path), path.Dir(target)
	oldMap := css.Path + ".map"
	if err := bc.Rename(css.Path, target); err != nil {
		return err
	}

	contents, err := cssurl.Rebase(css.Contents, fromDir, toDir)
	if err != nil {
		return fmt.Errorf("extract %s: %w", target, err)
	}
	css.Contents = contents

	sm, ok := bc.Output(oldMap)
	if !ok {
		return nil
	}

	if err := bc.Rename(oldMap, target+".map"); err != nil {
		return err
	}
	sm.Bundle = css.Bundle

	if sm.Contents, err = rebaseSources(sm.Contents, fromDir, toDir); err != nil {
		return fmt.Errorf("extract %s: %w", target+".map", err)
	}

	// the map URL is relative to the stylesheet
	oldURL := path.Base(oldMap)
	newURL := path.Base(target) + ".map"
	css.Contents = sourceMappingURL.ReplaceAllFunc(css.Contents, func(m []byte) []byte {
		if !bytes.Contains(m, []byte(oldURL)) {
			return m
		}
		return []byte("/*# sourceMappingURL=" + newURL + " */")
	})

	return nil
}

// rebaseSources moves the relative sources of a source map from fromDir to toDir.
func rebaseSources(sourceMap []byte, fromDir, toDir string) ([]byte, error) {
	if fromDir == toDir {
		return sourceMap, nil
	}

	var m map[string]any
	if err := json.Unmarshal(sourceMap, &m); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}

	sources, _ := m["sources"].([]any)
	for i, s := range sources {
		str, ok := s.(string)
		if !ok || !cssurl.IsRelative(str) {
			continue
		}
		if rebased, ok := cssurl.RebasePath(str, fromDir, toDir); ok {
			sources[i] = strings.TrimPrefix(rebased, "./")
		}
	}

	return json.Marshal(m)
}
