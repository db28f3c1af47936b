package assets

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/themepack/internal/stages"
)

// Rule routes files whose path matches Test, and not Exclude, through Stage.
type Rule struct {
	Name    string
	Test    *regexp.Regexp
	Exclude *regexp.Regexp
	Stage   stages.Stage
}

// Matches reports whether the rule applies to the given path. Paths are
// matched in slash form so expressions are portable.
func (r Rule) Matches(path string) bool {
	p := filepath.ToSlash(path)
	if r.Test == nil || !r.Test.MatchString(p) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(p)
}

// Classify returns the first rule matching path.
func Classify(rules []Rule, path string) (*Rule, bool) {
	for i := range rules {
		if rules[i].Matches(path) {
			return &rules[i], true
		}
	}
	return nil, false
}

func loaderFor(f stages.Format) (api.Loader, error) {
	switch f {
	case stages.FormatScript:
		return api.LoaderJS, nil
	case stages.FormatStylesheet:
		return api.LoaderCSS, nil
	case stages.FormatAsset:
		return api.LoaderFile, nil
	default:
		return api.LoaderNone, fmt.Errorf("no loader for %s output", f)
	}
}

// assetNames finds the name template shared by every asset stage in rules.
func assetNames(rules []Rule) (string, error) {
	var names []string
	for _, r := range rules {
		for _, s := range flatten(r.Stage) {
			if a, ok := s.(*stages.Asset); ok {
				names = append(names, a.Names())
			}
		}
	}

	if len(names) == 0 {
		return stages.AssetNames(stages.DefaultAssetNames)
	}
	for _, n := range names[1:] {
		if n != names[0] {
			return "", fmt.Errorf("%w: %q and %q", ErrConflictingAssetNames, names[0], n)
		}
	}
	return names[0], nil
}

func flatten(s stages.Stage) []stages.Stage {
	c, ok := s.(*stages.Chain)
	if !ok {
		if s == nil {
			return nil
		}
		return []stages.Stage{s}
	}
	var out []stages.Stage
	for _, inner := range c.Stages() {
		out = append(out, flatten(inner)...)
	}
	return out
}
