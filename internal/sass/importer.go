package sass

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/gobwas/glob"
)

var _ godartsass.ImportResolver = (*Importer)(nil)

// ErrNotFileURL is returned when Load is handed a URL this importer did not canonicalize.
var ErrNotFileURL = errors.New("not a file URL")

var stylesheetExts = []string{".scss", ".sass", ".css"}

// Importer resolves Sass imports from the local filesystem. On top of the
// usual partial and index lookups it expands glob imports such as
//
//	@import "components/**/*.scss";
//
// into one import per matching file, sorted by path.
type Importer struct {
	baseDir      string
	includePaths []string
	globs        bool

	mu     sync.Mutex
	loaded []string
}

// NewImporter returns an importer resolving relative imports from baseDir,
// then from each include path in order.
func NewImporter(baseDir string, includePaths []string, globs bool) *Importer {
	return &Importer{
		baseDir:      baseDir,
		includePaths: includePaths,
		globs:        globs,
	}
}

// Loaded returns every file read by Load, in load order.
func (i *Importer) Loaded() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.loaded)
}

// CanonicalizeURL returns an absolute file URL for rawURL or an empty string
// when this importer cannot resolve it.
func (i *Importer) CanonicalizeURL(rawURL string) (string, error) {
	var candidates []string

	switch {
	case strings.HasPrefix(rawURL, "file:"):
		p, err := FileURLToPath(rawURL)
		if err != nil {
			return "", err
		}
		candidates = []string{p}
	case hasScheme(rawURL):
		// sass: built-ins and remote URLs belong to other importers.
		return "", nil
	default:
		rel := filepath.FromSlash(rawURL)
		candidates = append(candidates, filepath.Join(i.baseDir, rel))
		for _, dir := range i.includePaths {
			candidates = append(candidates, filepath.Join(dir, rel))
		}
	}

	for _, c := range candidates {
		if i.globs && isGlob(c) {
			matches, err := expandGlob(c)
			if err != nil {
				return "", err
			}
			if len(matches) > 0 {
				return PathToFileURL(c), nil
			}
			continue
		}

		if p, ok := resolvePartial(c); ok {
			return PathToFileURL(p), nil
		}
	}

	return "", nil
}

// Load returns the contents for a URL previously returned by CanonicalizeURL.
func (i *Importer) Load(canonicalURL string) (godartsass.Import, error) {
	p, err := FileURLToPath(canonicalURL)
	if err != nil {
		return godartsass.Import{}, err
	}

	if i.globs && isGlob(p) {
		matches, err := expandGlob(p)
		if err != nil {
			return godartsass.Import{}, err
		}

		var b strings.Builder
		for _, m := range matches {
			fmt.Fprintf(&b, "@import %q;\n", PathToFileURL(m))
		}
		return godartsass.Import{Content: b.String(), SourceSyntax: godartsass.SourceSyntaxSCSS}, nil
	}

	content, err := os.ReadFile(p)
	if err != nil {
		return godartsass.Import{}, err
	}

	i.mu.Lock()
	i.loaded = append(i.loaded, p)
	i.mu.Unlock()

	return godartsass.Import{Content: string(content), SourceSyntax: SyntaxFor(p)}, nil
}

// SyntaxFor picks the Sass syntax from a file extension.
func SyntaxFor(p string) godartsass.SourceSyntax {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".sass":
		return godartsass.SourceSyntaxSASS
	case ".css":
		return godartsass.SourceSyntaxCSS
	default:
		return godartsass.SourceSyntaxSCSS
	}
}

// PathToFileURL converts an absolute path to a percent-escaped file URL.
func PathToFileURL(p string) string {
	s := filepath.ToSlash(p)
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	u := url.URL{Scheme: "file", Path: s}
	return u.String()
}

// FileURLToPath converts a file URL back to a local path.
func FileURLToPath(u string) (string, error) {
	rest, ok := strings.CutPrefix(u, "file://")
	if !ok {
		rest, ok = strings.CutPrefix(u, "file:")
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrNotFileURL, u)
		}
	}

	p, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %q: %w", u, err)
	}

	// file:///C:/x on Windows
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}

	return filepath.FromSlash(p), nil
}

func hasScheme(s string) bool {
	scheme, _, ok := strings.Cut(s, ":")
	if !ok || len(scheme) < 2 {
		return false
	}
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// expandGlob returns the stylesheets matching pattern, sorted.
func expandGlob(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)

	// Walk from the longest directory prefix without meta characters.
	root := pattern
	if idx := strings.IndexAny(root, "*?[{"); idx >= 0 {
		root = root[:idx]
	}
	root = root[:strings.LastIndex(root, "/")+1]
	if root == "" {
		root = "."
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid glob import %q: %w", pattern, err)
	}

	var matches []string
	err = filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !slices.Contains(stylesheetExts, strings.ToLower(filepath.Ext(p))) {
			return nil
		}
		if g.Match(filepath.ToSlash(p)) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(matches)
	return matches, nil
}

// resolvePartial applies the Sass lookup rules for p: the exact file, the
// partial and non-partial forms with each extension, then an index file.
func resolvePartial(p string) (string, bool) {
	dir, base := filepath.Split(p)

	var candidates []string
	if ext := strings.ToLower(filepath.Ext(base)); slices.Contains(stylesheetExts, ext) {
		candidates = append(candidates, p, filepath.Join(dir, "_"+base))
	} else {
		for _, ext := range stylesheetExts {
			candidates = append(candidates,
				filepath.Join(dir, "_"+base+ext),
				filepath.Join(dir, base+ext),
			)
		}
		for _, ext := range stylesheetExts {
			candidates = append(candidates,
				filepath.Join(p, "_index"+ext),
				filepath.Join(p, "index"+ext),
			)
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}
