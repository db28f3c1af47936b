// Package cssurl rewrites url() references in compiled stylesheets so they
// point at the file the reference was written next to.
//
// When Sass inlines a partial from another directory the relative URLs in
// that partial stop making sense relative to the entry stylesheet. The source
// map produced by the compiler tells us which file each url() came from.
package cssurl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/go-sourcemap/sourcemap"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Rewrite returns src with every relative url() made relative to baseDir.
// Positions are mapped through sourceMap to find the original file; without a
// source map src is returned unchanged.
func Rewrite(src, sourceMap []byte, baseDir string) ([]byte, error) {
	if len(sourceMap) == 0 {
		return src, nil
	}

	var (
		consumer *sourcemap.Consumer
		out      bytes.Buffer
		line     = 1
		col      = 0
	)

	out.Grow(len(src))
	lexer := css.NewLexer(parse.NewInputBytes(src))

	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to lex css: %w", err)
			}
			break
		}

		if tt == css.URLToken {
			if consumer == nil {
				c, err := sourcemap.Parse("", sourceMap)
				if err != nil {
					return nil, fmt.Errorf("invalid source map: %w", err)
				}
				consumer = c
			}

			if rewritten, ok := rewriteToken(consumer, data, line, col, baseDir); ok {
				out.WriteString(rewritten)
				line, col = advance(line, col, data)
				continue
			}
		}

		out.Write(data)
		line, col = advance(line, col, data)
	}

	return out.Bytes(), nil
}

// advance moves a 1-based line and 0-based column past data. Columns count
// UTF-16 code units, as source maps do.
func advance(line, col int, data []byte) (int, int) {
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == '\n' {
			line++
			col = 0
			continue
		}
		if n := utf16.RuneLen(r); n > 0 {
			col += n
		} else {
			col++
		}
	}
	return line, col
}

func rewriteToken(consumer *sourcemap.Consumer, token []byte, line, col int, baseDir string) (string, bool) {
	ref, quote, ok := splitURLToken(string(token))
	if !ok || !IsRelative(ref) {
		return "", false
	}

	source, _, _, _, found := consumer.Source(line, col)
	if !found || source == "" {
		return "", false
	}

	origin := sourcePath(source, baseDir)
	originDir := filepath.Dir(origin)
	if originDir == filepath.Clean(baseDir) {
		return "", false
	}

	target, ok := relocate(ref, originDir, baseDir)
	if !ok {
		return "", false
	}

	return formatURL(target, quote), true
}

// Rebase rewrites the relative url() references of a stylesheet written for
// fromDir so they resolve to the same files from toDir. Both directories are
// slash-separated and relative to the same root.
func Rebase(src []byte, fromDir, toDir string) ([]byte, error) {
	if path.Clean(fromDir) == path.Clean(toDir) {
		return src, nil
	}

	var out bytes.Buffer
	out.Grow(len(src))
	lexer := css.NewLexer(parse.NewInputBytes(src))

	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to lex css: %w", err)
			}
			break
		}

		if tt == css.URLToken {
			if ref, quote, ok := splitURLToken(string(data)); ok && IsRelative(ref) {
				if target, ok := RebasePath(ref, fromDir, toDir); ok {
					out.WriteString(formatURL(target, quote))
					continue
				}
			}
		}

		out.Write(data)
	}

	return out.Bytes(), nil
}

// RebasePath moves a relative reference from fromDir to toDir, keeping any
// query or fragment.
func RebasePath(ref, fromDir, toDir string) (string, bool) {
	return relocate(ref, filepath.FromSlash(fromDir), filepath.FromSlash(toDir))
}

// relocate makes ref, relative to originDir, relative to baseDir.
func relocate(ref, originDir, baseDir string) (string, bool) {
	p, suffix := ref, ""
	if idx := strings.IndexAny(ref, "?#"); idx >= 0 {
		p, suffix = ref[:idx], ref[idx:]
	}

	rel, err := filepath.Rel(baseDir, filepath.Join(originDir, filepath.FromSlash(p)))
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}

	return rel + suffix, true
}

func formatURL(target, quote string) string {
	if quote == "" && strings.ContainsAny(target, " ()'\"") {
		quote = `"`
	}
	return "url(" + quote + target + quote + ")"
}

// splitURLToken returns the reference inside url(...) and the quote it used.
func splitURLToken(token string) (ref, quote string, ok bool) {
	open := strings.IndexByte(token, '(')
	if open < 0 {
		return "", "", false
	}

	inner := strings.TrimSuffix(token[open+1:], ")")
	inner = strings.TrimSpace(inner)

	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		quote = inner[:1]
		inner = inner[1 : len(inner)-1]
	}

	return inner, quote, inner != ""
}

// IsRelative reports whether ref is a relative path that needs rewriting.
func IsRelative(ref string) bool {
	switch {
	case ref == "",
		strings.HasPrefix(ref, "/"),
		strings.HasPrefix(ref, "#"),
		strings.HasPrefix(ref, "~"),
		strings.Contains(ref, "#{"):
		return false
	}

	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return false
	}

	return true
}

func sourcePath(source, baseDir string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme == "file" {
		return filepath.FromSlash(u.Path)
	}
	if filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(baseDir, filepath.FromSlash(source))
}
