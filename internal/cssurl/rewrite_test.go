package cssurl

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// sourceMap maps line 1 and 2 of the generated css to the source at index
// sourceIndex.
func sourceMap(sourceIndex int, sources ...string) []byte {
	mappings := "AAAA;EACE"
	if sourceIndex == 1 {
		mappings = "ACAA;EACE"
	}

	quoted := ""
	for i, s := range sources {
		if i > 0 {
			quoted += ","
		}
		quoted += fmt.Sprintf("%q", "file://"+filepath.ToSlash(s))
	}

	return []byte(fmt.Sprintf(`{"version":3,"sources":[%s],"names":[],"mappings":%q}`, quoted, mappings))
}

func TestRewrite_partialInAnotherDirectory(t *testing.T) {
	root := t.TempDir()
	baseDir := filepath.Join(root, "src")
	entry := filepath.Join(baseDir, "main.scss")
	partial := filepath.Join(baseDir, "components", "header", "_header.scss")

	src := []byte(".header {\n  background: url(./logo.png);\n}\n")

	out, err := Rewrite(src, sourceMap(1, entry, partial), baseDir)
	require.NoError(t, err)
	require.Equal(t, ".header {\n  background: url(./components/header/logo.png);\n}\n", string(out))
}

func TestRewrite_astralCharacterBeforeURL(t *testing.T) {
	root := t.TempDir()
	baseDir := filepath.Join(root, "src")
	entry := filepath.Join(baseDir, "main.scss")
	partial := filepath.Join(baseDir, "components", "_icon.scss")

	// the emoji is two UTF-16 units; url( starts at generated column 26
	src := []byte("a{content:\"\U0001F600\";background:url(./logo.png)}\n")
	sm := []byte(fmt.Sprintf(`{"version":3,"sources":[%q,%q],"names":[],"mappings":"AAAA,0BCAA"}`,
		"file://"+filepath.ToSlash(entry), "file://"+filepath.ToSlash(partial)))

	out, err := Rewrite(src, sm, baseDir)
	require.NoError(t, err)
	require.Contains(t, string(out), "url(./components/logo.png)")
}

func TestRewrite_quotedWithSuffix(t *testing.T) {
	root := t.TempDir()
	baseDir := filepath.Join(root, "src")
	partial := filepath.Join(root, "shared", "_fonts.scss")

	src := []byte("@font-face {\n  src: url(\"fonts/a.woff2?v=2#iefix\") format(\"woff2\");\n}\n")

	out, err := Rewrite(src, sourceMap(1, filepath.Join(baseDir, "main.scss"), partial), baseDir)
	require.NoError(t, err)
	require.Contains(t, string(out), `url("../shared/fonts/a.woff2?v=2#iefix")`)
}

func TestRewrite_sameDirectoryUnchanged(t *testing.T) {
	baseDir := t.TempDir()
	src := []byte(".logo {\n  background: url(img/logo.png);\n}\n")

	out, err := Rewrite(src, sourceMap(0, filepath.Join(baseDir, "main.scss")), baseDir)
	require.NoError(t, err)
	require.Equal(t, string(src), string(out))
}

func TestRewrite_nonRelativeUnchanged(t *testing.T) {
	root := t.TempDir()
	baseDir := filepath.Join(root, "src")
	partial := filepath.Join(baseDir, "components", "_x.scss")

	for _, ref := range []string{
		"data:image/png;base64,AAAA",
		"https://cdn.example.com/a.png",
		"/themes/custom/logo.png",
		"#mask",
	} {
		t.Run(ref, func(t *testing.T) {
			src := []byte(".x {\n  background: url(\"" + ref + "\");\n}\n")
			out, err := Rewrite(src, sourceMap(1, filepath.Join(baseDir, "main.scss"), partial), baseDir)
			require.NoError(t, err)
			require.Equal(t, string(src), string(out))
		})
	}
}

func TestRewrite_withoutSourceMap(t *testing.T) {
	src := []byte(".x { background: url(a.png); }")

	out, err := Rewrite(src, nil, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestRewrite_invalidSourceMap(t *testing.T) {
	_, err := Rewrite([]byte(".x { background: url(a.png); }"), []byte("{"), t.TempDir())
	require.Error(t, err)
}

func TestIsRelative(t *testing.T) {
	tests := []struct {
		ref      string
		expected bool
	}{
		{ref: "a.png", expected: true},
		{ref: "../img/a.png", expected: true},
		{ref: "./a.svg#icon", expected: true},
		{ref: "", expected: false},
		{ref: "/a.png", expected: false},
		{ref: "#id", expected: false},
		{ref: "~pkg/a.png", expected: false},
		{ref: "data:image/gif;base64,R0lGOD", expected: false},
		{ref: "http://example.com/a.png", expected: false},
		{ref: "img/#{$name}.png", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			require.Equal(t, tt.expected, IsRelative(tt.ref))
		})
	}
}

func TestRebase(t *testing.T) {
	src := []byte(".a{background:url(\"./assets/a.png?v=1\")}\n.b{background:url(/abs.png)}\n.c{background:url(img/c.svg#icon)}\n")

	out, err := Rebase(src, ".", "css")
	require.NoError(t, err)
	require.Equal(t, ".a{background:url(\"../assets/a.png?v=1\")}\n.b{background:url(/abs.png)}\n.c{background:url(../img/c.svg#icon)}\n", string(out))

	same, err := Rebase(src, "css", "css/")
	require.NoError(t, err)
	require.Equal(t, src, same)
}
