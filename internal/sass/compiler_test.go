package sass

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireDartSass(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sass"); err != nil {
		t.Skip("dart sass binary not found in PATH")
	}
}

func TestCompiler_globImport(t *testing.T) {
	requireDartSass(t)

	dir := t.TempDir()
	entry := filepath.Join(dir, "main.scss")
	writeFile(t, filepath.Join(dir, "components", "header", "_header.scss"), ".header { color: red; }")
	writeFile(t, filepath.Join(dir, "components", "footer", "_footer.scss"), ".footer { color: blue; }")

	c := NewCompiler(Options{})
	defer c.Close()

	res, err := c.Compile(context.Background(), Request{
		Path:                entry,
		Source:              `@import "components/**/*.scss";`,
		Globs:               true,
		SourceMap:           true,
		SilenceDeprecations: []string{"import"},
	})
	require.NoError(t, err)
	require.Contains(t, res.CSS, ".header")
	require.Contains(t, res.CSS, ".footer")
	require.NotEmpty(t, res.SourceMap)
	require.Len(t, res.Dependencies, 2)
}

func TestCompiler_closed(t *testing.T) {
	c := NewCompiler(Options{})
	require.NoError(t, c.Close())

	_, err := c.Compile(context.Background(), Request{Path: "/tmp/a.scss", Source: "a {}"})
	require.ErrorIs(t, err, ErrClosed)
}

func TestCompiler_unresolvedImport(t *testing.T) {
	requireDartSass(t)

	dir := t.TempDir()

	c := NewCompiler(Options{})
	defer c.Close()

	_, err := c.Compile(context.Background(), Request{
		Path:                filepath.Join(dir, "main.scss"),
		Source:              `@import "missing";`,
		SilenceDeprecations: []string{"import"},
	})
	require.ErrorIs(t, err, ErrUnresolvedImport)
}
