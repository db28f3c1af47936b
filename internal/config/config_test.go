package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("/project")

	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"editor", "main"}, cfg.EntryNames())
	require.Equal(t, "src/index.js", cfg.Entry["main"])
	require.Equal(t, "dist", cfg.Output.Path)
	require.Equal(t, "[name].bundle.js", cfg.Output.Filename)
	require.Equal(t, "source-map", cfg.Devtool)

	require.Len(t, cfg.Rules, 3)
	styles := cfg.Rules[2]
	var names []string
	for _, s := range styles.Use {
		names = append(names, s.Stage)
	}
	require.Equal(t, []string{"sass", "resolve-url", "postcss", "css"}, names)

	var sassOpts struct {
		SourceMap bool   `yaml:"sourceMap"`
		Importer  string `yaml:"importer"`
	}
	require.NoError(t, styles.Use[0].Options.Decode(&sassOpts))
	require.True(t, sassOpts.SourceMap)
	require.Equal(t, "glob", sassOpts.Importer)

	require.True(t, cfg.Plugins.Clean)
	require.Equal(t, "[name].css", cfg.Plugins.ExtractCSS.Filename)
}

func TestParse(t *testing.T) {
	doc := `
entry:
  site: assets/site.js
output:
  path: public/build
  publicPath: /build/
  filename: "[name].[contenthash].js"
devtool: hidden-source-map
target: es2020
minify: true
rules:
  - name: scripts
    test: '\.m?js$'
    exclude: node_modules
    use: [transpile]
  - name: styles
    test: '\.scss$'
    use:
      - stage: sass
        options:
          includePaths: [node_modules]
          outputStyle: compressed
      - css
plugins:
  clean: true
  precompress: [gzip, zstd]
  manifest: manifest.json
sass:
  binary: /usr/local/bin/sass
  timeout: 45s
`
	cfg, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "/project", cfg.Root)
	require.Equal(t, map[string]string{"site": "assets/site.js"}, cfg.Entry)
	require.Equal(t, "public/build", cfg.Output.Path)
	require.Equal(t, "/build/", cfg.Output.PublicPath)
	require.Equal(t, "hidden-source-map", cfg.Devtool)
	require.True(t, cfg.Minify)

	require.Len(t, cfg.Rules, 2)
	require.Equal(t, "transpile", cfg.Rules[0].Use[0].Stage)
	require.Equal(t, "sass", cfg.Rules[1].Use[0].Stage)
	require.Equal(t, "css", cfg.Rules[1].Use[1].Stage)

	var sassOpts struct {
		IncludePaths []string `yaml:"includePaths"`
		OutputStyle  string   `yaml:"outputStyle"`
	}
	require.NoError(t, cfg.Rules[1].Use[0].Options.Decode(&sassOpts))
	require.Equal(t, []string{"node_modules"}, sassOpts.IncludePaths)
	require.Equal(t, "compressed", sassOpts.OutputStyle)

	require.Nil(t, cfg.Plugins.ExtractCSS)
	require.Equal(t, []string{"gzip", "zstd"}, cfg.Plugins.Precompress)
	require.Equal(t, "manifest.json", cfg.Plugins.Manifest)
	require.Equal(t, "/usr/local/bin/sass", cfg.Sass.Binary)
	require.Equal(t, 45*time.Second, cfg.Sass.Timeout)
}

func TestParse_defaultsForMissingFields(t *testing.T) {
	cfg, err := Parse([]byte("entry:\n  app: src/app.js\n"), "/project")
	require.NoError(t, err)

	require.Equal(t, []string{"app"}, cfg.EntryNames())
	require.Equal(t, "dist", cfg.Output.Path)
	require.Equal(t, "[name].bundle.js", cfg.Output.Filename)
	require.Equal(t, "source-map", cfg.Devtool)
	require.Len(t, cfg.Rules, 3)
	require.False(t, cfg.Plugins.Clean)
}

func TestParse_duplicateEntry(t *testing.T) {
	_, err := Parse([]byte("entry:\n  main: a.js\n  main: b.js\n"), "/project")
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorContains(t, err, "already defined")
}

func TestValidate_reportsEveryProblem(t *testing.T) {
	cfg := Default("/project")
	cfg.Devtool = "eval"
	cfg.Target = "es3"
	cfg.Rules = append(cfg.Rules, Rule{Name: "broken", Test: "(", Use: []StageRef{{Stage: "less"}}})
	cfg.Plugins.Precompress = []string{"brotli"}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, want := range []string{"devtool", "es3", "invalid test", `unknown stage "less"`, "brotli"} {
		require.ErrorContains(t, err, want)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte("entry:\n  main: src/main.js\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Root)
	require.Equal(t, "src/main.js", cfg.Entry["main"])
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, DefaultFilename))
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Root)
	require.Equal(t, []string{"editor", "main"}, cfg.EntryNames())

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFilename), []byte("entry: [oops"), 0o600))
	_, err = LoadOrDefault(filepath.Join(dir, DefaultFilename))
	require.ErrorIs(t, err, ErrInvalidConfig)
}
