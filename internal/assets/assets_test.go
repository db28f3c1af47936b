package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/themepack/internal/sass"
	"github.com/wolfeidau/themepack/internal/stages"
)

var logoPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
}

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/index.js":  "import \"./style.css\";\nimport { greet } from \"./greet.js\";\ngreet(\"main\");\n",
		"src/greet.js":  "export const greet = (name) => console.log(name ?? \"anonymous\");\n",
		"src/editor.js": "import { greet } from \"./greet.js\";\ngreet(\"editor\");\n",
		"src/style.css": ".logo {\n  background: url(./logo.png);\n}\n",
		"src/logo.png":  string(logoPNG),
	})
	return root
}

func testRules(t *testing.T) []Rule {
	t.Helper()

	scripts, err := stages.Compose(stages.NewTranspile(api.ES2015))
	require.NoError(t, err)

	asset, err := stages.NewAsset("assets/[name]_[hash].[ext]")
	require.NoError(t, err)
	assetChain, err := stages.Compose(asset)
	require.NoError(t, err)

	styles, err := stages.Compose(stages.NewCSS(), stages.NewResolveURL())
	require.NoError(t, err)

	return []Rule{
		{Name: "scripts", Test: regexp.MustCompile(`\.js$`), Exclude: regexp.MustCompile(`node_modules`), Stage: scripts},
		{Name: "assets", Test: regexp.MustCompile(`(?i)\.(gif|png|jpe?g|svg|woff2?)$`), Stage: assetChain},
		{Name: "styles", Test: regexp.MustCompile(`\.s?css$`), Stage: styles},
	}
}

func testConfig(t *testing.T, root string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Root = root
	cfg.Entries = []Entry{
		{Name: "main", Path: "src/index.js"},
		{Name: "editor", Path: "src/editor.js"},
	}
	cfg.Rules = testRules(t)
	return cfg
}

func readOutput(t *testing.T, root, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "dist", filepath.FromSlash(name)))
	require.NoError(t, err)
	return b
}

func TestBuild_twoEntriesWithSourceMaps(t *testing.T) {
	root := setupProject(t)

	res, err := Build(context.Background(), testConfig(t, root))
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)

	for _, name := range []string{
		"main.bundle.js", "main.bundle.js.map",
		"editor.bundle.js", "editor.bundle.js.map",
		"main.bundle.css", "main.bundle.css.map",
	} {
		require.FileExists(t, filepath.Join(root, "dist", name))
	}

	main := readOutput(t, root, "main.bundle.js")
	require.Contains(t, string(main), "//# sourceMappingURL=main.bundle.js.map")
	require.NotContains(t, string(main), "??")

	kinds := map[string]OutputKind{}
	bundles := map[string]string{}
	for _, o := range res.Outputs {
		kinds[o.Path] = o.Kind
		bundles[o.Path] = o.Bundle
	}
	require.Equal(t, KindScript, kinds["main.bundle.js"])
	require.Equal(t, KindSourceMap, kinds["editor.bundle.js.map"])
	require.Equal(t, KindStylesheet, kinds["main.bundle.css"])
	require.Equal(t, "main", bundles["main.bundle.js"])
	require.Equal(t, "editor", bundles["editor.bundle.js.map"])
	require.Equal(t, "main", bundles["main.bundle.css"])

	require.Contains(t, res.Inputs, filepath.Join(root, "src", "greet.js"))
	require.Contains(t, res.Inputs, filepath.Join(root, "src", "style.css"))
}

func TestBuild_idempotent(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)

	first, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, first.Written)

	snapshot := map[string][]byte{}
	for _, o := range first.Outputs {
		snapshot[o.Path] = readOutput(t, root, o.Path)
	}

	second, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.Empty(t, second.Written)
	require.Len(t, second.Outputs, len(first.Outputs))

	for _, o := range second.Outputs {
		require.Equal(t, snapshot[o.Path], readOutput(t, root, o.Path), o.Path)
	}
}

func TestBuild_assetHashing(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)

	_, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	first, err := filepath.Glob(filepath.Join(root, "dist", "assets", "logo_*.png"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, logoPNG, readOutput(t, root, "assets/"+filepath.Base(first[0])))

	css := readOutput(t, root, "main.bundle.css")
	require.Contains(t, string(css), "assets/"+filepath.Base(first[0]))

	// unchanged content keeps the name
	_, err = Build(context.Background(), cfg)
	require.NoError(t, err)
	again, err := filepath.Glob(filepath.Join(root, "dist", "assets", "logo_*.png"))
	require.NoError(t, err)
	require.Equal(t, first, again)

	// changed content yields a new name
	writeFiles(t, root, map[string]string{"src/logo.png": string(append(logoPNG, 1))})
	cfg.Output.Dir = "dist-changed"
	_, err = Build(context.Background(), cfg)
	require.NoError(t, err)
	changed, err := filepath.Glob(filepath.Join(root, "dist-changed", "assets", "logo_*.png"))
	require.NoError(t, err)
	require.Len(t, changed, 1)
	require.NotEqual(t, filepath.Base(first[0]), filepath.Base(changed[0]))
}

func TestBuild_syntaxErrorWritesNothing(t *testing.T) {
	root := setupProject(t)
	writeFiles(t, root, map[string]string{"src/greet.js": "export const = ;\n"})

	_, err := Build(context.Background(), testConfig(t, root))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTransform)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.NotEmpty(t, buildErr.Messages)
	require.Contains(t, buildErr.Error(), "greet.js")

	require.NoFileExists(t, filepath.Join(root, "dist", "main.bundle.js"))
	require.NoFileExists(t, filepath.Join(root, "dist", "editor.bundle.js"))
}

func TestBuild_unresolvedImport(t *testing.T) {
	root := setupProject(t)
	writeFiles(t, root, map[string]string{"src/editor.js": "import \"./missing.js\";\n"})

	_, err := Build(context.Background(), testConfig(t, root))
	require.ErrorIs(t, err, ErrResolution)
	require.NoFileExists(t, filepath.Join(root, "dist", "main.bundle.js"))
}

type missingImportCompiler struct{}

func (missingImportCompiler) Compile(ctx context.Context, req sass.Request) (*sass.Result, error) {
	return nil, fmt.Errorf("%w: Can't find stylesheet to import", sass.ErrUnresolvedImport)
}

func TestBuild_unresolvedStylesheetImport(t *testing.T) {
	root := setupProject(t)
	writeFiles(t, root, map[string]string{
		"src/index.js":   "import \"./theme.scss\";\n",
		"src/theme.scss": "@import \"missing\";\n",
	})

	styles, err := stages.Compose(stages.NewSass(missingImportCompiler{}, stages.SassOptions{}), stages.NewCSS())
	require.NoError(t, err)

	cfg := testConfig(t, root)
	cfg.Rules = append([]Rule{{Name: "sass", Test: regexp.MustCompile(`\.scss$`), Stage: styles}}, cfg.Rules...)

	_, err = Build(context.Background(), cfg)
	require.ErrorIs(t, err, ErrResolution)
	require.NoFileExists(t, filepath.Join(root, "dist", "main.bundle.js"))
}

func TestBuild_noLoader(t *testing.T) {
	root := setupProject(t)
	writeFiles(t, root, map[string]string{
		"src/editor.js": "import data from \"./data.xyz\";\nconsole.log(data);\n",
		"src/data.xyz":  "???",
	})

	_, err := Build(context.Background(), testConfig(t, root))
	require.ErrorIs(t, err, ErrTransform)
}

func TestBuild_contentHashFilename(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)
	cfg.Output.Filename = "[name].[contenthash].js"
	cfg.Devtool = DevtoolNone

	res, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	scripts, err := filepath.Glob(filepath.Join(root, "dist", "main.*.js"))
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	require.Regexp(t, `^main\.[A-Z0-9]+\.js$`, filepath.Base(scripts[0]))

	for _, o := range res.Outputs {
		require.NotEqual(t, KindSourceMap, o.Kind, o.Path)
	}
}

func TestBuild_inlineSourceMap(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)
	cfg.Devtool = DevtoolInline

	_, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	require.Contains(t, string(readOutput(t, root, "main.bundle.js")), "sourceMappingURL=data:application/json;base64,")
	require.NoFileExists(t, filepath.Join(root, "dist", "main.bundle.js.map"))
}

func TestBuild_hooks(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)

	var calls []string
	cfg.BeforeBuild = []Hook{
		{Name: "first", Run: func(ctx context.Context, bc *BuildContext) (*BuildContext, error) {
			calls = append(calls, "before:first")
			require.Empty(t, bc.Outputs)
			return nil, nil
		}},
		{Name: "second", Run: func(ctx context.Context, bc *BuildContext) (*BuildContext, error) {
			calls = append(calls, "before:second")
			return bc, nil
		}},
	}
	cfg.AfterBuild = []Hook{
		{Name: "banner", Run: func(ctx context.Context, bc *BuildContext) (*BuildContext, error) {
			calls = append(calls, "after:banner")
			require.NotNil(t, bc.Metadata)
			_, ok := bc.Output("main.bundle.js")
			require.True(t, ok)
			return bc, bc.AddOutput(&OutputFile{Path: "BUILD", Contents: []byte("ok"), Kind: KindAsset})
		}},
	}

	_, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"before:first", "before:second", "after:banner"}, calls)
	require.Equal(t, []byte("ok"), readOutput(t, root, "BUILD"))
}

func TestBuild_hookErrorAborts(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)

	boom := errors.New("boom")
	cfg.BeforeBuild = []Hook{{Name: "fail", Run: func(ctx context.Context, bc *BuildContext) (*BuildContext, error) {
		return nil, boom
	}}}

	_, err := Build(context.Background(), cfg)
	require.ErrorIs(t, err, boom)
	require.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestBuild_metafile(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)
	cfg.MetafilePath = "meta.json"

	_, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.Contains(t, string(readOutput(t, root, "meta.json")), `"outputs"`)
}

func TestBuild_writeError(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)

	// a file where the output directory should be
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist"), []byte("x"), 0o600))

	_, err := Build(context.Background(), cfg)
	require.ErrorIs(t, err, ErrWrite)
}
