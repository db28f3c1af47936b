package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/themepack/internal/config"
)

const descriptor = `
entry:
  main: src/index.js
rules:
  - name: scripts
    test: '\.js$'
    use: [transpile]
  - name: styles
    test: '\.css$'
    use: [css]
plugins:
  clean: true
  extractCss:
    filename: "[name].css"
`

func setupTheme(t *testing.T) *Globals {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		config.DefaultFilename: descriptor,
		"src/index.js":         "import \"./style.css\";\nconsole.log(\"hello\");\n",
		"src/style.css":        "body {\n  margin: 0;\n}\n",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	return &Globals{Config: filepath.Join(root, config.DefaultFilename), Version: "test"}
}

func TestBuildCmd(t *testing.T) {
	globals := setupTheme(t)
	root := filepath.Dir(globals.Config)

	cmd := &BuildCmd{BuildFlags: BuildFlags{Minify: true, Precompress: []string{"gzip"}}}
	require.NoError(t, cmd.Run(context.Background(), globals))

	require.FileExists(t, filepath.Join(root, "dist", "main.bundle.js"))
	require.FileExists(t, filepath.Join(root, "dist", "main.css"))

	js, err := os.ReadFile(filepath.Join(root, "dist", "main.bundle.js"))
	require.NoError(t, err)
	require.Contains(t, string(js), `console.log("hello")`)
}

func TestBuildCmd_failure(t *testing.T) {
	globals := setupTheme(t)
	root := filepath.Dir(globals.Config)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "index.js"), []byte("const = ;"), 0o600))

	err := (&BuildCmd{}).Run(context.Background(), globals)
	require.ErrorContains(t, err, "build failed")
}

func TestCleanCmd(t *testing.T) {
	globals := setupTheme(t)
	root := filepath.Dir(globals.Config)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "old.js"), []byte("x"), 0o600))

	require.NoError(t, (&CleanCmd{}).Run(context.Background(), globals))

	entries, err := os.ReadDir(filepath.Join(root, "dist"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestServeHandlers(t *testing.T) {
	globals := setupTheme(t)

	th, err := globals.loadTheme(BuildFlags{}.overrides())
	require.NoError(t, err)
	defer th.Close()

	p, err := th.Pipeline()
	require.NoError(t, err)
	_, err = p.Build(context.Background())
	require.NoError(t, err)

	outDir, err := th.Config.OutputDir()
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("GET /__preview/{entry}", p.Handler("", "", nil))
	mux.Handle("/", http.FileServer(http.Dir(outDir)))
	handler := withCORS([]string{"*"})(withGzip(mux))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/__preview/main", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Body.String(), `href="/main.css"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/main.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "margin: 0")
}
