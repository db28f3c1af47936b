package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeline_Assets(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(t, root)
	cfg.Output.PublicPath = "/static/"

	p, err := New(cfg)
	require.NoError(t, err)

	_, _, err = p.Assets("main")
	require.ErrorIs(t, err, ErrNotBuilt)

	_, err = p.Build(context.Background())
	require.NoError(t, err)

	scripts, styles, err := p.Assets("main")
	require.NoError(t, err)
	require.Equal(t, []string{"/static/main.bundle.js"}, scripts)
	require.Equal(t, []string{"/static/main.bundle.css"}, styles)

	scripts, styles, err = p.Assets("editor")
	require.NoError(t, err)
	require.Equal(t, []string{"/static/editor.bundle.js"}, scripts)
	require.Empty(t, styles)

	_, _, err = p.Assets("nope")
	require.Error(t, err)
}

func TestPipeline_Handler(t *testing.T) {
	root := setupProject(t)

	p, err := New(testConfig(t, root))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("GET /__preview/{entry}", p.Handler("", "", func(ctx context.Context) any {
		return map[string]string{"mode": "preview"}
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/__preview/main", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err = p.Build(context.Background())
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/__preview/main", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `<script src="/main.bundle.js"></script>`)
	require.Contains(t, body, `<link rel="stylesheet" href="/main.bundle.css">`)
	require.Contains(t, body, `{"mode":"preview"}`)
	require.Contains(t, body, `<title>main</title>`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/__preview/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
