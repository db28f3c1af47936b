package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	httpmiddleware "github.com/wolfeidau/themepack/internal/http"
	"golang.org/x/sync/errgroup"
)

type ServeCmd struct {
	BuildFlags  `embed:""`
	Listen      string        `help:"HTTP server listen address" default:"127.0.0.1:8080" env:"THEMEPACK_LISTEN"`
	CORSOrigins []string      `help:"allowed CORS origins" default:"*" env:"THEMEPACK_CORS_ORIGINS"`
	Debounce    time.Duration `help:"Quiet period before a rebuild." default:"100ms" env:"THEMEPACK_DEBOUNCE"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log, flush := globals.setup(ctx)
	defer flush()

	th, err := globals.loadTheme(c.overrides())
	if err != nil {
		return err
	}
	defer th.Close()

	p, err := th.Pipeline()
	if err != nil {
		return err
	}

	w, err := newWatcher(ctx, log, th, p, c.Debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	outDir, err := th.Config.OutputDir()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	// Preview pages for each entry
	mux.Handle("GET /__preview/{entry}", p.Handler("", "", nil))

	// Serve build outputs
	mux.Handle("/", http.FileServer(http.Dir(outDir)))

	handler := httpmiddleware.Chain(mux,
		httpmiddleware.ClientIPMiddleware(),
		httpmiddleware.RequestLogger(log),
		withCORS(c.CORSOrigins),
		httpmiddleware.NoCache(),
		withGzip,
	)

	srv := configureHTTPServer(c.Listen, handler)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(ctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Str("dir", outDir).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// withCORS lets pages served from another origin load the dev bundles.
func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	})
	return middleware.Handler
}

func withGzip(h http.Handler) http.Handler {
	return gzhttp.GzipHandler(h)
}
