package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/config"
	"github.com/wolfeidau/themepack/internal/logger"
	"github.com/wolfeidau/themepack/internal/telemetry"
	"github.com/wolfeidau/themepack/internal/theme"
)

type Globals struct {
	Debug       bool
	Config      string
	Tracing     bool
	// SampleRatio is the fraction of builds traced when Tracing is set.
	SampleRatio float64
	Version     string
}

// setup configures the global logger and, when enabled, telemetry. The
// returned func flushes telemetry.
func (g *Globals) setup(ctx context.Context) (zerolog.Logger, func()) {
	l := logger.Setup(g.Debug)
	log.Logger = l

	if !g.Tracing {
		return l, func() {}
	}

	l.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: "themepack",
		Version:     g.Version,
		SampleRatio: g.SampleRatio,
	})
	if err != nil {
		l.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return l, func() {}
	}

	return l, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

// loadTheme reads the descriptor, falling back to the default theme layout
// next to it when the file does not exist.
func (g *Globals) loadTheme(overrides theme.Overrides) (*theme.Theme, error) {
	cfg, err := config.LoadOrDefault(g.Config)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("config", g.Config).Str("root", cfg.Root).Strs("entries", cfg.EntryNames()).Msg("Loaded descriptor")

	return theme.New(cfg, overrides)
}

// BuildFlags are shared by every command that builds.
type BuildFlags struct {
	Minify      bool     `help:"Minify bundles." env:"THEMEPACK_MINIFY"`
	NoClean     bool     `help:"Keep existing files in the output directory." env:"THEMEPACK_NO_CLEAN"`
	Precompress []string `help:"Write precompressed siblings (gzip, zstd)." enum:"gzip,zstd" env:"THEMEPACK_PRECOMPRESS"`
}

func (f BuildFlags) overrides() theme.Overrides {
	return theme.Overrides{
		Minify:      f.Minify,
		NoClean:     f.NoClean,
		Precompress: f.Precompress,
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	// Create HTTP server
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
