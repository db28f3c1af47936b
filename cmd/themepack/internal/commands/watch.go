package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/themepack/internal/assets"
	"github.com/wolfeidau/themepack/internal/theme"
	"github.com/wolfeidau/themepack/internal/watch"
)

type WatchCmd struct {
	BuildFlags `embed:""`
	Debounce   time.Duration `help:"Quiet period before a rebuild." default:"100ms" env:"THEMEPACK_DEBOUNCE"`
}

func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
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

	log.Info().Str("root", th.Config.Root).Msg("Watching for changes")
	return w.Run(ctx)
}

// newWatcher runs an initial build and returns a watcher rebuilding p. A
// failing initial build is logged so the next change can fix it.
func newWatcher(ctx context.Context, log zerolog.Logger, th *theme.Theme, p *assets.Pipeline, debounce time.Duration) (*watch.Watcher, error) {
	if _, err := p.Build(ctx); err != nil {
		log.Error().Err(err).Msg("Initial build failed, waiting for changes")
	}

	root, err := th.Config.RootDir()
	if err != nil {
		return nil, err
	}
	outDir, err := th.Config.OutputDir()
	if err != nil {
		return nil, err
	}

	return watch.New(watch.Options{
		Root:     root,
		Ignore:   []string{outDir},
		Debounce: debounce,
	}, func(ctx context.Context, changed []string) error {
		_, err := p.Build(ctx)
		return err
	})
}
