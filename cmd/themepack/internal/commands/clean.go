package commands

import (
	"context"

	"github.com/wolfeidau/themepack/internal/plugins"
	"github.com/wolfeidau/themepack/internal/theme"
)

type CleanCmd struct{}

func (c *CleanCmd) Run(ctx context.Context, globals *Globals) error {
	log, flush := globals.setup(ctx)
	defer flush()

	th, err := globals.loadTheme(theme.Overrides{})
	if err != nil {
		return err
	}
	defer th.Close()

	root, err := th.Config.RootDir()
	if err != nil {
		return err
	}
	outDir, err := th.Config.OutputDir()
	if err != nil {
		return err
	}

	if err := plugins.CleanDir(root, outDir); err != nil {
		return err
	}

	log.Info().Str("dir", outDir).Msg("Cleaned output directory")
	return nil
}
