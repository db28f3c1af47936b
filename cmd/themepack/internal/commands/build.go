package commands

import (
	"context"
	"fmt"
)

type BuildCmd struct {
	BuildFlags `embed:""`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
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

	res, err := p.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	log.Info().
		Str("build_id", res.ID).
		Int("outputs", len(res.Outputs)).
		Int("written", len(res.Written)).
		Int("warnings", len(res.Warnings)).
		Dur("duration", res.Duration).
		Msg("Theme built")

	return nil
}
