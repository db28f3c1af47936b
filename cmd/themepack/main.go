package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/themepack/cmd/themepack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build            commands.BuildCmd `cmd:"" help:"Build the theme once"`
		Watch            commands.WatchCmd `cmd:"" help:"Build the theme and rebuild on change"`
		Serve            commands.ServeCmd `cmd:"" help:"Watch the theme and serve the output directory"`
		Clean            commands.CleanCmd `cmd:"" help:"Remove everything in the output directory"`
		Debug            bool              `help:"Enable debug mode." env:"THEMEPACK_DEBUG"`
		Config           string            `help:"Path to the build descriptor." default:"themepack.yaml" env:"THEMEPACK_CONFIG" type:"path"`
		Tracing          bool              `help:"Export traces and metrics over OTLP." env:"THEMEPACK_TRACING"`
		TraceSampleRatio float64           `help:"Fraction of builds to trace, all when 0." env:"THEMEPACK_TRACE_SAMPLE_RATIO"`
		Version          kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("themepack"),
		kong.Description("Build website theme scripts and stylesheets."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:       cli.Debug,
		Config:      cli.Config,
		Tracing:     cli.Tracing,
		SampleRatio: cli.TraceSampleRatio,
		Version:     version,
	})
	stop()
	cmd.FatalIfErrorf(err)
}
