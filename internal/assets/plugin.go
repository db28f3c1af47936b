package assets

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/stages"
	"github.com/wolfeidau/themepack/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const rulesPluginName = "themepack-rules"

// rulesPlugin runs the matching rule's stage for every file the bundler
// loads from disk. Files without a rule are left to the bundler's loaders.
func (p *Pipeline) rulesPlugin(ctx context.Context, bc *BuildContext) api.Plugin {
	return api.Plugin{
		Name: rulesPluginName,
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					rule, ok := Classify(p.config.Rules, args.Path)
					if !ok {
						return api.OnLoadResult{}, nil
					}
					return p.load(ctx, bc, rule, args.Path)
				})
		},
	}
}

func (p *Pipeline) load(ctx context.Context, bc *BuildContext, rule *Rule, path string) (api.OnLoadResult, error) {
	started := time.Now()
	attrs := metric.WithAttributes(attribute.String("rule", rule.Name))

	contents, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	out, err := rule.Stage.Transform(ctx, stages.NewArtifact(path, contents))

	telemetry.GetMetrics().StageRunsTotal.Add(ctx, 1, attrs)
	telemetry.GetMetrics().StageDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	if err != nil {
		log.Debug().Err(err).Str("rule", rule.Name).Str("path", path).Msg("stage failed")

		if errors.Is(err, stages.ErrUnresolved) {
			bc.addUnresolved(path)
		}

		var msgs stages.MessagesError
		if errors.As(err, &msgs) {
			res := api.OnLoadResult{PluginName: rulesPluginName}
			for _, m := range msgs {
				m.PluginName = rulesPluginName
				res.Errors = append(res.Errors, m)
			}
			return res, nil
		}
		return api.OnLoadResult{}, err
	}

	loader, err := loaderFor(out.Format)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	bc.addInputs(out.Dependencies...)

	body := string(out.Contents)

	log.Debug().Str("rule", rule.Name).Str("path", path).Dur("duration", time.Since(started)).Msg("stage applied")

	return api.OnLoadResult{
		PluginName: rulesPluginName,
		Contents:   &body,
		ResolveDir: out.ResolveDir,
		Loader:     loader,
		WatchFiles: out.Dependencies,
	}, nil
}
