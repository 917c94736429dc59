package assets

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// Watch starts esbuild in watch mode. onBuild runs after the initial build
// and after every rebuild with the emitted manifest or the build error.
// Watching stops when ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, onBuild func(*Manifest, error)) error {
	emit := api.Plugin{
		Name: "emit",
		Setup: func(pb api.PluginBuild) {
			pb.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				m, err := p.Emit(ctx, result)
				onBuild(m, err)
				return api.OnEndResult{}, nil
			})
		},
	}

	bctx, cerr := api.Context(p.Options(emit))
	if cerr != nil {
		return buildError(cerr.Errors)
	}

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		bctx.Dispose()
		return fmt.Errorf("failed to start watch mode: %w", err)
	}

	log.Info().Str("context", p.config.Build.Context).Msg("Watching sources")

	go func() {
		<-ctx.Done()
		bctx.Dispose()
		log.Debug().Msg("Stopped watching sources")
	}()

	return nil
}
