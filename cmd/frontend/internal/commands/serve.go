package commands

import (
	"context"
	"fmt"

	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/build"
	"github.com/valderanvvk/frontend-base-template/internal/devserver"
)

// ServeCmd runs the development server.
type ServeCmd struct {
	SassFlags `embed:""`

	Host        string   `help:"Listen host." default:"${dev_host}" env:"FRONTEND_HOST"`
	Port        int      `help:"Listen port." default:"${dev_port}" env:"FRONTEND_PORT"`
	Open        bool     `help:"Open the browser once the server is ready." default:"true" negatable:""`
	Hot         bool     `help:"Reload the browser after every rebuild." default:"true" negatable:""`
	Compress    bool     `help:"Gzip responses." default:"true" negatable:""`
	CORSOrigins []string `help:"Origins allowed to fetch from the dev server." env:"FRONTEND_CORS_ORIGINS"`
	SplitChunks bool     `help:"Split shared code into chunks; bundles become ES modules." env:"FRONTEND_SPLIT_CHUNKS"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log, shutdown := globals.setup(ctx)
	defer shutdown()

	cfg, err := globals.assemble(assembler.Options{
		SplitChunks: c.SplitChunks,
		DevServer:   c.devServer(),
	})
	if err != nil {
		return err
	}

	opts := build.Options{SassBinary: c.SassBinary}
	if c.Hot {
		opts.LiveReloadURL = devserver.LiveReloadPath
	}
	b, err := build.New(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop sass compiler")
		}
	}()

	log.Info().
		Str("version", globals.Version).
		Str("mode", string(cfg.Mode)).
		Str("content_base", cfg.DevServer.ContentBase).
		Msg("Starting dev server")

	return devserver.New(b, nil, devserver.Options{CORSOrigins: c.CORSOrigins}).Run(ctx)
}

func (c *ServeCmd) devServer() assembler.DevServer {
	return assembler.DevServer{
		Host:     c.Host,
		Port:     c.Port,
		Hot:      c.Hot,
		Open:     c.Open,
		Compress: c.Compress,
	}
}
