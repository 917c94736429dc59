package commands

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/logger"
	"github.com/valderanvvk/frontend-base-template/internal/project"
	"github.com/valderanvvk/frontend-base-template/internal/telemetry"
)

const serviceName = "frontend"

// stdout receives command output that is meant to be piped.
var stdout io.Writer = os.Stdout

type Globals struct {
	Debug      bool
	Version    string
	Mode       assembler.Mode
	Descriptor string
	Tracing    bool
}

// SassFlags configure the stylesheet compiler.
type SassFlags struct {
	SassBinary string `help:"dart-sass executable, \"sass\" on PATH when empty." env:"FRONTEND_SASS_BINARY"`
}

// assemble loads the project descriptor and derives the build configuration.
func (g *Globals) assemble(opts assembler.Options) (*assembler.Config, error) {
	d, err := g.descriptor()
	if err != nil {
		return nil, err
	}
	return assembler.Assemble(d, g.Mode, opts)
}

func (g *Globals) descriptor() (project.Descriptor, error) {
	return project.Load(g.Descriptor)
}

// setup configures logging and, when enabled, telemetry. The returned func
// flushes telemetry and must be called before exiting.
func (g *Globals) setup(ctx context.Context) (zerolog.Logger, func()) {
	log := logger.Setup(g.Debug)

	if !g.Tracing {
		return log, func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, serviceName, g.Version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		return log, func() {}
	}

	return log, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}
