package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/build"
)

// BuildCmd builds the project once.
type BuildCmd struct {
	SassFlags `embed:""`

	SplitChunks bool   `help:"Split shared code into chunks; bundles become ES modules." env:"FRONTEND_SPLIT_CHUNKS"`
	Precompress bool   `help:"Write .gz and .zst variants of text assets." env:"FRONTEND_PRECOMPRESS"`
	Metafile    string `help:"Write the bundler metafile to this path."`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log, shutdown := globals.setup(ctx)
	defer shutdown()

	cfg, err := globals.assemble(assembler.Options{SplitChunks: c.SplitChunks})
	if err != nil {
		return err
	}

	log.Info().
		Str("version", globals.Version).
		Str("mode", string(cfg.Mode)).
		Str("context", cfg.Context).
		Msg("Starting build")

	b, err := build.New(cfg, build.Options{
		SassBinary:   c.SassBinary,
		Precompress:  c.Precompress,
		MetafilePath: c.Metafile,
	})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop sass compiler")
		}
	}()

	res, err := b.Run(ctx)
	if err != nil {
		return err
	}

	for _, name := range cfg.BundleNames() {
		scripts, err := b.Pipeline().Scripts(name)
		if err != nil {
			return err
		}
		styles, err := b.Pipeline().Styles(name)
		if err != nil {
			return err
		}
		log.Info().
			Str("bundle", name).
			Strs("scripts", scripts).
			Strs("styles", styles).
			Msg("Bundle")
	}
	log.Info().
		Str("output", cfg.Output.Path).
		Str("size", humanize.Bytes(uint64(res.Manifest.TotalSize()))).
		Int("compressed", res.Compressed).
		Msg("Done")

	return nil
}
