// Package build runs the production build: clean, bundle, copy static
// assets, render the HTML page and optionally precompress the output.
package build

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/assets"
	"github.com/valderanvvk/frontend-base-template/internal/htmlgen"
	"github.com/valderanvvk/frontend-base-template/internal/sass"
	"github.com/valderanvvk/frontend-base-template/internal/staticcopy"
	"github.com/valderanvvk/frontend-base-template/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

type Options struct {
	// Fs holds sources and output. Defaults to the OS filesystem.
	Fs afero.Fs
	// SassBinary is the dart-sass executable, "sass" on PATH when empty.
	SassBinary string
	// Precompress writes .gz and .zst variants of text assets.
	Precompress bool
	// MetafilePath, when set, receives esbuild's metafile.
	MetafilePath string
	// LiveReloadURL, when set, adds the live reload client to the page.
	LiveReloadURL string
}

// Result describes a finished build.
type Result struct {
	Manifest   *assets.Manifest
	Copied     staticcopy.Stats
	Compressed int
	Duration   time.Duration
}

// Builder wires the build steps for one assembled configuration.
type Builder struct {
	cfg      *assembler.Config
	opts     Options
	sass     *sass.Compiler
	pipeline *assets.Pipeline
	copier   *staticcopy.Copier
}

// New creates a builder. Close releases the sass compiler.
func New(cfg *assembler.Config, opts Options) (*Builder, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	compiler, err := sass.New(sass.Options{
		Binary:       opts.SassBinary,
		IncludePaths: []string{cfg.Context},
		Compressed:   cfg.Optimization.Minimize,
		SourceMap:    cfg.Devtool != "",
	})
	if err != nil {
		return nil, err
	}

	pipeline := assets.New(assets.Config{
		Build:        cfg,
		Fs:           opts.Fs,
		Plugins:      []api.Plugin{compiler.Plugin()},
		MetafilePath: opts.MetafilePath,
	})

	return &Builder{
		cfg:      cfg,
		opts:     opts,
		sass:     compiler,
		pipeline: pipeline,
		copier:   staticcopy.New(opts.Fs),
	}, nil
}

// Config returns the assembled configuration the builder runs.
func (b *Builder) Config() *assembler.Config {
	return b.cfg
}

// Pipeline returns the asset pipeline, e.g. to run it in watch mode.
func (b *Builder) Pipeline() *assets.Pipeline {
	return b.pipeline
}

func (b *Builder) Close() error {
	return b.sass.Close()
}

// Run performs a complete build.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "build.run")
	defer span.End()

	started := time.Now()
	res, err := b.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		return nil, err
	}
	res.Duration = time.Since(started)

	log.Info().
		Int("files", len(res.Manifest.Files)).
		Int("copied", res.Copied.Copied).
		Str("size", humanize.Bytes(uint64(res.Manifest.TotalSize()))).
		Dur("duration", res.Duration).
		Msg("Build finished")

	return res, nil
}

func (b *Builder) run(ctx context.Context) (*Result, error) {
	if b.cfg.Clean {
		if err := staticcopy.Clean(b.opts.Fs, b.cfg.Output.Path); err != nil {
			return nil, fmt.Errorf("failed to clean output: %w", err)
		}
	}

	m, err := b.pipeline.Build(ctx)
	if err != nil {
		return nil, err
	}

	copied, err := b.CopyStatic(ctx)
	if err != nil {
		return nil, err
	}

	if err := b.RenderHTML(m); err != nil {
		return nil, err
	}

	res := &Result{Manifest: m, Copied: copied}
	if b.opts.Precompress {
		paths := make([]string, 0, len(m.Files)+1)
		for _, f := range m.Files {
			paths = append(paths, f.Path)
		}
		paths = append(paths, b.cfg.HTML.Filename)
		res.Compressed, err = precompress(b.opts.Fs, b.cfg.Output.Path, paths)
		if err != nil {
			return nil, fmt.Errorf("failed to precompress output: %w", err)
		}
	}

	return res, nil
}

// CopyStatic copies the static asset trees into the output directory.
func (b *Builder) CopyStatic(ctx context.Context) (staticcopy.Stats, error) {
	stats, err := b.copier.Copy(ctx, b.cfg.Copy)
	if err != nil {
		return stats, fmt.Errorf("failed to copy static files: %w", err)
	}
	return stats, nil
}

// RenderHTML writes the HTML page referencing the bundles of m.
func (b *Builder) RenderHTML(m *assets.Manifest) error {
	out := filepath.Join(b.cfg.Output.Path, b.cfg.HTML.Filename)
	scripts, styles, err := b.assetURLs(m, filepath.Dir(out))
	if err != nil {
		return err
	}

	return htmlgen.Generate(b.opts.Fs, b.cfg.HTML.Template, out, htmlgen.Options{
		Scripts:       scripts,
		Styles:        styles,
		Module:        b.cfg.Optimization.SplitChunks,
		LiveReloadURL: b.opts.LiveReloadURL,
		Minify:        b.cfg.HTML.Minify,
	})
}

// assetURLs lists the bundle files of m in bundle order, relative to the
// directory of the page.
func (b *Builder) assetURLs(m *assets.Manifest, pageDir string) ([]string, []string, error) {
	var scripts, styles []string
	rel := func(p string) (string, error) {
		r, err := filepath.Rel(pageDir, filepath.Join(b.cfg.Output.Path, filepath.FromSlash(p)))
		if err != nil {
			return "", err
		}
		return filepath.ToSlash(r), nil
	}

	for _, name := range b.cfg.BundleNames() {
		bundle, ok := m.Bundles[name]
		if !ok {
			continue
		}
		for _, s := range bundle.Scripts {
			u, err := rel(s)
			if err != nil {
				return nil, nil, err
			}
			scripts = append(scripts, u)
		}
		for _, s := range bundle.Styles {
			u, err := rel(s)
			if err != nil {
				return nil, nil, err
			}
			styles = append(styles, u)
		}
	}
	return scripts, styles, nil
}
