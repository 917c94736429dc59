package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Build runs esbuild once with the configured settings and writes the output.
func (p *Pipeline) Build(ctx context.Context) (*Manifest, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "assets.build")
	defer span.End()

	cfg := p.config.Build
	span.SetAttributes(attribute.String("build.mode", string(cfg.Mode)))

	log.Info().
		Strs("bundles", cfg.BundleNames()).
		Str("mode", string(cfg.Mode)).
		Str("outdir", cfg.Output.Path).
		Msg("Building assets")

	started := time.Now()
	result := api.Build(p.Options())
	manifest, err := p.Emit(ctx, &result)
	telemetry.GetMetrics().RecordBuild(ctx, time.Since(started), manifest.TotalSize(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		return nil, err
	}

	log.Info().
		Int("files", len(manifest.Files)).
		Str("size", humanize.Bytes(uint64(manifest.TotalSize()))).
		Dur("duration", time.Since(started)).
		Msg("Built assets")

	return manifest, nil
}

// Options translates the assembled configuration into esbuild options.
// Output is kept in memory; Emit names and writes it.
func (p *Pipeline) Options(extra ...api.Plugin) api.BuildOptions {
	cfg := p.config.Build
	minify := cfg.Optimization.Minimize

	plugins := []api.Plugin{
		entriesPlugin(cfg.Context, cfg.Entry),
		hashQueryPlugin(cfg),
		aliasPlugin(cfg.Resolve.Alias),
	}
	plugins = append(plugins, p.config.Plugins...)
	plugins = append(plugins, extra...)

	opts := api.BuildOptions{
		EntryPointsAdvanced: entryPoints(cfg),
		AbsWorkingDir:       cfg.Context,
		Outdir:              cfg.Output.Path,
		Outbase:             cfg.Context,
		EntryNames:          "[name]",
		ChunkNames:          cfg.Output.ChunkFilename,
		AssetNames:          "[dir]/[name]",
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Platform:            api.PlatformBrowser,
		Target:              api.ES2015,
		Format:              api.FormatIIFE,
		Loader:              loaders(cfg.Rules),
		ResolveExtensions:   cfg.Resolve.Extensions,
		Define: map[string]string{
			"process.env.NODE_ENV": strconv.Quote(string(cfg.Mode)),
		},
		MinifyWhitespace:  minify,
		MinifyIdentifiers: minify,
		MinifySyntax:      minify,
		Sourcemap:         cond(cfg.Devtool != "", api.SourceMapInline, api.SourceMapNone),
		LegalComments:     cond(cfg.Optimization.ExtractComments, api.LegalCommentsExternal, api.LegalCommentsDefault),
		LogLevel:          api.LogLevelSilent,
		Plugins:           plugins,
	}

	if cfg.Optimization.SplitChunks {
		opts.Splitting = true
		opts.Format = api.FormatESModule
	}

	return opts
}

// Emit names the in-memory output of a build after the configured filename
// templates, writes it together with the manifest and records the manifest
// as the current one.
func (p *Pipeline) Emit(ctx context.Context, result *api.BuildResult) (*Manifest, error) {
	for _, msg := range result.Warnings {
		log.Warn().Str("warning", formatMessage(msg)).Msg("Build warning")
	}
	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", formatMessage(msg)).Msg("Build error")
		}
		return nil, buildError(result.Errors)
	}

	cfg := p.config.Build
	fs := p.config.Fs

	p.mu.Lock()
	defer p.mu.Unlock()

	targets, immutable := p.outputNames(result.OutputFiles)

	manifest := &Manifest{
		BuildID: uuid.NewString(),
		Mode:    cfg.Mode,
		Bundles: make(map[string]Bundle, len(cfg.Entry)),
	}

	for _, f := range result.OutputFiles {
		target := targets[f.Path]
		if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := afero.WriteFile(fs, target, f.Contents, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", target, err)
		}

		rel, err := filepath.Rel(cfg.Output.Path, target)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)

		manifest.Files = append(manifest.Files, File{
			Path:      rel,
			Size:      int64(len(f.Contents)),
			Hash:      ContentHash(f.Contents),
			Immutable: immutable[f.Path],
		})

		if name, kind, ok := entryOutput(cfg, f.Path); ok {
			b := manifest.Bundles[name]
			if kind == assembler.KindJS {
				b.Scripts = append(b.Scripts, rel)
			} else {
				b.Styles = append(b.Styles, rel)
			}
			manifest.Bundles[name] = b
		}

		log.Debug().Str("file", rel).Str("size", humanize.Bytes(uint64(len(f.Contents)))).Msg("Built file")
	}

	sort.Slice(manifest.Files, func(i, j int) bool {
		return manifest.Files[i].Path < manifest.Files[j].Path
	})

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, filepath.Join(cfg.Output.Path, ManifestFile), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if p.config.MetafilePath != "" {
		if err := afero.WriteFile(fs, p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
			return nil, err
		}
	}

	p.manifest = manifest
	return manifest, nil
}

// outputNames maps every output path to its final path. Entry outputs are
// renamed after the js or css template; legal comment files follow their
// bundle.
func (p *Pipeline) outputNames(files []api.OutputFile) (map[string]string, map[string]bool) {
	cfg := p.config.Build
	targets := make(map[string]string, len(files))
	immutable := make(map[string]bool)

	for _, f := range files {
		targets[f.Path] = f.Path
		name, kind, ok := entryOutput(cfg, f.Path)
		if !ok {
			continue
		}
		tmpl := cfg.Output.Filename
		if kind == assembler.KindCSS {
			tmpl = cfg.Output.CSSFilename
		}
		targets[f.Path] = filepath.Join(cfg.Output.Path, filepath.FromSlash(expandName(tmpl, name, ContentHash(f.Contents))))
		immutable[f.Path] = hasHash(tmpl)
	}

	const legalSuffix = ".LEGAL.txt"
	for _, f := range files {
		if !strings.HasSuffix(f.Path, legalSuffix) {
			continue
		}
		if bundle, ok := targets[strings.TrimSuffix(f.Path, legalSuffix)]; ok {
			targets[f.Path] = bundle + legalSuffix
		}
	}

	return targets, immutable
}

// entryOutput reports whether path is the js or css output of a bundle.
func entryOutput(cfg *assembler.Config, path string) (string, assembler.ArtifactKind, bool) {
	if filepath.Dir(path) != filepath.Clean(cfg.Output.Path) {
		return "", "", false
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if _, ok := cfg.Entry[name]; !ok {
		return "", "", false
	}
	switch ext {
	case assembler.KindJS.Ext():
		return name, assembler.KindJS, true
	case assembler.KindCSS.Ext():
		return name, assembler.KindCSS, true
	}
	return "", "", false
}

func entryPoints(cfg *assembler.Config) []api.EntryPoint {
	names := cfg.BundleNames()
	points := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		modules := cfg.Entry[name]
		input := entryNamespace + ":" + name
		if len(modules) == 1 {
			input = modules[0]
		}
		points = append(points, api.EntryPoint{InputPath: input, OutputPath: name})
	}
	return points
}

func loaders(rules []assembler.Rule) map[string]api.Loader {
	byName := map[string]api.Loader{
		assembler.LoaderCSS:  api.LoaderCSS,
		assembler.LoaderFile: api.LoaderFile,
		assembler.LoaderJS:   api.LoaderJS,
		assembler.LoaderTS:   api.LoaderTS,
		assembler.LoaderJSX:  api.LoaderJSX,
	}

	out := map[string]api.Loader{}
	for _, r := range rules {
		loader, ok := byName[r.Loader]
		if !ok {
			continue
		}
		for _, ext := range r.Extensions {
			out[ext] = loader
		}
	}
	return out
}

func buildError(msgs []api.Message) error {
	if len(msgs) == 0 {
		return ErrBuildFailed
	}
	if len(msgs) == 1 {
		return fmt.Errorf("%w: %s", ErrBuildFailed, formatMessage(msgs[0]))
	}
	return fmt.Errorf("%w: %s (and %d more errors)", ErrBuildFailed, formatMessage(msgs[0]), len(msgs)-1)
}

func formatMessage(msg api.Message) string {
	var b bytes.Buffer
	if msg.Location != nil {
		fmt.Fprintf(&b, "%s:%d:%d: ", msg.Location.File, msg.Location.Line, msg.Location.Column)
	}
	if msg.PluginName != "" {
		fmt.Fprintf(&b, "[%s] ", msg.PluginName)
	}
	b.WriteString(msg.Text)
	return b.String()
}

// TotalSize sums the size of all emitted files. It is nil safe.
func (m *Manifest) TotalSize() int64 {
	if m == nil {
		return 0
	}
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
