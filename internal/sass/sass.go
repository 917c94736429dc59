// Package sass compiles .sass and .scss stylesheets with the embedded
// dart-sass protocol and plugs the result into esbuild as CSS.
package sass

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
)

// ErrCompilerUnavailable is returned when the dart-sass binary cannot be started.
var ErrCompilerUnavailable = errors.New("sass compiler unavailable")

const cacheSize = 256

var sassFile = regexp.MustCompile(`\.s[ac]ss$`)

type Options struct {
	// Binary is the dart-sass executable. Empty means "sass" on PATH.
	Binary string
	// IncludePaths are searched for @use and @import after the directory
	// of the importing file.
	IncludePaths []string
	// Compressed selects compressed output.
	Compressed bool
	// SourceMap appends an inline source map pointing back to the Sass
	// sources, which esbuild chains into its own map.
	SourceMap bool
}

// Compiler turns Sass sources into CSS. The dart-sass process is started
// on first use, so projects without stylesheets never need the binary.
type Compiler struct {
	opts       Options
	cache      *lru.Cache[string, string]
	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// New creates a compiler.
func New(opts Options) (*Compiler, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Compiler{opts: opts, cache: cache}, nil
}

// Compile compiles source, read from path, to CSS. Results are cached by path
// and content.
func (c *Compiler) Compile(path string, source []byte) (string, error) {
	key := cacheKey(path, source)
	if css, ok := c.cache.Get(key); ok {
		log.Debug().Str("path", path).Msg("sass cache hit")
		return css, nil
	}

	t, err := c.start()
	if err != nil {
		return "", err
	}

	includes := append([]string{filepath.Dir(path)}, c.opts.IncludePaths...)
	res, err := t.Execute(godartsass.Args{
		Source:                  string(source),
		URL:                     "file://" + filepath.ToSlash(path),
		SourceSyntax:            syntaxFor(path),
		OutputStyle:             outputStyle(c.opts.Compressed),
		IncludePaths:            includes,
		EnableSourceMap:         c.opts.SourceMap,
		SourceMapIncludeSources: c.opts.SourceMap,
	})
	if err != nil {
		return "", fmt.Errorf("failed to compile %s: %w", path, err)
	}

	css := res.CSS
	if c.opts.SourceMap && res.SourceMap != "" {
		css = withSourceMap(css, res.SourceMap)
	}

	c.cache.Add(key, css)
	return css, nil
}

// Plugin returns an esbuild plugin loading .sass and .scss files through c.
func (c *Compiler) Plugin() api.Plugin {
	return api.Plugin{
		Name: "sass",
		Setup: func(pb api.PluginBuild) {
			// url() in Sass is left as written; referenced files reach the
			// output through the copy rules.
			pb.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if !keepURL(args) {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})

			pb.OnLoad(api.OnLoadOptions{Filter: sassFile.String()}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				source, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				css, err := c.Compile(args.Path, source)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				return api.OnLoadResult{
					Contents:   &css,
					Loader:     api.LoaderCSS,
					ResolveDir: filepath.Dir(args.Path),
				}, nil
			})
		},
	}
}

// Close stops the dart-sass process, if it was started.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transpiler == nil {
		return nil
	}
	err := c.transpiler.Close()
	c.transpiler = nil
	return err
}

func (c *Compiler) start() (*godartsass.Transpiler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transpiler != nil {
		return c.transpiler, nil
	}

	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: c.opts.Binary,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v (install dart-sass or set --sass-binary)", ErrCompilerUnavailable, err)
	}

	log.Debug().Str("binary", c.opts.Binary).Msg("sass compiler started")
	c.transpiler = t
	return t, nil
}

func keepURL(args api.OnResolveArgs) bool {
	return args.Kind == api.ResolveCSSURLToken && sassFile.MatchString(args.Importer)
}

func withSourceMap(css, sourceMap string) string {
	return strings.TrimRight(css, "\n") + "\n/*# sourceMappingURL=data:application/json;base64," +
		base64.StdEncoding.EncodeToString([]byte(sourceMap)) + " */\n"
}

func cacheKey(path string, source []byte) string {
	h := crc64nvme.New()
	_, _ = h.Write(source)
	return fmt.Sprintf("%s:%016x", path, h.Sum64())
}

func syntaxFor(path string) godartsass.SourceSyntax {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sass":
		return godartsass.SourceSyntaxSASS
	case ".css":
		return godartsass.SourceSyntaxCSS
	default:
		return godartsass.SourceSyntaxSCSS
	}
}

func outputStyle(compressed bool) godartsass.OutputStyle {
	if compressed {
		return godartsass.OutputStyleCompressed
	}
	return godartsass.OutputStyleExpanded
}
