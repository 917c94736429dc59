// Package assembler derives the bundler configuration from a project
// descriptor: the alias table, the mode dependent output filenames and the
// fixed loader rules. Assembly is pure and deterministic; the same descriptor
// and mode always produce byte-identical output.
package assembler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/valderanvvk/frontend-base-template/internal/project"
)

// ErrUnknownArtifactKind is returned for an artifact kind other than js or css.
var ErrUnknownArtifactKind = errors.New("unknown artifact kind")

// Config is the assembled configuration handed to the build pipeline.
type Config struct {
	Mode         Mode                `json:"mode" yaml:"mode"`
	Context      string              `json:"context" yaml:"context"`
	Entry        map[string][]string `json:"entry" yaml:"entry"`
	Output       Output              `json:"output" yaml:"output"`
	Resolve      Resolve             `json:"resolve" yaml:"resolve"`
	Rules        []Rule              `json:"rules" yaml:"rules"`
	HTML         HTML                `json:"html" yaml:"html"`
	Clean        bool                `json:"clean" yaml:"clean"`
	Copy         []CopyPattern       `json:"copy" yaml:"copy"`
	Optimization Optimization        `json:"optimization" yaml:"optimization"`
	Devtool      string              `json:"devtool,omitempty" yaml:"devtool,omitempty"`
	DevServer    DevServer           `json:"devServer" yaml:"devServer"`
}

type Output struct {
	Path          string `json:"path" yaml:"path"`
	Filename      string `json:"filename" yaml:"filename"`
	CSSFilename   string `json:"cssFilename" yaml:"cssFilename"`
	ChunkFilename string `json:"chunkFilename" yaml:"chunkFilename"`
}

type Resolve struct {
	Extensions []string          `json:"extensions" yaml:"extensions"`
	Alias      map[string]string `json:"alias" yaml:"alias"`
}

type HTML struct {
	Template string `json:"template" yaml:"template"`
	Filename string `json:"filename" yaml:"filename"`
	Minify   bool   `json:"minify" yaml:"minify"`
}

// CopyPattern is a copy rule with both ends resolved to absolute paths.
type CopyPattern struct {
	From             string   `json:"from" yaml:"from"`
	To               string   `json:"to" yaml:"to"`
	NoErrorOnMissing bool     `json:"noErrorOnMissing" yaml:"noErrorOnMissing"`
	Ignore           []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

type Optimization struct {
	SplitChunks     bool `json:"splitChunks" yaml:"splitChunks"`
	Minimize        bool `json:"minimize" yaml:"minimize"`
	ExtractComments bool `json:"extractComments" yaml:"extractComments"`
}

// DevServer holds the dev server options. They pass through assembly
// unchanged apart from ContentBase, which is set to the source root.
type DevServer struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Hot         bool   `json:"hot" yaml:"hot"`
	Open        bool   `json:"open" yaml:"open"`
	Compress    bool   `json:"compress" yaml:"compress"`
	ContentBase string `json:"contentBase" yaml:"contentBase"`
}

// DefaultDevServer returns the dev server defaults.
func DefaultDevServer() DevServer {
	return DevServer{
		Host:     "localhost",
		Port:     9000,
		Hot:      true,
		Open:     true,
		Compress: true,
	}
}

// Options tune assembly.
type Options struct {
	SplitChunks bool
	DevServer   DevServer
	// SkipPathCheck disables the existence checks on alias directories,
	// the HTML template and copy sources.
	SkipPathCheck bool
}

// ResolveAliases maps every alias token of the descriptor to the absolute
// directory of its area. Areas without a token are skipped.
func ResolveAliases(d project.Descriptor) (map[string]string, error) {
	root, err := sourceRoot(d)
	if err != nil {
		return nil, err
	}

	aliases := make(map[string]string, len(d.Src))
	for name, area := range d.Src {
		if !area.HasAlias() {
			continue
		}
		if name == project.AreaRoot {
			aliases[area.Alias] = root
			continue
		}
		aliases[area.Alias] = resolveUnder(root, area.Path)
	}

	return aliases, nil
}

// FilenameFor returns the output filename template of kind in mode, that is
// the mode's template followed by the kind's extension.
func FilenameFor(d project.Descriptor, kind ArtifactKind, mode Mode) (string, error) {
	var tmpl project.Template
	switch kind {
	case KindJS:
		tmpl = d.Dist.JS
	case KindCSS:
		tmpl = d.Dist.CSS
	default:
		return "", &project.ConfigError{
			Kind:  project.DescriptorError,
			Field: "dist",
			Err:   fmt.Errorf("%w: %q", ErrUnknownArtifactKind, kind),
		}
	}

	name, field := tmpl.Prod, "prodMode"
	if mode.IsDev() {
		name, field = tmpl.Dev, "devMode"
	}
	if name == "" {
		return "", project.DescriptorErrorf(fmt.Sprintf("dist.%s.%s", kind, field), "is required")
	}

	return name + kind.Ext(), nil
}

// Assemble validates the descriptor and derives the full configuration.
func Assemble(d project.Descriptor, mode Mode, opts Options) (*Config, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	root, err := sourceRoot(d)
	if err != nil {
		return nil, err
	}

	aliases, err := ResolveAliases(d)
	if err != nil {
		return nil, err
	}

	jsName, err := FilenameFor(d, KindJS, mode)
	if err != nil {
		return nil, err
	}
	cssName, err := FilenameFor(d, KindCSS, mode)
	if err != nil {
		return nil, err
	}

	outDir, err := absUnder(d.BaseDir, d.Dist.Root)
	if err != nil {
		return nil, project.PathErrorf("dist.root", err)
	}

	entry := make(map[string][]string, len(d.Entry))
	for name, modules := range d.Entry {
		entry[name] = append([]string(nil), modules...)
	}

	htmlArea := d.Src[project.AreaHTML]
	cfg := &Config{
		Mode:    mode,
		Context: root,
		Entry:   entry,
		Output: Output{
			Path:          outDir,
			Filename:      jsName,
			CSSFilename:   cssName,
			ChunkFilename: "chunks/[name]-[hash]",
		},
		Resolve: Resolve{
			Extensions: append([]string(nil), d.Extensions...),
			Alias:      aliases,
		},
		Rules: Rules(),
		HTML: HTML{
			Template: filepath.Join(resolveUnder(root, htmlArea.Path), d.HTMLIndexFile),
			Filename: d.HTMLIndexFile,
			Minify:   !mode.IsDev(),
		},
		Clean: true,
		Copy:  copyPatterns(root, outDir, d.CopyDirectory),
		Optimization: Optimization{
			SplitChunks:     opts.SplitChunks,
			Minimize:        !mode.IsDev(),
			ExtractComments: !mode.IsDev(),
		},
		DevServer: opts.DevServer,
	}
	cfg.DevServer.ContentBase = root
	if mode.IsDev() {
		cfg.Devtool = "inline-source-map"
	}

	if !opts.SkipPathCheck {
		if err := checkPaths(d, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Digest returns the canonical encoding of the configuration. Map keys are
// sorted by the encoder, so equal configurations encode identically.
func (c *Config) Digest() ([]byte, error) {
	return json.Marshal(c)
}

// AliasFor returns the directory an alias token resolves to.
func (c *Config) AliasFor(token string) (string, bool) {
	dir, ok := c.Resolve.Alias[token]
	return dir, ok
}

// BundleNames returns the entry names in a stable order.
func (c *Config) BundleNames() []string {
	names := make([]string, 0, len(c.Entry))
	for name := range c.Entry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sourceRoot(d project.Descriptor) (string, error) {
	area, ok := d.Src[project.AreaRoot]
	if !ok || area.Path == "" {
		return "", project.DescriptorErrorf("src."+project.AreaRoot, "is required")
	}
	root, err := absUnder(d.BaseDir, area.Path)
	if err != nil {
		return "", project.PathErrorf("src."+project.AreaRoot, err)
	}
	return root, nil
}

func absUnder(base, path string) (string, error) {
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}
	return filepath.Abs(path)
}

func resolveUnder(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

func copyPatterns(root, outDir string, rules []project.CopyRule) []CopyPattern {
	patterns := make([]CopyPattern, 0, len(rules))
	for _, r := range rules {
		patterns = append(patterns, CopyPattern{
			From:             resolveUnder(root, r.From),
			To:               resolveUnder(outDir, r.To),
			NoErrorOnMissing: r.IgnoreMissing,
			Ignore:           append([]string(nil), r.Ignore...),
		})
	}
	return patterns
}

func checkPaths(d project.Descriptor, cfg *Config) error {
	var errs []error

	if err := requireDir(cfg.Context); err != nil {
		errs = append(errs, project.PathErrorf("src."+project.AreaRoot, err))
	}

	names := make([]string, 0, len(d.Src))
	for name := range d.Src {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		area := d.Src[name]
		if !area.HasAlias() || name == project.AreaRoot {
			continue
		}
		if err := requireDir(cfg.Resolve.Alias[area.Alias]); err != nil {
			errs = append(errs, project.PathErrorf("src."+name, err))
		}
	}

	if _, err := os.Stat(cfg.HTML.Template); err != nil {
		errs = append(errs, project.PathErrorf("htmlIndexFile", err))
	}

	for i, p := range cfg.Copy {
		if p.NoErrorOnMissing {
			continue
		}
		if err := requireDir(p.From); err != nil {
			errs = append(errs, project.PathErrorf(fmt.Sprintf("copyDirectory[%d].from", i), err))
		}
	}

	return errors.Join(errs...)
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
