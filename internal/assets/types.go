package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
)

// ErrBuildFailed is returned when esbuild reports errors.
var ErrBuildFailed = errors.New("build failed")

// Manifest records what a build emitted.
type Manifest struct {
	BuildID string            `json:"buildId"`
	Mode    assembler.Mode    `json:"mode"`
	Bundles map[string]Bundle `json:"bundles"`
	Files   []File            `json:"files"`
}

// Bundle lists the emitted files of one entry, relative to the output dir.
type Bundle struct {
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles,omitempty"`
}

// File is one emitted file. Immutable files carry a content hash in their
// name and may be cached forever.
type File struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Hash      string `json:"hash"`
	Immutable bool   `json:"immutable,omitempty"`
}

// Pipeline runs the bundler and keeps the manifest of the latest build.
type Pipeline struct {
	config   Config
	manifest *Manifest
	mu       sync.RWMutex
}

// New creates a new asset pipeline with the given configuration
func New(config Config) *Pipeline {
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	return &Pipeline{
		config: config,
	}
}

// Manifest returns the manifest of the last successful build, or nil.
func (p *Pipeline) Manifest() *Manifest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.manifest
}

// Scripts returns the script files of bundle from the last build.
func (p *Pipeline) Scripts(bundle string) ([]string, error) {
	b, err := p.bundle(bundle)
	if err != nil {
		return nil, err
	}
	return b.Scripts, nil
}

// Styles returns the stylesheet files of bundle from the last build.
func (p *Pipeline) Styles(bundle string) ([]string, error) {
	b, err := p.bundle(bundle)
	if err != nil {
		return nil, err
	}
	return b.Styles, nil
}

func (p *Pipeline) bundle(name string) (Bundle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.manifest == nil {
		return Bundle{}, errors.New("assets not built yet, call Build() first")
	}
	b, ok := p.manifest.Bundles[name]
	if !ok {
		return Bundle{}, fmt.Errorf("bundle %q not found in manifest", name)
	}
	return b, nil
}

// ReadManifest loads the manifest written by a previous build into dir.
func ReadManifest(fs afero.Fs, dir string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
