package assets

import (
	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
)

// ManifestFile is the name of the build manifest written to the output dir.
const ManifestFile = "manifest.json"

type Config struct {
	// Build is the assembled bundler configuration.
	Build *assembler.Config
	// Fs receives the build output. Defaults to the OS filesystem.
	Fs afero.Fs
	// Plugins run after the built-in alias and entry plugins, e.g. the
	// sass compiler.
	Plugins []api.Plugin
	// MetafilePath, when set, receives esbuild's metafile.
	MetafilePath string
}

// DefaultConfig returns a pipeline configuration writing to disk.
func DefaultConfig(build *assembler.Config) Config {
	return Config{
		Build: build,
		Fs:    afero.NewOsFs(),
	}
}
