package project

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"dario.cat/mergo"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Load reads a descriptor from a YAML file and fills every field the file
// leaves unset from Default. An empty path returns Default unchanged.
func Load(path string) (Descriptor, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, PathErrorf("descriptor", err)
	}

	d, err := Parse(data)
	if err != nil {
		return Descriptor{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Descriptor{}, PathErrorf("descriptor", err)
	}
	d.BaseDir = filepath.Dir(abs)

	log.Debug().Str("path", abs).Msg("loaded project descriptor")

	return d, nil
}

// Parse decodes a YAML descriptor and merges it over Default.
func Parse(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, DescriptorErrorf("", "failed to parse descriptor: %w", err)
	}

	if err := mergo.Merge(&d, Default(), mergo.WithTransformers(wholeMaps{})); err != nil {
		return Descriptor{}, DescriptorErrorf("", "failed to merge defaults: %w", err)
	}

	return d, nil
}

// wholeMaps keeps a map given in the file as-is instead of merging the
// default keys into it, so a project can declare fewer areas or bundles than
// the default layout.
type wholeMaps struct{}

func (wholeMaps) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	if t.Kind() != reflect.Map {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if dst.Len() > 0 || !dst.CanSet() {
			return nil
		}
		dst.Set(src)
		return nil
	}
}

// String renders the descriptor as YAML, for diagnostics.
func (d Descriptor) String() string {
	out, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Sprintf("descriptor(%v)", err)
	}
	return string(out)
}
