package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_isValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_aliasTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for name, area := range Default().Src {
		require.True(t, area.HasAlias(), "area %s", name)
		require.False(t, seen[area.Alias], "duplicate token %s", area.Alias)
		seen[area.Alias] = true
	}
	assert.Len(t, seen, 6)
}

func TestDefault_returnsFreshValues(t *testing.T) {
	a := Default()
	a.Src["extra"] = Area{Path: "./extra/"}
	a.Entry["main"][0] = "./changed.js"

	b := Default()
	assert.NotContains(t, b.Src, "extra")
	assert.Equal(t, "./index.js", b.Entry["main"][0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Descriptor)
		field  string
	}{
		{
			name:   "missing html index file",
			mutate: func(d *Descriptor) { d.HTMLIndexFile = "" },
			field:  "htmlIndexFile",
		},
		{
			name:   "no entries",
			mutate: func(d *Descriptor) { d.Entry = nil },
			field:  "entry",
		},
		{
			name:   "entry without modules",
			mutate: func(d *Descriptor) { d.Entry["vendor"] = nil },
			field:  "entry.vendor",
		},
		{
			name:   "missing root area",
			mutate: func(d *Descriptor) { delete(d.Src, AreaRoot) },
			field:  "src",
		},
		{
			name: "duplicate alias",
			mutate: func(d *Descriptor) {
				d.Src["zzz"] = Area{Path: "./zzz/", Alias: "@src"}
			},
			field: "src.zzz.alias",
		},
		{
			name:   "alias with slash",
			mutate: func(d *Descriptor) { d.Src["img"] = Area{Path: "./img/", Alias: "@img/x"} },
			field:  "src.img.alias",
		},
		{
			name:   "extension without dot",
			mutate: func(d *Descriptor) { d.Extensions = []string{".js", "json"} },
			field:  "extensions[1]",
		},
		{
			name:   "missing css production template",
			mutate: func(d *Descriptor) { d.Dist.CSS.Prod = "" },
			field:  "dist.css.prodMode",
		},
		{
			name:   "missing dist root",
			mutate: func(d *Descriptor) { d.Dist.Root = " " },
			field:  "dist.root",
		},
		{
			name: "bad ignore glob",
			mutate: func(d *Descriptor) {
				d.CopyDirectory[0].Ignore = []string{"[unterminated"}
			},
			field: "copyDirectory[0].ignore[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Default()
			tt.mutate(&d)

			err := d.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, ErrDescriptor)
			require.NotErrorIs(t, err, ErrPathResolution)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_emptyAliasMeansNoAlias(t *testing.T) {
	d := Default()
	d.Src["img"] = Area{Path: "./img/", Alias: ""}
	require.NoError(t, d.Validate())
}

func TestConfigError(t *testing.T) {
	cause := errors.New("boom")
	err := PathErrorf("src.img", cause)

	require.ErrorIs(t, err, ErrPathResolution)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrDescriptor)
	assert.Equal(t, "path resolution error: src.img: boom", err.Error())

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, PathError, cfgErr.Kind)
}

func TestParse_mergesDefaults(t *testing.T) {
	d, err := Parse([]byte(`
htmlIndexFile: app.html
dist:
  root: build
  js:
    prodMode: "[name]-[hash]"
`))
	require.NoError(t, err)

	assert.Equal(t, "app.html", d.HTMLIndexFile)
	assert.Equal(t, "build", d.Dist.Root)
	assert.Equal(t, "[name]-[hash]", d.Dist.JS.Prod)
	assert.Equal(t, "[name]", d.Dist.JS.Dev)
	assert.Equal(t, Default().Dist.CSS, d.Dist.CSS)
	assert.Equal(t, Default().Src, d.Src)
	assert.Equal(t, Default().CopyDirectory, d.CopyDirectory)
}

func TestParse_keepsDeclaredMapsWhole(t *testing.T) {
	d, err := Parse([]byte(`
src:
  root: {path: web, alias: "~"}
  html: {path: ./pages/}
entry:
  app: [./app.ts, ./extra.ts]
`))
	require.NoError(t, err)

	assert.Len(t, d.Src, 2)
	assert.Equal(t, Area{Path: "web", Alias: "~"}, d.Src[AreaRoot])
	assert.False(t, d.Src[AreaHTML].HasAlias())
	assert.Equal(t, map[string][]string{"app": {"./app.ts", "./extra.ts"}}, d.Entry)
}

func TestParse_invalidYAML(t *testing.T) {
	_, err := Parse([]byte("entry: [unclosed"))
	require.ErrorIs(t, err, ErrDescriptor)
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns default", func(t *testing.T) {
		d, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), d)
	})

	t.Run("sets base dir to the file directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "frontend.yaml")
		require.NoError(t, os.WriteFile(path, []byte("htmlIndexFile: index.html\n"), 0600))

		d, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, dir, d.BaseDir)
	})

	t.Run("missing file is a path error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorIs(t, err, ErrPathResolution)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
