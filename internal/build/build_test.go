package build

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/assets"
	"github.com/valderanvvk/frontend-base-template/internal/project"
)

const template = `<!DOCTYPE html>
<html>
  <head>
    <title>App</title>
  </head>
  <body>
    <div id="root"></div>
  </body>
</html>
`

// newProject lays out a buildable project under a temp dir.
func newProject(t *testing.T, mode assembler.Mode) *assembler.Config {
	t.Helper()

	base := t.TempDir()
	d := project.Default()
	d.BaseDir = base
	root := filepath.Join(base, d.Src[project.AreaRoot].Path)

	files := map[string]string{
		"index.js":          "import { title } from '@src/title';\nimport './main.css';\ndocument.title = title;\n",
		"main.css":          "body { margin: 0; }\n",
		"src/title.js":      "export const title = 'built';\n",
		"html/index.html":   template,
		"public/robots.txt": "User-agent: *\n",
	}
	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	}
	for _, dir := range []string{"img", "fonts"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	}

	cfg, err := assembler.Assemble(d, mode, assembler.Options{})
	require.NoError(t, err)
	return cfg
}

func TestRun_production(t *testing.T) {
	cfg := newProject(t, assembler.Production)
	require.NoError(t, os.MkdirAll(cfg.Output.Path, 0755))
	stale := filepath.Join(cfg.Output.Path, "stale.js")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0600))

	b, err := New(cfg, Options{Precompress: true})
	require.NoError(t, err)
	defer b.Close()

	res, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(cfg.Output.Path, "public", "robots.txt"))
	assert.FileExists(t, filepath.Join(cfg.Output.Path, assets.ManifestFile))
	assert.Equal(t, 1, res.Copied.Copied)

	bundle := res.Manifest.Bundles["main"]
	require.Len(t, bundle.Scripts, 1)
	require.Len(t, bundle.Styles, 1)

	page, err := os.ReadFile(filepath.Join(cfg.Output.Path, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `src="`+bundle.Scripts[0]+`"`)
	assert.Contains(t, string(page), `href="`+bundle.Styles[0]+`"`)
	assert.NotContains(t, string(page), "\n    ")
	assert.NotContains(t, string(page), "EventSource")

	js, err := os.ReadFile(filepath.Join(cfg.Output.Path, bundle.Scripts[0]))
	require.NoError(t, err)

	// js, css and the page
	assert.Equal(t, 3, res.Compressed)

	gz, err := os.ReadFile(filepath.Join(cfg.Output.Path, bundle.Scripts[0]+SuffixGzip))
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, js, plain)

	zst, err := os.ReadFile(filepath.Join(cfg.Output.Path, bundle.Scripts[0]+SuffixZstd))
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err = dec.DecodeAll(zst, nil)
	require.NoError(t, err)
	assert.Equal(t, js, plain)
}

func TestRun_development(t *testing.T) {
	cfg := newProject(t, assembler.Development)

	b, err := New(cfg, Options{LiveReloadURL: "/__livereload"})
	require.NoError(t, err)
	defer b.Close()

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Compressed)

	page, err := os.ReadFile(filepath.Join(cfg.Output.Path, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `<script defer="" src="main.js"></script>`)
	assert.Contains(t, string(page), `<link rel="stylesheet" href="main.css"/>`)
	assert.Contains(t, string(page), `new EventSource("/__livereload")`)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Path, "main.js"+SuffixGzip))
}

func TestRun_buildError(t *testing.T) {
	cfg := newProject(t, assembler.Production)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Context, "index.js"), []byte("import '@src/nope';\n"), 0600))

	b, err := New(cfg, Options{})
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Run(context.Background())
	require.ErrorIs(t, err, assets.ErrBuildFailed)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Path, "index.html"))
}

func TestAssetURLs_nestedPage(t *testing.T) {
	cfg := &assembler.Config{
		Entry:  map[string][]string{"main": {"./index.js"}, "admin": {"./admin.js"}},
		Output: assembler.Output{Path: "/dist"},
	}
	b := &Builder{cfg: cfg}
	m := &assets.Manifest{Bundles: map[string]assets.Bundle{
		"main":  {Scripts: []string{"main.js"}, Styles: []string{"main.css"}},
		"admin": {Scripts: []string{"admin/admin.js"}},
	}}

	scripts, styles, err := b.assetURLs(m, "/dist/pages")
	require.NoError(t, err)
	assert.Equal(t, []string{"../admin/admin.js", "../main.js"}, scripts)
	assert.Equal(t, []string{"../main.css"}, styles)
}

func TestPrecompress_skipsBinary(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dist/logo.png", []byte("png"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/dist/app.js", []byte("console.log(1)"), 0644))

	n, err := precompress(fs, "/dist", []string{"logo.png", "app.js"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	exists, err := afero.Exists(fs, "/dist/logo.png"+SuffixGzip)
	require.NoError(t, err)
	assert.False(t, exists)
}
