package htmlgen

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>App</title>
    <!-- analytics go here -->
  </head>
  <body>
    <div id="root"></div>
  </body>
</html>
`

func TestRender_injectsAssets(t *testing.T) {
	out, err := Render([]byte(page), Options{
		Scripts: []string{"vendor.js", "main.js"},
		Styles:  []string{"main.css"},
	})
	require.NoError(t, err)
	s := string(out)

	headEnd := strings.Index(s, "</head>")
	link := strings.Index(s, `<link rel="stylesheet" href="main.css"/>`)
	require.NotEqual(t, -1, link, s)
	assert.Less(t, link, headEnd)

	vendor := strings.Index(s, `<script defer="" src="vendor.js"></script>`)
	main := strings.Index(s, `<script defer="" src="main.js"></script>`)
	root := strings.Index(s, `<div id="root">`)
	require.NotEqual(t, -1, vendor, s)
	require.NotEqual(t, -1, main, s)
	assert.Less(t, root, vendor)
	assert.Less(t, vendor, main)
	assert.Less(t, main, strings.Index(s, "</body>"))

	assert.True(t, strings.HasPrefix(s, "<!DOCTYPE html>"))
	assert.Contains(t, s, "<!-- analytics go here -->")
	assert.NotContains(t, s, "EventSource")
}

func TestRender_module(t *testing.T) {
	out, err := Render([]byte(page), Options{Scripts: []string{"main.js"}, Module: true})
	require.NoError(t, err)
	assert.Contains(t, string(out), `<script type="module" src="main.js"></script>`)
}

func TestRender_liveReload(t *testing.T) {
	out, err := Render([]byte(page), Options{LiveReloadURL: "/__livereload"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `new EventSource("/__livereload")`)
}

func TestRender_fragmentTemplate(t *testing.T) {
	out, err := Render([]byte(`<p>hi</p>`), Options{Scripts: []string{"main.js"}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `<head></head>`)
	assert.Contains(t, string(out), `src="main.js"`)
}

func TestRender_framesetTemplate(t *testing.T) {
	frameset := `<!DOCTYPE html><html><head><title>x</title></head><frameset><frame src="a.html"></frameset></html>`

	_, err := Render([]byte(frameset), Options{Scripts: []string{"main.js"}})
	require.ErrorIs(t, err, ErrMalformedTemplate)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/index.html", []byte(frameset), 0644))
	err = Generate(fs, "/src/index.html", "/dist/index.html", Options{})
	require.ErrorIs(t, err, ErrMalformedTemplate)
}

func TestRender_minify(t *testing.T) {
	plain, err := Render([]byte(page), Options{Scripts: []string{"main.js"}, Styles: []string{"main.css"}})
	require.NoError(t, err)

	out, err := Render([]byte(page), Options{
		Scripts: []string{"main.js"},
		Styles:  []string{"main.css"},
		Minify:  true,
	})
	require.NoError(t, err)
	s := string(out)

	assert.Less(t, len(out), len(plain))
	assert.NotContains(t, s, "analytics")
	assert.NotContains(t, s, "\n    ")
	assert.Contains(t, s, `href="main.css"`)
	assert.Contains(t, s, `src="main.js"`)
	assert.Contains(t, s, "</body>")
}

func TestGenerate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/html/index.html", []byte(page), 0644))

	err := Generate(fs, "/src/html/index.html", "/dist/index.html", Options{Scripts: []string{"main.js"}})
	require.NoError(t, err)

	out, err := afero.ReadFile(fs, "/dist/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(out), `src="main.js"`)
}

func TestGenerate_missingTemplate(t *testing.T) {
	err := Generate(afero.NewMemMapFs(), "/nope.html", "/dist/index.html", Options{})
	require.Error(t, err)
}
