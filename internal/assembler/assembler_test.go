package assembler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valderanvvk/frontend-base-template/internal/project"
)

// scaffold lays out the default project tree under a temp dir and returns a
// descriptor anchored there.
func scaffold(t *testing.T) project.Descriptor {
	t.Helper()

	base := t.TempDir()
	d := project.Default()
	d.BaseDir = base

	root := filepath.Join(base, d.Src[project.AreaRoot].Path)
	for name, area := range d.Src {
		if name == project.AreaRoot {
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Join(root, area.Path), 0755))
	}
	html := filepath.Join(root, d.Src[project.AreaHTML].Path, d.HTMLIndexFile)
	require.NoError(t, os.WriteFile(html, []byte("<!doctype html><title>t</title>"), 0600))

	return d
}

func TestModeFromEnv(t *testing.T) {
	tests := []struct {
		value    string
		expected Mode
	}{
		{value: "development", expected: Development},
		{value: "production", expected: Production},
		{value: "", expected: Production},
		{value: "Development", expected: Production},
		{value: "test", expected: Production},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			require.Equal(t, tt.expected, ModeFromEnv(tt.value))
		})
	}
}

func TestResolveAliases_defaultDescriptor(t *testing.T) {
	aliases, err := ResolveAliases(project.Default())
	require.NoError(t, err)

	require.Len(t, aliases, 6)
	for _, token := range []string{"@", "@img", "@public", "@fonts", "@src", "@html"} {
		require.Contains(t, aliases, token)
		assert.True(t, filepath.IsAbs(aliases[token]), "token %s", token)
	}

	distinct := map[string]bool{}
	for _, dir := range aliases {
		distinct[dir] = true
	}
	assert.Len(t, distinct, 6)

	root := aliases["@"]
	assert.Equal(t, filepath.Join(root, "src"), aliases["@src"])
	assert.Equal(t, filepath.Join(root, "img"), aliases["@img"])
}

func TestResolveAliases_oneEntryPerToken(t *testing.T) {
	d := project.Default()
	d.BaseDir = "/work"
	d.Src = map[string]project.Area{
		project.AreaRoot: {Path: "web"},
		project.AreaHTML: {Path: "./html/"},
		"img":            {Path: "./img/", Alias: "@img"},
		"vendor":         {Path: "/opt/vendor", Alias: "@vendor"},
		"fonts":          {Path: "./fonts/", Alias: ""},
	}

	aliases, err := ResolveAliases(d)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"@img":    filepath.FromSlash("/work/web/img"),
		"@vendor": filepath.FromSlash("/opt/vendor"),
	}, aliases)
}

func TestResolveAliases_missingRoot(t *testing.T) {
	d := project.Default()
	delete(d.Src, project.AreaRoot)

	_, err := ResolveAliases(d)
	require.ErrorIs(t, err, project.ErrDescriptor)
}

func TestFilenameFor(t *testing.T) {
	d := project.Default()

	tests := []struct {
		name     string
		kind     ArtifactKind
		mode     Mode
		expected string
	}{
		{name: "js development", kind: KindJS, mode: Development, expected: "[name].js"},
		{name: "js production", kind: KindJS, mode: Production, expected: "[name].[hash].js"},
		{name: "css development", kind: KindCSS, mode: Development, expected: "[name].css"},
		{name: "css production", kind: KindCSS, mode: Production, expected: "[name].[hash].min.css"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilenameFor(d, tt.kind, tt.mode)
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
			require.True(t, strings.HasSuffix(got, tt.kind.Ext()))
		})
	}
}

func TestFilenameFor_devAndProdDiffer(t *testing.T) {
	d := project.Default()

	dev, err := FilenameFor(d, KindJS, Development)
	require.NoError(t, err)
	prod, err := FilenameFor(d, KindJS, Production)
	require.NoError(t, err)

	require.NotEqual(t, dev, prod)

	d.Dist.JS.Prod = d.Dist.JS.Dev
	prod, err = FilenameFor(d, KindJS, Production)
	require.NoError(t, err)
	require.Equal(t, dev, prod)
}

func TestFilenameFor_unknownKind(t *testing.T) {
	for _, kind := range []ArtifactKind{"", "html", "JS", "map"} {
		t.Run(string(kind), func(t *testing.T) {
			_, err := FilenameFor(project.Default(), kind, Production)
			require.ErrorIs(t, err, ErrUnknownArtifactKind)
			require.ErrorIs(t, err, project.ErrDescriptor)
		})
	}
}

func TestParseArtifactKind(t *testing.T) {
	k, err := ParseArtifactKind("css")
	require.NoError(t, err)
	require.Equal(t, KindCSS, k)

	_, err = ParseArtifactKind("png")
	require.ErrorIs(t, err, ErrUnknownArtifactKind)
}

func TestAssemble(t *testing.T) {
	d := scaffold(t)
	root := filepath.Join(d.BaseDir, "#src")

	cfg, err := Assemble(d, Production, Options{DevServer: DefaultDevServer()})
	require.NoError(t, err)

	assert.Equal(t, Production, cfg.Mode)
	assert.Equal(t, root, cfg.Context)
	assert.Equal(t, filepath.Join(d.BaseDir, "dist"), cfg.Output.Path)
	assert.Equal(t, "[name].[hash].js", cfg.Output.Filename)
	assert.Equal(t, "[name].[hash].min.css", cfg.Output.CSSFilename)
	assert.Equal(t, filepath.Join(root, "html", "index.html"), cfg.HTML.Template)
	assert.True(t, cfg.HTML.Minify)
	assert.True(t, cfg.Optimization.Minimize)
	assert.Empty(t, cfg.Devtool)
	assert.Equal(t, root, cfg.DevServer.ContentBase)
	assert.Equal(t, 9000, cfg.DevServer.Port)

	require.Len(t, cfg.Copy, 3)
	assert.Equal(t, filepath.Join(root, "public"), cfg.Copy[0].From)
	assert.Equal(t, filepath.Join(d.BaseDir, "dist", "public"), cfg.Copy[0].To)
	assert.True(t, cfg.Copy[0].NoErrorOnMissing)

	dir, ok := cfg.AliasFor("@src")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src"), dir)
}

func TestAssemble_development(t *testing.T) {
	cfg, err := Assemble(scaffold(t), Development, Options{})
	require.NoError(t, err)

	assert.Equal(t, "[name].js", cfg.Output.Filename)
	assert.Equal(t, "[name].css", cfg.Output.CSSFilename)
	assert.Equal(t, "inline-source-map", cfg.Devtool)
	assert.False(t, cfg.Optimization.Minimize)
	assert.False(t, cfg.HTML.Minify)
}

func TestAssemble_isIdempotent(t *testing.T) {
	d := scaffold(t)

	for _, mode := range []Mode{Development, Production} {
		first, err := Assemble(d, mode, Options{DevServer: DefaultDevServer()})
		require.NoError(t, err)
		second, err := Assemble(d, mode, Options{DevServer: DefaultDevServer()})
		require.NoError(t, err)

		a, err := first.Digest()
		require.NoError(t, err)
		b, err := second.Digest()
		require.NoError(t, err)
		require.Equal(t, a, b)
	}
}

func TestAssemble_doesNotShareDescriptorState(t *testing.T) {
	d := scaffold(t)
	cfg, err := Assemble(d, Production, Options{})
	require.NoError(t, err)

	cfg.Entry["main"][0] = "./other.js"
	cfg.Resolve.Extensions[0] = ".coffee"

	assert.Equal(t, "./index.js", d.Entry["main"][0])
	assert.Equal(t, ".js", d.Extensions[0])
}

func TestAssemble_descriptorError(t *testing.T) {
	d := scaffold(t)
	d.HTMLIndexFile = ""

	_, err := Assemble(d, Production, Options{})
	require.ErrorIs(t, err, project.ErrDescriptor)
}

func TestAssemble_pathErrors(t *testing.T) {
	t.Run("missing alias directory", func(t *testing.T) {
		d := scaffold(t)
		require.NoError(t, os.RemoveAll(filepath.Join(d.BaseDir, "#src", "fonts")))

		_, err := Assemble(d, Production, Options{})
		require.ErrorIs(t, err, project.ErrPathResolution)
		assert.Contains(t, err.Error(), "src.fonts")
	})

	t.Run("missing html template", func(t *testing.T) {
		d := scaffold(t)
		require.NoError(t, os.Remove(filepath.Join(d.BaseDir, "#src", "html", "index.html")))

		_, err := Assemble(d, Production, Options{})
		require.ErrorIs(t, err, project.ErrPathResolution)
		assert.Contains(t, err.Error(), "htmlIndexFile")
	})

	t.Run("required copy source missing", func(t *testing.T) {
		d := scaffold(t)
		d.CopyDirectory = append(d.CopyDirectory, project.CopyRule{From: "./static/", To: "./static/"})

		_, err := Assemble(d, Production, Options{})
		require.ErrorIs(t, err, project.ErrPathResolution)
		assert.Contains(t, err.Error(), "copyDirectory[3].from")
	})

	t.Run("skip path check", func(t *testing.T) {
		d := project.Default()
		d.BaseDir = filepath.Join(t.TempDir(), "missing")

		_, err := Assemble(d, Production, Options{SkipPathCheck: true})
		require.NoError(t, err)
	})
}

func TestRuleFor(t *testing.T) {
	cfg := &Config{Rules: Rules()}

	tests := []struct {
		path   string
		loader string
	}{
		{path: "a/style.css", loader: LoaderCSS},
		{path: "a/style.sass", loader: LoaderSass},
		{path: "a/style.SCSS", loader: LoaderSass},
		{path: "f/font.woff2", loader: LoaderFile},
		{path: "img/logo.jpeg", loader: LoaderFile},
		{path: "index.mjs", loader: LoaderJS},
		{path: "app.ts", loader: LoaderTS},
		{path: "view.jsx", loader: LoaderJSX},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, ok := cfg.RuleFor(tt.path)
			require.True(t, ok)
			require.Equal(t, tt.loader, r.Loader)
		})
	}

	_, ok := cfg.RuleFor("data.bin")
	require.False(t, ok)
}

func TestRules_hashQuery(t *testing.T) {
	cfg := &Config{Rules: Rules()}

	font, ok := cfg.RuleFor("fonts/a.woff2")
	require.True(t, ok)
	assert.True(t, font.HashQuery)

	img, ok := cfg.RuleFor("img/bg.png")
	require.True(t, ok)
	assert.False(t, img.HashQuery)
}
