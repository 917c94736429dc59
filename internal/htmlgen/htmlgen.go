// Package htmlgen renders the HTML entry page: the template with the bundle
// stylesheets and scripts injected, optionally minified.
package htmlgen

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	mhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMalformedTemplate is returned when the template cannot be parsed or has
// no body to inject into, as in a frameset document.
var ErrMalformedTemplate = errors.New("malformed html template")

// LiveReloadScript subscribes to the dev server's reload stream and reloads
// the page on every event. %q is replaced by the stream URL.
const LiveReloadScript = `(function(){var s=new EventSource(%q);s.addEventListener("reload",function(){location.reload()})})();`

type Options struct {
	// Scripts and Styles are the URLs injected into the page, in order.
	Scripts []string
	Styles  []string
	// Module marks scripts as ES modules instead of deferred classic scripts.
	Module bool
	// LiveReloadURL, when set, injects the live reload client.
	LiveReloadURL string
	Minify        bool
}

// Render injects the assets into template and returns the resulting page.
func Render(template []byte, opts Options) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}

	head := find(doc, atom.Head)
	body := find(doc, atom.Body)
	if head == nil || body == nil {
		return nil, ErrMalformedTemplate
	}

	for _, href := range opts.Styles {
		head.AppendChild(element(atom.Link, attr("rel", "stylesheet"), attr("href", href)))
	}

	for _, src := range opts.Scripts {
		kind := attr("defer", "")
		if opts.Module {
			kind = attr("type", "module")
		}
		body.AppendChild(element(atom.Script, kind, attr("src", src)))
	}

	if opts.LiveReloadURL != "" {
		script := element(atom.Script)
		script.AppendChild(&html.Node{Type: html.TextNode, Data: fmt.Sprintf(LiveReloadScript, opts.LiveReloadURL)})
		body.AppendChild(script)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	if !opts.Minify {
		return buf.Bytes(), nil
	}

	var out bytes.Buffer
	if err := minifier().Minify("text/html", &out, &buf); err != nil {
		return nil, fmt.Errorf("failed to minify page: %w", err)
	}
	return out.Bytes(), nil
}

// Generate renders the template at templatePath into outPath.
func Generate(fs afero.Fs, templatePath, outPath string, opts Options) error {
	template, err := afero.ReadFile(fs, templatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	page, err := Render(template, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", templatePath, err)
	}

	if err := fs.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	if err := afero.WriteFile(fs, outPath, page, 0644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}

	log.Debug().
		Str("template", templatePath).
		Str("output", outPath).
		Int("scripts", len(opts.Scripts)).
		Int("styles", len(opts.Styles)).
		Msg("Generated html page")

	return nil
}

func minifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &mhtml.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepDefaultAttrVals: true,
		KeepQuotes:          true,
	})
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return m
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}
