package assembler

import "strings"

// Loader names understood by the build pipeline.
const (
	LoaderCSS  = "css"
	LoaderSass = "sass"
	LoaderFile = "file"
	LoaderJS   = "js"
	LoaderTS   = "ts"
	LoaderJSX  = "jsx"
)

// Rule routes files with the given extensions to a loader. Use lists the
// processing steps the rule stands for. References to files of a HashQuery
// rule get "?<content hash>" appended; the file itself keeps its name.
type Rule struct {
	Name       string   `json:"name" yaml:"name"`
	Extensions []string `json:"extensions" yaml:"extensions"`
	Loader     string   `json:"loader" yaml:"loader"`
	Use        []string `json:"use" yaml:"use"`
	HashQuery  bool     `json:"hashQuery,omitempty" yaml:"hashQuery,omitempty"`
}

// Rules returns the fixed extension routing table.
func Rules() []Rule {
	return []Rule{
		{Name: "css", Extensions: []string{".css"}, Loader: LoaderCSS, Use: []string{"extract", "css"}},
		{Name: "sass", Extensions: []string{".sass", ".scss"}, Loader: LoaderSass, Use: []string{"extract", "css-keep-urls", "sass"}},
		{Name: "fonts", Extensions: []string{".ttf", ".eot", ".woff", ".woff2", ".otf"}, Loader: LoaderFile, Use: []string{"file"}, HashQuery: true},
		{Name: "images", Extensions: []string{".gif", ".png", ".jpg", ".jpeg", ".svg"}, Loader: LoaderFile, Use: []string{"file"}},
		{Name: "js", Extensions: []string{".js", ".mjs"}, Loader: LoaderJS, Use: []string{"transpile"}},
		{Name: "ts", Extensions: []string{".ts"}, Loader: LoaderTS, Use: []string{"transpile", "strip-types"}},
		{Name: "jsx", Extensions: []string{".jsx"}, Loader: LoaderJSX, Use: []string{"transpile", "jsx"}},
	}
}

// RuleFor returns the rule handling path, matched by extension.
func (c *Config) RuleFor(path string) (Rule, bool) {
	lower := strings.ToLower(path)
	for _, r := range c.Rules {
		for _, ext := range r.Extensions {
			if strings.HasSuffix(lower, ext) {
				return r, true
			}
		}
	}
	return Rule{}, false
}
