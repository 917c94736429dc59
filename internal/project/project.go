// Package project describes the layout of a front-end project: where sources
// live, which directories get short import aliases, how output bundles are
// named and which static directories are copied into the build.
package project

// Well known area names.
const (
	AreaRoot = "root"
	AreaHTML = "html"
)

// Descriptor is the static description of a front-end project. It is built
// once at start-up and treated as read-only afterwards.
type Descriptor struct {
	// HTMLIndexFile is the template file name inside the html area.
	HTMLIndexFile string `yaml:"htmlIndexFile" json:"htmlIndexFile"`
	// Entry maps a bundle name to the modules it is built from, in order.
	Entry map[string][]string `yaml:"entry" json:"entry"`
	// Extensions are tried, in order, when an import omits its extension.
	Extensions []string `yaml:"extensions" json:"extensions"`
	// Src maps a logical area name to its directory. The root area is the
	// source root; the other areas are relative to it.
	Src  map[string]Area `yaml:"src" json:"src"`
	Dist Dist            `yaml:"dist" json:"dist"`
	// CopyDirectory lists directories copied verbatim into the output.
	CopyDirectory []CopyRule `yaml:"copyDirectory" json:"copyDirectory"`

	// BaseDir anchors a relative root or dist path. Empty means the
	// working directory.
	BaseDir string `yaml:"-" json:"-"`
}

// Area is a source directory, optionally reachable through an alias token.
type Area struct {
	Path  string `yaml:"path" json:"path"`
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// HasAlias reports whether the area carries a usable alias token.
func (a Area) HasAlias() bool {
	return a.Alias != ""
}

// Dist describes the build output directory and the per mode filename
// templates of each artifact kind.
type Dist struct {
	Root string   `yaml:"root" json:"root"`
	JS   Template `yaml:"js" json:"js"`
	CSS  Template `yaml:"css" json:"css"`
}

// Template holds the filename template, without extension, used in
// development and production builds. [name] expands to the bundle name and
// [hash] to a content hash.
type Template struct {
	Dev  string `yaml:"devMode" json:"devMode"`
	Prod string `yaml:"prodMode" json:"prodMode"`
}

// CopyRule copies the From directory (relative to the source root) to To
// (relative to the output directory).
type CopyRule struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
	// IgnoreMissing suppresses the error for a missing or empty source.
	IgnoreMissing bool `yaml:"noErrorOnMissing" json:"noErrorOnMissing"`
	// Ignore holds glob patterns, relative to From, that are not copied.
	Ignore []string `yaml:"ignore,omitempty" json:"ignore,omitempty"`
}

// Default returns the descriptor of this repository's own front-end.
func Default() Descriptor {
	return Descriptor{
		HTMLIndexFile: "index.html",
		Entry: map[string][]string{
			"main": {"./index.js"},
		},
		Extensions: []string{".js", ".jsx", ".ts", ".json"},
		Src: map[string]Area{
			AreaRoot: {Path: "#src", Alias: "@"},
			"img":    {Path: "./img/", Alias: "@img"},
			"public": {Path: "./public/", Alias: "@public"},
			"fonts":  {Path: "./fonts/", Alias: "@fonts"},
			AreaHTML: {Path: "./html/", Alias: "@html"},
			"src":    {Path: "./src/", Alias: "@src"},
		},
		Dist: Dist{
			Root: "dist",
			JS:   Template{Dev: "[name]", Prod: "[name].[hash]"},
			CSS:  Template{Dev: "[name]", Prod: "[name].[hash].min"},
		},
		CopyDirectory: []CopyRule{
			{From: "./public/", To: "./public/", IgnoreMissing: true},
			{From: "./img/", To: "./img/", IgnoreMissing: true},
			{From: "./fonts/", To: "./fonts/", IgnoreMissing: true},
		},
	}
}
