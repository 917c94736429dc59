package project

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Validate checks the descriptor for missing or malformed fields. Every
// failure is a *ConfigError matching ErrDescriptor; all problems found are
// joined into one error.
func (d Descriptor) Validate() error {
	var errs []error

	if strings.TrimSpace(d.HTMLIndexFile) == "" {
		errs = append(errs, DescriptorErrorf("htmlIndexFile", "is required"))
	}

	if len(d.Entry) == 0 {
		errs = append(errs, DescriptorErrorf("entry", "at least one bundle is required"))
	}
	for _, name := range sortedKeys(d.Entry) {
		if name == "" {
			errs = append(errs, DescriptorErrorf("entry", "bundle name must not be empty"))
		}
		if len(d.Entry[name]) == 0 {
			errs = append(errs, DescriptorErrorf("entry."+name, "no modules listed"))
		}
		for i, mod := range d.Entry[name] {
			if strings.TrimSpace(mod) == "" {
				errs = append(errs, DescriptorErrorf(fmt.Sprintf("entry.%s[%d]", name, i), "module path is empty"))
			}
		}
	}

	for i, ext := range d.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, DescriptorErrorf(fmt.Sprintf("extensions[%d]", i), "%q must start with a dot", ext))
		}
	}

	if _, ok := d.Src[AreaRoot]; !ok {
		errs = append(errs, DescriptorErrorf("src", "the %q area is required", AreaRoot))
	}
	if _, ok := d.Src[AreaHTML]; !ok {
		errs = append(errs, DescriptorErrorf("src", "the %q area is required", AreaHTML))
	}

	owners := map[string]string{}
	for _, name := range sortedKeys(d.Src) {
		area := d.Src[name]
		if strings.TrimSpace(area.Path) == "" {
			errs = append(errs, DescriptorErrorf("src."+name+".path", "is required"))
		}
		if !area.HasAlias() {
			continue
		}
		if strings.TrimSpace(area.Alias) != area.Alias || strings.Contains(area.Alias, "/") {
			errs = append(errs, DescriptorErrorf("src."+name+".alias", "%q is not a valid alias token", area.Alias))
		}
		if prev, dup := owners[area.Alias]; dup {
			errs = append(errs, DescriptorErrorf("src."+name+".alias", "token %q already used by area %q", area.Alias, prev))
			continue
		}
		owners[area.Alias] = name
	}

	if strings.TrimSpace(d.Dist.Root) == "" {
		errs = append(errs, DescriptorErrorf("dist.root", "is required"))
	}
	errs = append(errs, validateTemplate("dist.js", d.Dist.JS)...)
	errs = append(errs, validateTemplate("dist.css", d.Dist.CSS)...)

	for i, rule := range d.CopyDirectory {
		field := fmt.Sprintf("copyDirectory[%d]", i)
		if strings.TrimSpace(rule.From) == "" {
			errs = append(errs, DescriptorErrorf(field+".from", "is required"))
		}
		if strings.TrimSpace(rule.To) == "" {
			errs = append(errs, DescriptorErrorf(field+".to", "is required"))
		}
		for j, pattern := range rule.Ignore {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errs = append(errs, DescriptorErrorf(fmt.Sprintf("%s.ignore[%d]", field, j), "invalid pattern %q: %w", pattern, err))
			}
		}
	}

	return errors.Join(errs...)
}

func validateTemplate(field string, t Template) []error {
	var errs []error
	if strings.TrimSpace(t.Dev) == "" {
		errs = append(errs, DescriptorErrorf(field+".devMode", "is required"))
	}
	if strings.TrimSpace(t.Prod) == "" {
		errs = append(errs, DescriptorErrorf(field+".prodMode", "is required"))
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
