package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
)

const entryNamespace = "bundle-entry"

// entriesPlugin serves a synthetic module per multi-module bundle that
// imports each listed module in order.
func entriesPlugin(resolveDir string, entries map[string][]string) api.Plugin {
	return api.Plugin{
		Name: "bundle-entries",
		Setup: func(pb api.PluginBuild) {
			pb.OnResolve(api.OnResolveOptions{Filter: "^" + entryNamespace + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
						Namespace: entryNamespace,
					}, nil
				})

			pb.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					modules, ok := entries[args.Path]
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("unknown bundle %q", args.Path)
					}
					contents := entrySource(modules)
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: resolveDir,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

func entrySource(modules []string) string {
	var b strings.Builder
	for _, m := range modules {
		fmt.Fprintf(&b, "import %s;\n", strconv.Quote(m))
	}
	return b.String()
}

// aliasPlugin rewrites imports starting with an alias token, followed by a
// slash or nothing, to the token's directory and hands the result back to
// esbuild's resolver so extension and index probing still apply.
func aliasPlugin(aliases map[string]string) api.Plugin {
	return api.Plugin{
		Name: "alias",
		Setup: func(pb api.PluginBuild) {
			if len(aliases) == 0 {
				return
			}
			pattern := aliasPattern(aliases)
			re := regexp.MustCompile(pattern)

			pb.OnResolve(api.OnResolveOptions{Filter: pattern},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					target, ok := expandAlias(re, aliases, args.Path)
					if !ok {
						return api.OnResolveResult{}, nil
					}

					resolved := pb.Resolve(target, api.ResolveOptions{
						Importer:   args.Importer,
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
					})
					if len(resolved.Errors) > 0 {
						return api.OnResolveResult{Errors: resolved.Errors}, nil
					}

					return api.OnResolveResult{
						Path:      resolved.Path,
						Namespace: resolved.Namespace,
						External:  resolved.External,
						Suffix:    resolved.Suffix,
					}, nil
				})
		},
	}
}

// hashQueryPlugin appends "?<content hash>" to references of files whose
// rule asks for it, so browsers refetch them when they change while the
// emitted file keeps its source name.
func hashQueryPlugin(cfg *assembler.Config) api.Plugin {
	return api.Plugin{
		Name: "hash-query",
		Setup: func(pb api.PluginBuild) {
			pattern := hashQueryPattern(cfg.Rules)
			if pattern == "" {
				return
			}

			pb.OnResolve(api.OnResolveOptions{Filter: pattern},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.PluginData == hashQueryPass {
						return api.OnResolveResult{}, nil
					}

					resolved := pb.Resolve(args.Path, api.ResolveOptions{
						Importer:   args.Importer,
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
						PluginData: hashQueryPass,
					})
					if len(resolved.Errors) > 0 {
						return api.OnResolveResult{Errors: resolved.Errors}, nil
					}

					result := api.OnResolveResult{
						Path:      resolved.Path,
						Namespace: resolved.Namespace,
						External:  resolved.External,
						Suffix:    resolved.Suffix,
					}
					rule, ok := cfg.RuleFor(resolved.Path)
					if resolved.External || resolved.Suffix != "" || resolved.Namespace != "file" || !ok || !rule.HashQuery {
						return result, nil
					}

					data, err := os.ReadFile(resolved.Path)
					if err != nil {
						return api.OnResolveResult{}, err
					}
					result.Suffix = "?" + ContentHash(data)
					return result, nil
				})
		},
	}
}

// hashQueryPass marks the nested resolve of hashQueryPlugin.
const hashQueryPass = "hash-query-pass"

func hashQueryPattern(rules []assembler.Rule) string {
	var exts []string
	for _, r := range rules {
		if !r.HashQuery {
			continue
		}
		for _, ext := range r.Extensions {
			exts = append(exts, regexp.QuoteMeta(ext))
		}
	}
	if len(exts) == 0 {
		return ""
	}
	return "(?i)(" + strings.Join(exts, "|") + ")$"
}

// aliasPattern matches any token at the start of an import path. Longer
// tokens come first so "@img" is tried before "@".
func aliasPattern(aliases map[string]string) string {
	tokens := make([]string, 0, len(aliases))
	for token := range aliases {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	quoted := make([]string, len(tokens))
	for i, token := range tokens {
		quoted[i] = regexp.QuoteMeta(token)
	}
	return "^(" + strings.Join(quoted, "|") + ")(/|$)"
}

func expandAlias(re *regexp.Regexp, aliases map[string]string, path string) (string, bool) {
	m := re.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	dir := aliases[m[1]]
	rest := strings.TrimPrefix(path[len(m[1]):], "/")
	if rest == "" {
		return dir, true
	}
	return filepath.Join(dir, filepath.FromSlash(rest)), true
}
