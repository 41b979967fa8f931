// Package subbundler is the sub-bundler driver from spec.md §4.2: it feeds
// the classifier's derivative program into an embedded tree-shaking
// bundler and returns a single self-contained CommonJS script.
//
// The embedded bundler is evanw-esbuild's own public Build API. This is
// not an arbitrary choice of dependency: the system spec.md distills
// (calebeby/severed) already uses esbuild as its own sub-bundler, so this
// is the historically accurate choice as well as the practical one — esbuild
// is the one tree-shaking bundler in the retrieval pack with a stable,
// importable public Go API (its own internal bundler/linker/parser
// packages are, by Go's own rules, off-limits to any module outside
// evanw-esbuild itself).
package subbundler

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// severedNamespace is the esbuild plugin namespace of the virtual entry, so
// it never collides with esbuild's own file-namespace handling. Host-resolved
// modules stay in the default "file" namespace.
const severedNamespace = "severed"

// Resolver is the host-supplied resolve(id, importer) callback described in
// spec.md §9 ("Implementations must not hard-wire node module
// resolution"). A Resolver that returns ok=false lets esbuild's own
// resolution (and external-module handling) apply to id.
type Resolver func(id, importer string) (resolvedPath string, ok bool, err error)

// Options configures one sub-bundle run.
type Options struct {
	// SourceID identifies the file this derivative program was built from,
	// used only for diagnostics and as the resolution base directory.
	SourceID string

	// Derivative is the classifier's derivative program text.
	Derivative string

	// Resolve delegates bare-specifier resolution to the host, per
	// spec.md §9. May be nil, in which case esbuild's own default
	// resolution handles every import in Derivative.
	Resolve Resolver

	// ExtraPlugins are plugins copied from the host's own pipeline (spec.md
	// §4.5, the `options` hook: "snapshot the list of other plugins... so
	// the sub-bundler can inherit the host's resolver and transformer
	// chain"). They run alongside the virtual-module plugin below.
	ExtraPlugins []api.Plugin
}

func virtualEntryID(sourceID string) string {
	return "\x00severed-entry:" + sourceID
}

func hasCSSExtension(id string) bool {
	ext := strings.ToLower(path.Ext(stripQuery(id)))
	return ext == ".css"
}

func stripQuery(id string) string {
	if i := strings.IndexByte(id, '?'); i >= 0 {
		return id[:i]
	}
	return id
}

// Bundle runs the derivative program through esbuild with aggressive
// tree-shaking and returns the bundled CommonJS script text (spec.md §4.2:
// "Output format: a single CommonJS-style script with named exports").
func Bundle(opts Options) (string, error) {
	entry := virtualEntryID(opts.SourceID)

	virtualPlugin := api.Plugin{
		Name: "severed-virtual-entry",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Path == entry {
					return api.OnResolveResult{Path: entry, Namespace: severedNamespace}, nil
				}
				if opts.Resolve == nil {
					return api.OnResolveResult{}, nil
				}
				resolved, ok, err := opts.Resolve(args.Path, args.Importer)
				if err != nil {
					return api.OnResolveResult{}, fmt.Errorf("subbundler: resolving %q from %q: %w", args.Path, args.Importer, err)
				}
				if !ok {
					// Host resolver miss: non-fatal, per spec.md §7. Let
					// esbuild's own default resolution (or "external if
					// unresolvable") take over.
					return api.OnResolveResult{}, nil
				}
				// Leave Namespace unset (esbuild's default "file" namespace)
				// so its own OnLoad reads resolved straight off disk, the
				// same way it would for any path esbuild resolved itself.
				// Only the virtual entry needs severedNamespace, since it
				// alone has no real file to read.
				return api.OnResolveResult{
					Path:     resolved,
					External: hasCSSExtension(resolved),
				}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: severedNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				if args.Path == entry {
					contents := opts.Derivative
					resolveDir := filepath.Dir(opts.SourceID)
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS, ResolveDir: resolveDir}, nil
				}
				return api.OnLoadResult{}, fmt.Errorf("subbundler: unexpected module %q in severed namespace", args.Path)
			})
		},
	}

	plugins := append([]api.Plugin{virtualPlugin}, opts.ExtraPlugins...)

	result := api.Build(api.BuildOptions{
		EntryPoints: []string{entry},
		Bundle:      true,
		Write:       false,
		Format:      api.FormatCommonJS,
		Platform:    api.PlatformNeutral,
		TreeShaking: api.TreeShakingTrue,
		LogLevel:    api.LogLevelSilent,
		Plugins:     plugins,
	})

	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return "", fmt.Errorf("subbundler: bundling %q: %s", opts.SourceID, strings.Join(msgs, "\n"))
	}

	for _, out := range result.OutputFiles {
		if strings.HasSuffix(out.Path, ".js") || out.Path == "<stdout>" {
			return string(out.Contents), nil
		}
	}
	if len(result.OutputFiles) > 0 {
		return string(result.OutputFiles[0].Contents), nil
	}
	return "", fmt.Errorf("subbundler: esbuild produced no output for %q", opts.SourceID)
}
