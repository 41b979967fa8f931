// Package hostplugin adapts the coordinator to a host bundler, per
// spec.md §4.5's "universal plugin" shape: transform, resolveId, load, and
// options hooks, wired two ways — push mode, which rewrites the import to a
// flattened "<name>.severed.css" asset path, and pull mode, which serves CSS
// from a virtual module id. Push mode writes no CSS file and does not mark
// the asset import external; the CSS is only kept in the shared buffer.
//
// The push-mode adapter is grounded on evanw-esbuild's own api.Plugin
// shape (internal/api plugin hooks in pkg/api), since severed's reference
// host integration targets esbuild itself. Pull mode's virtual-id grammar
// mirrors the query-param cache-busting convention vite-style bundlers use
// for virtual CSS modules (`?severed=<hash>&lang.css`), which is the
// grammar spec.md §4.5 names directly.
package hostplugin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/calebeby/severed/internal/coordinator"
	"github.com/calebeby/severed/internal/filebuffer"
)

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("severed: reading %q: %w", path, err)
	}
	return string(b), nil
}

// Mode selects push or pull asset delivery (spec.md §4.5).
type Mode int

const (
	PushMode Mode = iota
	PullMode
)

// Hooks is the host-neutral 4-hook interface spec.md §4.5 describes. A
// concrete host (esbuild, or any other bundler) adapts its own plugin
// shape to this one.
type Hooks interface {
	// Transform runs the coordinator over one file's source and returns
	// the rewritten text plus whether it produced any CSS.
	Transform(sourceID, source string) (rewritten string, hasCSS bool, err error)

	// ResolveID recognizes a virtual CSS module id this adapter owns.
	ResolveID(id, importer string) (resolvedID string, ok bool)

	// Load returns a virtual module's contents.
	Load(id string) (contents string, ok bool)

	// Options receives a snapshot of the host's other registered plugins
	// (spec.md §4.5: "snapshot the list of other plugins registered in the
	// same host pipeline so the sub-bundler can inherit the host's resolver
	// and transformer chain"), so the sub-bundler run the next Transform
	// triggers can reuse them.
	Options(otherPlugins []api.Plugin)
}

// Adapter implements Hooks for one Coordinator plus Mode.
type Adapter struct {
	Coordinator *coordinator.Coordinator
	Buffer      *filebuffer.Buffer
	Mode        Mode
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// flatten turns a source id into the dash-joined path segment push mode
// uses for its emitted asset name (spec.md §4.5: "a push-mode asset path
// is the source id with every run of non-alphanumeric characters replaced
// by a single dash").
func flatten(sourceID string) string {
	return strings.Trim(nonAlphanumeric.ReplaceAllString(sourceID, "-"), "-")
}

// pushAssetPath implements spec.md §6's push-mode asset path grammar:
// "<flattened-source-id>.severed.css" where flattening happens on the
// source id's cwd-relative form.
func pushAssetPath(sourceID string) string {
	rel := sourceID
	if cwd, err := os.Getwd(); err == nil {
		if r, err := filepath.Rel(cwd, sourceID); err == nil {
			rel = r
		}
	}
	return flatten(rel) + ".severed.css"
}

func pullVirtualID(sourceID, css string) string {
	sum := sha256.Sum256([]byte(css))
	hash := hex.EncodeToString(sum[:])[:5]
	return fmt.Sprintf("%s?severed=%s&lang.css", sourceID, hash)
}

func stripSeveredQuery(id string) (sourceID string, ok bool) {
	i := strings.Index(id, "?severed=")
	if i < 0 {
		return "", false
	}
	return id[:i], true
}

// Transform runs the coordinator, then — in push mode — rewrites the
// import to point at the flattened asset path (no file is written there);
// in pull mode, to the virtual id. Spec.md §4.4's ImportSpecifier is supplied here, after the fact,
// since the specifier depends on the asset that only exists once the CSS
// itself is known.
func (a *Adapter) Transform(sourceID, source string) (string, bool, error) {
	// First pass with no import specifier, to discover whether the file has
	// any CSS at all and what that CSS is.
	res, err := a.Coordinator.Transform(sourceID, source, "")
	if err != nil {
		return "", false, err
	}
	if !res.AnySites || res.CSS == "" {
		return res.Text, false, nil
	}

	var specifier string
	switch a.Mode {
	case PushMode:
		specifier = "./" + pushAssetPath(sourceID)
	case PullMode:
		specifier = pullVirtualID(sourceID, res.CSS)
	}

	// Re-run with the now-known specifier. The coordinator is deterministic
	// and memoizes sub-bundle results (internal/cache), so this second pass
	// is cheap: only the substitution step (spec.md §4.4 steps 5-7) differs.
	final, err := a.Coordinator.Transform(sourceID, source, specifier)
	if err != nil {
		return "", false, err
	}
	return final.Text, true, nil
}

// ResolveID recognizes pull mode's virtual id grammar. In push mode it
// recognizes nothing: the asset import is left to esbuild's default
// file-namespace resolution and is not marked external.
func (a *Adapter) ResolveID(id, importer string) (string, bool) {
	if a.Mode != PullMode {
		return "", false
	}
	if _, ok := stripSeveredQuery(id); ok {
		return id, true
	}
	return "", false
}

// Load serves a pull-mode virtual id's CSS from the shared buffer.
func (a *Adapter) Load(id string) (string, bool) {
	if a.Mode != PullMode {
		return "", false
	}
	sourceID, ok := stripSeveredQuery(id)
	if !ok {
		return "", false
	}
	return a.Buffer.Get(sourceID)
}

// Options stores the host's other plugins on the coordinator, so every
// subsequent Transform's sub-bundle run inherits the same resolver and
// transformer chain the host itself uses.
func (a *Adapter) Options(otherPlugins []api.Plugin) {
	a.Coordinator.ExtraPlugins = otherPlugins
}

// ESBuildPlugin adapts Adapter to a concrete api.Plugin for esbuild. This
// is the reference host integration named in spec.md §4.5; any other
// bundler wires the same Hooks methods to its own plugin interface.
func ESBuildPlugin(a *Adapter) api.Plugin {
	return api.Plugin{
		Name: "severed",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				others := make([]api.Plugin, 0, len(build.InitialOptions.Plugins))
				for _, p := range build.InitialOptions.Plugins {
					if p.Name == "severed" {
						continue
					}
					others = append(others, p)
				}
				a.Options(others)
				return api.OnStartResult{}, nil
			})

			build.OnResolve(api.OnResolveOptions{Filter: `\?severed=`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				resolved, ok := a.ResolveID(args.Path, args.Importer)
				if !ok {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{Path: resolved, Namespace: "severed-pull"}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "severed-pull"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents, ok := a.Load(args.Path)
				if !ok {
					return api.OnLoadResult{}, fmt.Errorf("severed: no buffered css for %q", args.Path)
				}
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderCSS}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: `\.(js|ts|tsx)$`}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				source, err := readFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				rewritten, hasCSS, err := a.Transform(args.Path, source)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				if !hasCSS {
					return api.OnLoadResult{}, nil
				}
				loader := loaderForPath(args.Path)
				return api.OnLoadResult{Contents: &rewritten, Loader: loader}, nil
			})
		},
	}
}

func loaderForPath(p string) api.Loader {
	switch {
	case strings.HasSuffix(p, ".tsx"):
		return api.LoaderTSX
	case strings.HasSuffix(p, ".ts"):
		return api.LoaderTS
	case strings.HasSuffix(p, ".jsx"):
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}
