// Package evaluator executes a bundled derivative program in-process and
// harvests the CSS values it computed (spec.md §4.3). It uses
// dop251/goja, a pure-Go ECMAScript engine, so evaluation needs no
// subprocess and no Node.js installation on the host machine.
package evaluator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/calebeby/severed/internal/jsscan"
)

// Require resolves a bare specifier reached by require() inside the
// bundled script to its exports value. Sub-bundling already inlines every
// resolvable import (internal/subbundler), so Require exists for the
// remaining case named in spec.md §9: a module the host marked External
// rather than inlining (e.g. a `.css` sibling import, kept external so the
// host's own asset pipeline handles it untouched).
type Require func(specifier string) (goja.Value, error)

// Site is one evaluated __severed_css_<i> binding's result.
type Site struct {
	Index int
	CSS   string
}

// Run executes bundledScript and returns the evaluated CSS for every
// exported __severed_css_<i> binding, ordered by index. Per spec.md §4.3,
// any export under that prefix whose value is not a string is a hard
// error ("expected css to evaluate to string"), and any failure to
// construct or run the script is reported with the source id and
// underlying cause attached.
func Run(sourceID, bundledScript string, require Require) ([]Site, error) {
	rt := goja.New()

	exports := rt.NewObject()
	module := rt.NewObject()
	_ = module.Set("exports", exports)
	_ = rt.Set("module", module)
	_ = rt.Set("exports", exports)

	if require != nil {
		_ = rt.Set("require", func(call goja.FunctionCall) goja.Value {
			specifier := call.Argument(0).String()
			v, err := require(specifier)
			if err != nil {
				panic(rt.NewGoError(fmt.Errorf("require(%q): %w", specifier, err)))
			}
			return v
		})
	} else {
		_ = rt.Set("require", func(call goja.FunctionCall) goja.Value {
			panic(rt.NewTypeError("require is not available: %q has no module resolver", call.Argument(0).String()))
		})
	}

	if _, err := rt.RunString(bundledScript); err != nil {
		return nil, fmt.Errorf("Failed to evaluate `%s` while extracting css: %w", sourceID, err)
	}

	// A bundle in CommonJS format reassigns module.exports wholesale
	// (esbuild's own CJS output does this for a default-exports-only
	// module), so re-read it from module rather than trusting the
	// original exports object reference.
	moduleExports := module.Get("exports")
	obj := moduleExports.ToObject(rt)

	var sites []Site
	for _, key := range obj.Keys() {
		if !strings.HasPrefix(key, jsscan.SitePrefix) {
			continue
		}
		idxStr := strings.TrimPrefix(key, jsscan.SitePrefix)
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return nil, fmt.Errorf("Failed to evaluate `%s` while extracting css: export %q has a malformed site index: %w", sourceID, key, err)
		}

		val := obj.Get(key)
		if val == nil || goja.IsUndefined(val) || val.ExportType() == nil || val.ExportType().Kind().String() != "string" {
			return nil, fmt.Errorf("Failed to evaluate `%s` while extracting css: expected css to evaluate to string, got %s for site %d", sourceID, val.ExportType(), idx)
		}

		sites = append(sites, Site{Index: idx, CSS: val.String()})
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].Index < sites[j].Index })
	return sites, nil
}
