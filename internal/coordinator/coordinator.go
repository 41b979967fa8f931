// Package coordinator is the per-file state machine from spec.md §4.4: it
// drives one source file from raw text through classification, static or
// dynamic resolution, substitution, and CSS emission.
package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/calebeby/severed/internal/cache"
	"github.com/calebeby/severed/internal/cssfrag"
	"github.com/calebeby/severed/internal/evaluator"
	"github.com/calebeby/severed/internal/filebuffer"
	"github.com/calebeby/severed/internal/jsscan"
	"github.com/calebeby/severed/internal/site"
	"github.com/calebeby/severed/internal/sourcemap"
	"github.com/calebeby/severed/internal/subbundler"
	"github.com/calebeby/severed/internal/textedit"
)

// State names the coordinator's position in spec.md §4.4's state machine.
type State int

const (
	Idle State = iota
	Parsed
	Classified
	AllStatic
	NeedsEval
	Substituted
	Emitted
	ParseError
	EvalError
	TypeError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Parsed:
		return "Parsed"
	case Classified:
		return "Classified"
	case AllStatic:
		return "AllStatic"
	case NeedsEval:
		return "NeedsEval"
	case Substituted:
		return "Substituted"
	case Emitted:
		return "Emitted"
	case ParseError:
		return "ParseError"
	case EvalError:
		return "EvalError"
	case TypeError:
		return "TypeError"
	default:
		return "Unknown"
	}
}

// Coordinator carries the collaborators shared across every file this
// process transforms: the process-wide CSS fragment registry, the
// process-wide per-file CSS buffer, and the sub-bundle memoization cache
// (spec.md §5: "exactly one process-wide mapping" for both).
type Coordinator struct {
	Fragments *cssfrag.Registry
	Buffer    *filebuffer.Buffer
	Cache     *cache.BundleCache
	Post      cssfrag.PostProcessor

	// Resolve delegates the sub-bundler's bare-specifier resolution to the
	// host (spec.md §9). May be nil if no file ever needs evaluation.
	Resolve subbundler.Resolver

	// Require resolves specifiers the sub-bundler marked external, for the
	// evaluator's require() shim. May be nil.
	Require evaluator.Require

	// ExtraPlugins are the host's other registered plugins (spec.md §4.5's
	// `options` hook), snapshotted once per host build and replayed into
	// every sub-bundle run so package resolution and transpilation behave
	// the same inside the sub-bundler as outside it.
	ExtraPlugins []api.Plugin
}

// Result is what a successful Transform returns.
type Result struct {
	State       State
	Text        string
	Map         *sourcemap.Map
	CSS         string
	AnySites    bool
	ImportsUsed bool
}

// Transform runs sourceID's text through the full pipeline (spec.md §4.4).
// importSpecifier is the module specifier to prepend as the generated
// file's CSS import; pass "" to suppress the import line (e.g. a host that
// injects the import itself).
func (c *Coordinator) Transform(sourceID, source, importSpecifier string) (*Result, error) {
	c.Buffer.Reset(sourceID)

	// Step 1: cheap filter (spec.md §4.4/§8). A file with no literal
	// `` css` `` substring cannot contain a css-tagged template, so it is
	// skipped without parsing.
	if !strings.Contains(source, "css`") {
		return &Result{State: Idle, Text: source}, nil
	}

	classified, err := jsscan.Classify(source)
	if err != nil {
		return nil, fmt.Errorf("%w", wrapState(ParseError, sourceID, err))
	}
	if len(classified.Sites) == 0 {
		return &Result{State: Classified, Text: source}, nil
	}

	sites := classified.Sites

	if !classified.AnyDynamic {
		if err := c.emitStatic(sites); err != nil {
			return nil, wrapState(TypeError, sourceID, err)
		}
	} else {
		if err := c.emitDynamic(sourceID, classified.Program()); err != nil {
			return nil, err
		}
	}

	text, srcMap, css, err := c.substitute(sourceID, source, sites, importSpecifier)
	if err != nil {
		return nil, fmt.Errorf("coordinator: substituting %q: %w", sourceID, err)
	}

	c.Buffer.Set(sourceID, []string{css})

	return &Result{
		State:       Emitted,
		Text:        text,
		Map:         srcMap,
		CSS:         css,
		AnySites:    true,
		ImportsUsed: importSpecifier != "",
	}, nil
}

func wrapState(state State, sourceID string, cause error) error {
	return fmt.Errorf("coordinator: %s transforming %q: %w", state, sourceID, cause)
}

// emitStatic is the fast path (spec.md §4.4 step 3): emit every site's
// already-known CSS directly, in source order, skipping the sub-bundler and
// evaluator entirely.
func (c *Coordinator) emitStatic(sites []site.Site) error {
	for i := range sites {
		s := &sites[i]
		fragment, err := c.Fragments.Emit(s.StaticValue, c.Post)
		if err != nil {
			return err
		}
		s.ClassName = fragment.ClassName
	}
	return nil
}

// emitDynamic sub-bundles and evaluates the derivative program, then emits
// each resulting CSS string (spec.md §4.4 step 4). program pairs the
// classifier's derivative text with the site list it was built from
// (internal/jsscan's Result.Program), since the two are never used apart.
func (c *Coordinator) emitDynamic(sourceID string, program site.Program) error {
	key := cache.Key(sourceID + "\x00" + program.Text)

	bundled, ok := c.Cache.Get(key)
	if !ok {
		built, err := subbundler.Bundle(subbundler.Options{
			SourceID:     sourceID,
			Derivative:   program.Text,
			Resolve:      c.Resolve,
			ExtraPlugins: c.ExtraPlugins,
		})
		if err != nil {
			return fmt.Errorf("coordinator: %w", err)
		}
		bundled = built
		c.Cache.Put(key, bundled)
	}

	results, err := evaluator.Run(sourceID, bundled, c.Require)
	if err != nil {
		return err
	}

	byIndex := make(map[int]string, len(results))
	for _, r := range results {
		byIndex[r.Index] = r.CSS
	}

	for i := range program.Sites {
		s := &program.Sites[i]
		css, ok := byIndex[s.Index]
		if !ok {
			return fmt.Errorf("coordinator: site %d for %q has no evaluated css", s.Index, sourceID)
		}
		fragment, err := c.Fragments.Emit(css, c.Post)
		if err != nil {
			return err
		}
		s.ClassName = fragment.ClassName
	}
	return nil
}

// substitute is spec.md §4.4 steps 5-6: build a fresh edit log replacing
// each site's byte range with its JSON-quoted class name, then prepend the
// CSS-import line, and apply with a source map.
func (c *Coordinator) substitute(sourceID, source string, sites []site.Site, importSpecifier string) (string, *sourcemap.Map, string, error) {
	var log textedit.Log
	var cssParts []string

	for _, s := range sites {
		quoted, err := json.Marshal(s.ClassName)
		if err != nil {
			return "", nil, "", err
		}
		log.Replace(s.Start, s.End, string(quoted))
	}

	if importSpecifier != "" {
		quotedSpecifier, err := json.Marshal(importSpecifier)
		if err != nil {
			return "", nil, "", err
		}
		log.InsertBefore(0, fmt.Sprintf("import %s;\n", quotedSpecifier))
	}

	text, srcMap, err := log.ApplyWithMap(sourceID, source)
	if err != nil {
		return "", nil, "", err
	}

	for _, s := range sites {
		css, ok := c.Fragments.LookupByClassName(s.ClassName)
		if ok {
			cssParts = append(cssParts, css)
		}
	}

	return text, srcMap, strings.Join(cssParts, "\n\n\n"), nil
}
