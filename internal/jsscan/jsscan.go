// Package jsscan is the parser adapter and classifier/rewriter from
// spec.md §4.1. It parses a file with tree-sitter's javascript grammar
// (byte ranges come for free from tree-sitter nodes), finds every bare
// `css`...`` tagged template, classifies each as static or dynamic, and
// builds the derivative program used by the sub-bundler for dynamic files.
//
// Grounded on bennypowers-design-tokens-language-server's
// internal/parser/js, which runs the same query shape (identifier tag +
// template_string argument of a call_expression) to find css-tagged
// templates for a language server. severed additionally needs export
// stripping and pure-call annotation, which that file does not do, since
// its job stops at reading CSS rather than re-emitting a program.
package jsscan

import (
	"fmt"
	"sort"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"github.com/calebeby/severed/internal/site"
	"github.com/calebeby/severed/internal/textedit"
)

// SitePrefix is the export-name prefix for hoisted derivative bindings
// (spec.md §3, "__severed_css_<i>").
const SitePrefix = "__severed_css_"

// sentinel replaces a site's tag-plus-template span in the derivative
// program. Its value is never observed: either the site is unused by any
// __severed_css_<i> export and gets tree-shaken away, or it is the export
// itself, whose value comes from the hoisted binding, not this spot.
const sentinel = `"severed"`

var jsLang = sitter.NewLanguage(tree_sitter_javascript.Language())

type scanner struct {
	parser      *sitter.Parser
	taggedQuery *sitter.Query
	callQuery   *sitter.Query
	exportQuery *sitter.Query
}

var pool = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		if err := p.SetLanguage(jsLang); err != nil {
			panic(fmt.Sprintf("jsscan: failed to set javascript language: %v", err))
		}

		tagged, err := sitter.NewQuery(jsLang, `
			(call_expression
				function: (identifier) @tag
				arguments: (template_string) @template) @callsite
		`)
		if err != nil {
			panic(fmt.Sprintf("jsscan: failed to compile tagged-template query: %v", err))
		}

		call, err := sitter.NewQuery(jsLang, `(call_expression) @call`)
		if err != nil {
			panic(fmt.Sprintf("jsscan: failed to compile call-expression query: %v", err))
		}

		export, err := sitter.NewQuery(jsLang, `(export_statement) @export`)
		if err != nil {
			panic(fmt.Sprintf("jsscan: failed to compile export query: %v", err))
		}

		return &scanner{parser: p, taggedQuery: tagged, callQuery: call, exportQuery: export}
	},
}

func acquire() *scanner {
	s := pool.Get().(*scanner)
	s.parser.Reset()
	return s
}

func release(s *scanner) {
	if s != nil {
		pool.Put(s)
	}
}

// Result is the classifier's output: the ordered site list, whether any
// site is dynamic, and the derivative program text (meaningful only when
// AnyDynamic is true; built regardless, since it is cheap pure text work).
type Result struct {
	Sites      []site.Site
	AnyDynamic bool
	Derivative string
}

// Program packages the result's sites and derivative text as the
// site.Program spec.md §3 describes: "a transient, minimised source string
// built from the original file, to be fed to the sub-bundler and then the
// evaluator." The sub-bundler only ever needs this pairing together, never
// the two fields independently, so this is the shape callers pass onward.
func (r *Result) Program() site.Program {
	return site.Program{Text: r.Derivative, Sites: r.Sites}
}

// foundSite is jsscan's internal bookkeeping for one tagged-template match,
// carrying the tree positions the public site.Site type doesn't need to
// expose to the rest of the pipeline.
type foundSite struct {
	callStart, callEnd     uint
	templateStart, tplEnd  uint
	dynamic                bool
	topLevelInsertionPoint uint
}

// Classify parses source and produces the site list plus derivative
// program. It returns an error only when tree-sitter fails to produce a
// tree at all (spec.md §4.1, "propagate the parser's syntax error
// unchanged" — tree-sitter's error-recovery means most malformed input
// still yields a tree with ERROR nodes rather than a thrown error, so this
// path is reached only on parser-internal failure).
func Classify(source string) (*Result, error) {
	s := acquire()
	defer release(s)

	srcBytes := []byte(source)
	tree := s.parser.Parse(srcBytes, nil)
	if tree == nil {
		return nil, fmt.Errorf("jsscan: failed to parse source")
	}
	defer tree.Close()

	root := tree.RootNode()

	found := findTaggedTemplates(s, root, srcBytes)
	if len(found) == 0 {
		return &Result{}, nil
	}

	sites := make([]site.Site, len(found))
	anyDynamic := false
	for i, f := range found {
		st := site.Site{
			Start:   int(f.callStart),
			End:     int(f.callEnd),
			Index:   i,
			Dynamic: f.dynamic,
		}
		if !f.dynamic {
			// Raw chunk text between the backticks, excluding them.
			st.StaticValue = source[f.templateStart+1 : f.tplEnd-1]
		} else {
			anyDynamic = true
		}
		sites[i] = st
	}

	derivative, err := buildDerivative(s, root, srcBytes, source, found)
	if err != nil {
		return nil, err
	}

	return &Result{Sites: sites, AnyDynamic: anyDynamic, Derivative: derivative}, nil
}

func findTaggedTemplates(s *scanner, root *sitter.Node, srcBytes []byte) []foundSite {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	names := s.taggedQuery.CaptureNames()
	var found []foundSite

	matches := cursor.Matches(s.taggedQuery, root, srcBytes)
	for m := matches.Next(); m != nil; m = matches.Next() {
		var tagNode, tplNode, callNode sitter.Node
		var haveTag, haveTpl, haveCall bool
		for _, capture := range m.Captures {
			switch names[capture.Index] {
			case "tag":
				tagNode, haveTag = capture.Node, true
			case "template":
				tplNode, haveTpl = capture.Node, true
			case "callsite":
				callNode, haveCall = capture.Node, true
			}
		}
		if !haveTag || !haveTpl || !haveCall {
			continue
		}
		// Non-goal: only the bare identifier tag `css` is recognized, not
		// `x.css` or a shadowed rebinding (spec.md §9, open question).
		if string(srcBytes[tagNode.StartByte():tagNode.EndByte()]) != "css" {
			continue
		}

		dynamic := false
		for i := uint(0); i < tplNode.ChildCount(); i++ {
			if tplNode.Child(i).Kind() == "template_substitution" {
				dynamic = true
				break
			}
		}

		found = append(found, foundSite{
			callStart:              callNode.StartByte(),
			callEnd:                callNode.EndByte(),
			templateStart:          tplNode.StartByte(),
			tplEnd:                 tplNode.EndByte(),
			dynamic:                dynamic,
			topLevelInsertionPoint: nearestTopLevelStatementStart(callNode),
		})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].callStart < found[j].callStart })
	return found
}

// nearestTopLevelStatementStart climbs from n until it finds the ancestor
// whose parent is the program root, i.e. the top-level statement n lives
// under (spec.md §4.1: hoist "immediately before the nearest enclosing
// top-level statement ... never inside a block").
func nearestTopLevelStatementStart(n sitter.Node) uint {
	cur := n
	for {
		parent := cur.Parent()
		if parent == nil {
			return cur.StartByte()
		}
		if parent.Kind() == "program" {
			return cur.StartByte()
		}
		cur = *parent
	}
}

func buildDerivative(s *scanner, root *sitter.Node, srcBytes []byte, source string, found []foundSite) (string, error) {
	var log textedit.Log

	for i, f := range found {
		log.Replace(int(f.callStart), int(f.callEnd), sentinel)
		rawTemplate := source[f.templateStart:f.tplEnd]
		binding := fmt.Sprintf("export const %s%d = %s;\n", SitePrefix, i, rawTemplate)
		log.InsertBefore(int(f.topLevelInsertionPoint), binding)
	}

	siteStarts := make(map[int]bool, len(found))
	for _, f := range found {
		siteStarts[int(f.callStart)] = true
	}

	stripExports(s, root, srcBytes, &log)
	annotatePureCalls(s, root, srcBytes, siteStarts, &log)

	return log.Apply(source)
}

// stripExports implements spec.md §4.1's export-handling rules. A
// declaration-attached export (named or default) keeps its declaration and
// loses only the "export"/"export default" keywords; anything else — a
// bare export clause (`export { a, b }`) or a re-export (`export * from
// './x'`, `export { a } from './x'`) — is removed outright, since neither
// form has a declaration for tree-shaking to hang onto.
func stripExports(s *scanner, root *sitter.Node, srcBytes []byte, log *textedit.Log) {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	names := s.exportQuery.CaptureNames()
	matches := cursor.Matches(s.exportQuery, root, srcBytes)
	for m := matches.Next(); m != nil; m = matches.Next() {
		for _, capture := range m.Captures {
			if names[capture.Index] != "export" {
				continue
			}
			exportNode := capture.Node
			if decl := exportNode.ChildByFieldName("declaration"); decl != nil {
				log.Replace(int(exportNode.StartByte()), int(decl.StartByte()), "")
			} else {
				log.Replace(int(exportNode.StartByte()), int(exportNode.EndByte()), "")
			}
		}
	}
}

// annotatePureCalls prepends /* @__PURE__ */ to every call expression
// except the ones this classifier is already replacing (spec.md §4.1: "Any
// call expression: prepend a pure-call annotation ... The annotation must
// be added to every call expression, not only to suspected dangerous
// ones").
func annotatePureCalls(s *scanner, root *sitter.Node, srcBytes []byte, siteStarts map[int]bool, log *textedit.Log) {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	names := s.callQuery.CaptureNames()
	matches := cursor.Matches(s.callQuery, root, srcBytes)
	for m := matches.Next(); m != nil; m = matches.Next() {
		for _, capture := range m.Captures {
			if names[capture.Index] != "call" {
				continue
			}
			start := int(capture.Node.StartByte())
			if siteStarts[start] {
				continue
			}
			log.InsertBefore(start, "/* @__PURE__ */ ")
		}
	}
}
