// Package textedit is the "text editor" component from spec.md §2: an
// immutable original text plus a log of byte-range edits, applied once to
// produce rewritten text and (optionally) a source map. Every stage that
// rewrites source text — the classifier building a derivative program, and
// the file coordinator substituting class names — goes through this log
// instead of re-printing an AST, so comments and formatting outside edited
// ranges are untouched by construction.
package textedit

import (
	"fmt"
	"sort"

	"github.com/calebeby/severed/internal/helpers"
	"github.com/calebeby/severed/internal/sourcemap"
)

// Edit replaces original[Start:End) with Replacement. Start == End is a
// pure insertion immediately before byte Start.
type Edit struct {
	Start, End  int
	Replacement string
}

// Log collects edits against one original text. Edits may be added in any
// order; Apply sorts them by Start before applying.
type Log struct {
	edits []Edit
}

func (l *Log) Replace(start, end int, replacement string) {
	if end < start {
		panic(fmt.Sprintf("textedit: invalid range [%d, %d)", start, end))
	}
	l.edits = append(l.edits, Edit{Start: start, End: end, Replacement: replacement})
}

func (l *Log) InsertBefore(pos int, text string) {
	l.Replace(pos, pos, text)
}

func (l *Log) Len() int {
	return len(l.edits)
}

// sorted returns edits ordered by Start ascending, preserving insertion
// order for edits that share a Start (so multiple InsertBefore calls at the
// same position appear in the order they were added).
func (l *Log) sorted() []Edit {
	out := make([]Edit, len(l.edits))
	copy(out, l.edits)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Apply renders the rewritten text, verifying that no two edits overlap.
func (l *Log) Apply(original string) (string, error) {
	var out helpers.Joiner
	cur := 0
	for _, e := range l.sorted() {
		if e.Start < cur {
			return "", fmt.Errorf("textedit: overlapping edit at byte %d", e.Start)
		}
		out.AddString(original[cur:e.Start])
		out.AddString(e.Replacement)
		if e.End > cur {
			cur = e.End
		}
	}
	out.AddString(original[cur:])
	return out.String(), nil
}

// ApplyWithMap behaves like Apply but also produces a source map tying each
// untouched run of text back to its position in the original.
func (l *Log) ApplyWithMap(sourceID, original string) (string, *sourcemap.Map, error) {
	var out helpers.Joiner
	var builder sourcemap.Builder

	cur := 0
	origLine, origCol := 0, 0
	genLine, genCol := 0, 0

	emitRun := func(run string) {
		if run == "" {
			return
		}
		builder.AddMapping(sourcemap.Mapping{
			GeneratedLine: genLine, GeneratedColumn: genCol,
			OriginalLine: origLine, OriginalColumn: origCol,
		})
		genLine, genCol = advance(genLine, genCol, run)
		origLine, origCol = advance(origLine, origCol, run)
		out.AddString(run)
	}

	for _, e := range l.sorted() {
		if e.Start < cur {
			return "", nil, fmt.Errorf("textedit: overlapping edit at byte %d", e.Start)
		}
		emitRun(original[cur:e.Start])

		out.AddString(e.Replacement)
		genLine, genCol = advance(genLine, genCol, e.Replacement)
		if e.End > e.Start {
			origLine, origCol = advance(origLine, origCol, original[e.Start:e.End])
		}
		cur = e.End
	}
	emitRun(original[cur:])

	return out.String(), sourcemap.New(sourceID, original, &builder), nil
}

func advance(line, col int, s string) (int, int) {
	for _, r := range s {
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return line, col
}
