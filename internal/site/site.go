// Package site holds the data-model types shared across the extraction
// pipeline: spec.md §3's "extraction site" and "derivative program".
package site

// Site is one `css`...`` occurrence found by the classifier (spec.md §3,
// "Extraction site"). Ranges are byte offsets into the original source
// text, inclusive-exclusive, and Index is the site's ordinal within its
// file in source order.
type Site struct {
	// Start/End span the whole tag-plus-template expression, e.g. the
	// entirety of `css`background: red`` including the tag.
	Start, End int

	// Index is this site's zero-based ordinal within the file. It is also
	// the numeric suffix of the derivative program's __severed_css_<i>
	// export for this site.
	Index int

	// Dynamic is false when the template has zero interpolation
	// expressions.
	Dynamic bool

	// StaticValue is the raw (unescaped) template chunk text, populated
	// only when Dynamic is false.
	StaticValue string

	// ClassName is filled in by the file coordinator after the host's
	// emit callback has assigned a class name to this site's CSS.
	ClassName string
}

// Program is the derivative program described in spec.md §3: a transient,
// minimised source string built from the original file, to be fed to the
// sub-bundler and then the evaluator. It exists only when at least one site
// is dynamic.
type Program struct {
	Text  string
	Sites []Site
}
