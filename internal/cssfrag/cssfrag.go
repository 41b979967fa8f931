// Package cssfrag implements spec.md §6's generated-class-name grammar and
// the CSS-fragment rendering that wraps each site's raw CSS in a selector
// block. Hashing is done directly with the standard library's crypto/sha512
// (as recera-vango's styling.Extractor hashes with crypto/sha256 directly):
// the spec names SHA-512 as the literal algorithm, so there is no
// third-party "hashing primitive" concern to delegate to — the primitive is
// the spec itself.
package cssfrag

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"sync"
)

// PostProcessor is the out-of-scope CSS transformation collaborator named
// in spec.md §1 ("CSS pretty-printing/namespacing... specified only at
// their interfaces") and referenced again in spec.md §6 ("passed through
// the CSS post-processor before accumulation"). Passthrough is the default;
// a host wires in autoprefixing, selector namespacing, or minification by
// supplying its own implementation.
type PostProcessor interface {
	Process(css string) (string, error)
}

type passthrough struct{}

func (passthrough) Process(css string) (string, error) { return css, nil }

// Passthrough is the no-op PostProcessor used when a host does not supply
// one.
var Passthrough PostProcessor = passthrough{}

// ClassName computes the spec.md §6 grammar: "severed-<hex>" where <hex> is
// the first 7 hex characters of SHA-512 over the raw CSS text.
func ClassName(rawCSS string) string {
	sum := sha512.Sum512([]byte(rawCSS))
	return "severed-" + hex.EncodeToString(sum[:])[:7]
}

// Fragment is a generated class selector rule (spec.md §3, "CSS fragment").
type Fragment struct {
	ClassName string
	CSS       string
}

// Registry deduplicates fragments by content: spec.md §3 and §8 require
// that identical CSS input yields the identical class name, "first-wins"
// on hash collision. It is process-wide and safe for concurrent use, since
// spec.md §5 allows multiple files to be transformed concurrently.
type Registry struct {
	mu   sync.Mutex
	byID map[string]Fragment
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Fragment)}
}

// LookupByClassName returns the fragment previously emitted under
// className, if any. The file coordinator uses this after emission to
// gather a file's fragments back into source order for its CSS buffer
// entry (spec.md §4.4 step 8).
func (r *Registry) LookupByClassName(className string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fragment, ok := r.byID[className]
	if !ok {
		return "", false
	}
	return fragment.CSS, true
}

// Emit turns raw CSS (the template interpolation result) into a class name
// and its rendered fragment: wrap rawCSS in its selector block first, then
// run the whole rule through post (spec.md §6: "the raw template result
// wrapped in a selector block... passed through the CSS post-processor
// before accumulation") — so a post-processor that rewrites or namespaces
// the selector itself sees it. This is the "only place where raw CSS
// becomes final CSS" referenced by spec.md §4.4's description of the host's
// emit callback — Registry.Emit is the reference implementation a host's
// emit hook delegates to.
func (r *Registry) Emit(rawCSS string, post PostProcessor) (Fragment, error) {
	if post == nil {
		post = Passthrough
	}
	className := ClassName(rawCSS)

	r.mu.Lock()
	if existing, ok := r.byID[className]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	wrapped := fmt.Sprintf(".%s { %s }", className, rawCSS)
	rendered, err := post.Process(wrapped)
	if err != nil {
		return Fragment{}, fmt.Errorf("cssfrag: post-processing failed: %w", err)
	}
	fragment := Fragment{
		ClassName: className,
		CSS:       rendered,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[className]; ok {
		return existing, nil
	}
	r.byID[className] = fragment
	return fragment, nil
}
