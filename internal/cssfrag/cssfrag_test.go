package cssfrag

import (
	"strings"
	"testing"
)

func TestClassNameIsDeterministic(t *testing.T) {
	a := ClassName("color: red;")
	b := ClassName("color: red;")
	if a != b {
		t.Fatalf("expected deterministic class name, got %q and %q", a, b)
	}
	if a[:8] != "severed-" {
		t.Fatalf("expected severed- prefix, got %q", a)
	}
	if len(a) != len("severed-")+7 {
		t.Fatalf("expected 7 hex chars after prefix, got %q (len %d)", a, len(a))
	}
}

func TestClassNameDistinguishesContent(t *testing.T) {
	a := ClassName("color: red;")
	b := ClassName("color: blue;")
	if a == b {
		t.Fatal("expected distinct class names for distinct css")
	}
}

func TestRegistryEmitDedupesByClassName(t *testing.T) {
	r := NewRegistry()
	f1, err := r.Emit("color: red;", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f2, err := r.Emit("color: red;", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f1.ClassName != f2.ClassName {
		t.Fatalf("expected same class name, got %q and %q", f1.ClassName, f2.ClassName)
	}
}

func TestRegistryEmitUsesPostProcessor(t *testing.T) {
	r := NewRegistry()
	upper := postProcessorFunc(func(css string) (string, error) {
		return "UPPER:" + css, nil
	})
	f, err := r.Emit("x", upper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(f.CSS, "UPPER:") {
		t.Fatalf("expected post-processed css in fragment, got %q", f.CSS)
	}
	if !strings.Contains(f.CSS, "{ x }") {
		t.Fatalf("expected post-processor to see the wrapped selector block, got %q", f.CSS)
	}
}

// TestRegistryEmitWrapsBeforePostProcessing confirms the post-processor
// receives the full ".<class> { <css> }" rule, not the bare css body, so a
// processor that rewrites selectors (e.g. namespacing) can see them.
func TestRegistryEmitWrapsBeforePostProcessing(t *testing.T) {
	r := NewRegistry()
	var sawSelector bool
	capture := postProcessorFunc(func(css string) (string, error) {
		if strings.Contains(css, "{") && strings.HasPrefix(css, ".severed-") {
			sawSelector = true
		}
		return css, nil
	})
	if _, err := r.Emit("color: red;", capture); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawSelector {
		t.Fatal("expected post-processor to receive the wrapped selector block")
	}
}

func TestLookupByClassNameFindsEmittedFragment(t *testing.T) {
	r := NewRegistry()
	f, err := r.Emit("color: green;", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	css, ok := r.LookupByClassName(f.ClassName)
	if !ok {
		t.Fatal("expected fragment to be found")
	}
	if css != f.CSS {
		t.Fatalf("got %q, want %q", css, f.CSS)
	}
}

func TestLookupByClassNameMissing(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.LookupByClassName("severed-0000000"); ok {
		t.Fatal("expected miss for unknown class name")
	}
}

type postProcessorFunc func(css string) (string, error)

func (f postProcessorFunc) Process(css string) (string, error) { return f(css) }
