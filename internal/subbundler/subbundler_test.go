package subbundler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVirtualEntryIDIsNULPrefixedAndStable(t *testing.T) {
	a := virtualEntryID("src/app.ts")
	b := virtualEntryID("src/app.ts")
	if a != b {
		t.Fatalf("expected stable virtual entry id, got %q and %q", a, b)
	}
	if a[0] != 0 {
		t.Fatalf("expected NUL-prefixed virtual id, got %q", a)
	}
}

func TestVirtualEntryIDDiffersPerSource(t *testing.T) {
	a := virtualEntryID("a.ts")
	b := virtualEntryID("b.ts")
	if a == b {
		t.Fatal("expected distinct virtual ids for distinct source ids")
	}
}

func TestHasCSSExtensionIgnoresQueryAndCase(t *testing.T) {
	cases := map[string]bool{
		"theme.css":         true,
		"theme.CSS":         true,
		"theme.css?inline":  true,
		"theme.ts":          false,
		"theme.module.scss": false,
	}
	for id, want := range cases {
		if got := hasCSSExtension(id); got != want {
			t.Errorf("hasCSSExtension(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestBundleRunsEsbuildOverDerivative(t *testing.T) {
	res, err := Bundle(Options{
		SourceID:   "app.js",
		Derivative: `export const __severed_css_0 = "color: red;";`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == "" {
		t.Fatal("expected non-empty bundled output")
	}
}

// TestBundleInlinesHostResolvedImport exercises the previously-broken path:
// a derivative importing a bare specifier the host resolver resolves to a
// real file on disk (not a CSS asset). The resolved module must actually be
// read and bundled in, not rejected with "no content for resolved module".
func TestBundleInlinesHostResolvedImport(t *testing.T) {
	dir := t.TempDir()
	themePath := filepath.Join(dir, "theme.js")
	if err := os.WriteFile(themePath, []byte(`export const color = "red";`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	sourceID := filepath.Join(dir, "app.js")
	derivative := `
		import { color } from "./theme";
		export const __severed_css_0 = "color: " + color + ";";
	`

	resolve := func(id, importer string) (string, bool, error) {
		if id == "./theme" {
			return themePath, true, nil
		}
		return "", false, nil
	}

	res, err := Bundle(Options{
		SourceID:   sourceID,
		Derivative: derivative,
		Resolve:    resolve,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res, "red") {
		t.Fatalf("expected resolved module's content inlined into bundle, got:\n%s", res)
	}
}

// TestBundleMarksHostResolvedCSSExternal confirms a host-resolved CSS
// sibling import is left external (not read, not inlined) rather than
// routed through the virtual-entry loader.
func TestBundleMarksHostResolvedCSSExternal(t *testing.T) {
	sourceID := "app.js"
	derivative := `
		import "./theme.css";
		export const __severed_css_0 = "color: red;";
	`

	resolve := func(id, importer string) (string, bool, error) {
		if id == "./theme.css" {
			return "/virtual/theme.css", true, nil
		}
		return "", false, nil
	}

	res, err := Bundle(Options{
		SourceID:   sourceID,
		Derivative: derivative,
		Resolve:    resolve,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == "" {
		t.Fatal("expected non-empty bundled output")
	}
}
