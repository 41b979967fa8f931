package hostplugin

import "testing"

func TestFlattenReplacesNonAlphanumericRuns(t *testing.T) {
	got := flatten("src/components/Button.tsx")
	want := "src-components-Button-tsx"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFlattenTrimsLeadingAndTrailingDashes(t *testing.T) {
	got := flatten("/abs/path.ts")
	if got == "" || got[0] == '-' || got[len(got)-1] == '-' {
		t.Fatalf("expected trimmed dashes, got %q", got)
	}
}

func TestPushAssetPathAppendsSuffix(t *testing.T) {
	got := pushAssetPath("src/app.ts")
	want := "src-app-ts.severed.css"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPullVirtualIDIsDeterministicPerCSS(t *testing.T) {
	a := pullVirtualID("src/app.ts", "color: red;")
	b := pullVirtualID("src/app.ts", "color: red;")
	if a != b {
		t.Fatalf("expected deterministic virtual id, got %q and %q", a, b)
	}
	c := pullVirtualID("src/app.ts", "color: blue;")
	if a == c {
		t.Fatal("expected distinct virtual ids for distinct css")
	}
}

func TestStripSeveredQueryRoundTrips(t *testing.T) {
	id := pullVirtualID("src/app.ts", "color: red;")
	sourceID, ok := stripSeveredQuery(id)
	if !ok {
		t.Fatal("expected query to be recognized")
	}
	if sourceID != "src/app.ts" {
		t.Fatalf("got %q", sourceID)
	}
}

func TestStripSeveredQueryMissesPlainPath(t *testing.T) {
	if _, ok := stripSeveredQuery("src/app.ts"); ok {
		t.Fatal("expected no match for a plain path")
	}
}
