package filebuffer

import "testing"

func TestSetThenGet(t *testing.T) {
	b := New()
	b.Set("app.js", []string{".a { color: red }", ".b { color: blue }"})

	got, ok := b.Get("app.js")
	if !ok {
		t.Fatal("expected hit")
	}
	want := ".a { color: red }\n\n\n.b { color: blue }"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSetOverwritesPreviousEntry(t *testing.T) {
	b := New()
	b.Set("app.js", []string{"one"})
	b.Set("app.js", []string{"two"})

	got, ok := b.Get("app.js")
	if !ok || got != "two" {
		t.Fatalf("got (%q, %v), want (%q, true)", got, ok, "two")
	}
}

func TestResetClearsEntry(t *testing.T) {
	b := New()
	b.Set("app.js", []string{"one"})
	b.Reset("app.js")

	if _, ok := b.Get("app.js"); ok {
		t.Fatal("expected miss after reset")
	}
}

func TestGetMissingIDIsMiss(t *testing.T) {
	b := New()
	if _, ok := b.Get("missing.js"); ok {
		t.Fatal("expected miss for unknown id")
	}
}
