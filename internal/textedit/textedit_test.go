package textedit

import "testing"

func TestApplyReplacesRanges(t *testing.T) {
	var log Log
	source := "const x = css`color: red`;"
	log.Replace(10, 25, `"severed-abc1234"`)

	got, err := log.Apply(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `const x = "severed-abc1234";`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInsertBeforeDoesNotConsumeOriginal(t *testing.T) {
	var log Log
	source := "body"
	log.InsertBefore(0, "/* pure */ ")

	got, err := log.Apply(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/* pure */ body" {
		t.Fatalf("got %q", got)
	}
}

func TestMultipleInsertsAtSamePositionPreserveOrder(t *testing.T) {
	var log Log
	log.InsertBefore(0, "a")
	log.InsertBefore(0, "b")

	got, err := log.Apply("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abx" {
		t.Fatalf("got %q, want %q", got, "abx")
	}
}

func TestApplyDetectsOverlap(t *testing.T) {
	var log Log
	log.Replace(0, 5, "aaa")
	log.Replace(3, 8, "bbb")

	if _, err := log.Apply("0123456789"); err == nil {
		t.Fatal("expected overlap error, got nil")
	}
}

func TestApplyWithMapTracksLineAdvance(t *testing.T) {
	var log Log
	source := "line one\ncss`x`\nline three"
	log.Replace(9, 15, `"c"`)

	text, m, err := log.ApplyWithMap("file.js", source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "line one\n\"c\"\nline three"
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
	if m.Sources[0] != "file.js" {
		t.Fatalf("unexpected source id: %v", m.Sources)
	}
	if m.Mappings == "" {
		t.Fatal("expected non-empty mappings")
	}
}

func TestApplyWithMapRejectsOverlap(t *testing.T) {
	var log Log
	log.Replace(0, 5, "x")
	log.Replace(2, 3, "y")

	if _, _, err := log.ApplyWithMap("f.js", "0123456789"); err == nil {
		t.Fatal("expected overlap error, got nil")
	}
}
