package cache

import "testing"

func TestKeyIsDeterministicAndContentSensitive(t *testing.T) {
	a := Key("const x = 1;")
	b := Key("const x = 1;")
	if a != b {
		t.Fatalf("expected deterministic key, got %q and %q", a, b)
	}
	c := Key("const x = 2;")
	if a == c {
		t.Fatal("expected distinct keys for distinct content")
	}
}

func TestBundleCacheGetPutRoundTrip(t *testing.T) {
	c, err := NewBundleCache(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := Key("derivative text")
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss before Put")
	}
	c.Put(key, "bundled script")
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got != "bundled script" {
		t.Fatalf("got %q", got)
	}
}

func TestNewBundleCacheDefaultsSize(t *testing.T) {
	c, err := NewBundleCache(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil cache")
	}
}
