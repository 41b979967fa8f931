package devserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/calebeby/severed/internal/cache"
	"github.com/calebeby/severed/internal/coordinator"
	"github.com/calebeby/severed/internal/cssfrag"
	"github.com/calebeby/severed/internal/filebuffer"
	"github.com/calebeby/severed/internal/hostplugin"
)

func newTestAdapter(t *testing.T) *hostplugin.Adapter {
	t.Helper()
	bundleCache, err := cache.NewBundleCache(8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := &coordinator.Coordinator{
		Fragments: cssfrag.NewRegistry(),
		Buffer:    filebuffer.New(),
		Cache:     bundleCache,
		Post:      cssfrag.Passthrough,
	}
	return &hostplugin.Adapter{Coordinator: c, Buffer: c.Buffer, Mode: hostplugin.PullMode}
}

// TestHandlerTransformsSourceAndServesVirtualCSS drives Handler end to end
// over httptest: a request for the script path returns the rewritten JS
// with the import pointed at a pull-mode virtual id, and a follow-up
// request for that id returns the buffered CSS.
func TestHandlerTransformsSourceAndServesVirtualCSS(t *testing.T) {
	adapter := newTestAdapter(t)
	srv := New(adapter)

	source := "const c = css`color: red;`;\n"
	readSource := func(path string) (string, error) {
		if path != "app.js" {
			t.Fatalf("unexpected read for %q", path)
		}
		return source, nil
	}

	ts := httptest.NewServer(srv.Handler(readSource))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, text)
	}
	if !strings.Contains(text, "?severed=") {
		t.Fatalf("expected rewritten import to reference a pull-mode virtual id, got:\n%s", text)
	}

	i := strings.Index(text, `import "`)
	if i < 0 {
		t.Fatalf("expected an import statement, got:\n%s", text)
	}
	rest := text[i+len(`import "`):]
	virtualID := rest[:strings.Index(rest, `"`)]

	cssResp, err := http.Get(ts.URL + "/" + virtualID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cssResp.Body.Close()
	cssBody, _ := io.ReadAll(cssResp.Body)
	if !strings.Contains(string(cssBody), "color: red;") {
		t.Fatalf("expected served css to contain declaration, got:\n%s", cssBody)
	}
}

// TestHandlerMissingSourceReturnsNotFound confirms a readSource failure
// (no such file) surfaces as 404 rather than a 500 or virtual-css hit.
func TestHandlerMissingSourceReturnsNotFound(t *testing.T) {
	adapter := newTestAdapter(t)
	srv := New(adapter)

	readSource := func(path string) (string, error) {
		return "", os.ErrNotExist
	}

	ts := httptest.NewServer(srv.Handler(readSource))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/missing.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// TestNotifyChangedWithNoClientsDoesNotPanic confirms broadcasting to an
// empty client set is a no-op, the common case right after startup.
func TestNotifyChangedWithNoClientsDoesNotPanic(t *testing.T) {
	adapter := newTestAdapter(t)
	srv := New(adapter)
	srv.NotifyChanged("app.js")
}
