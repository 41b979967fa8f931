// Package filebuffer holds the single process-wide "source id -> CSS text"
// mapping described in spec.md §3 ("Per-file CSS buffer") and §5 ("exactly
// one process-wide mapping"). It is overwritten, never appended to, on each
// re-transform of a given id.
package filebuffer

import (
	"strings"
	"sync"
)

// separator joins fragments within one file's buffer (spec.md §6: "fragments
// are concatenated with two blank-line separators").
const separator = "\n\n\n"

type Buffer struct {
	mu   sync.Mutex
	data map[string]string
}

func New() *Buffer {
	return &Buffer{data: make(map[string]string)}
}

// Reset clears id's entry. Spec.md §5: "the transform for id I first
// removes entry I, then (on success) writes entry I with the file's
// accumulated CSS" — calling Reset before extraction begins and Set only on
// success means a failed transform leaves no stale entry behind.
func (b *Buffer) Reset(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, id)
}

// Set overwrites id's entry with the concatenation of fragments, in the
// order they were emitted.
func (b *Buffer) Set(id string, fragments []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[id] = strings.Join(fragments, separator)
}

// Get reads id's entry. The pull-mode host adapter's load hook calls this
// after stripping any query suffix from the requested id (spec.md §5).
func (b *Buffer) Get(id string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	css, ok := b.data[id]
	return css, ok
}
