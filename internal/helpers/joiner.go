// Package helpers holds small string-building utilities shared across
// severed's pipeline stages, adapted from evanw-esbuild's internal/helpers
// Joiner: an append-only buffer that tracks its own total length so the
// final copy can be allocated exactly once.
package helpers

import "strings"

type Joiner struct {
	parts  []string
	length int
}

func (j *Joiner) AddString(s string) {
	if s == "" {
		return
	}
	j.parts = append(j.parts, s)
	j.length += len(s)
}

func (j *Joiner) Len() int {
	return j.length
}

func (j *Joiner) String() string {
	var b strings.Builder
	b.Grow(j.length)
	for _, p := range j.parts {
		b.WriteString(p)
	}
	return b.String()
}
