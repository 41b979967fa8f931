// Package sourcemap builds standard version-3 inline source maps. The VLQ
// codec here is a direct, simplified port of the one in
// evanw-esbuild/internal/sourcemap/sourcemap.go: severed's edit log never
// needs to decode existing maps or merge shifted chunks the way the bundler
// does, so only the encoder half survives the port.
package sourcemap

import (
	"encoding/base64"
	"strconv"
	"strings"
)

var vlqAlphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/")

func encodeVLQ(dst []byte, value int) []byte {
	var vlq int
	if value < 0 {
		vlq = ((-value) << 1) | 1
	} else {
		vlq = value << 1
	}
	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq != 0 {
			digit |= 32
		}
		dst = append(dst, vlqAlphabet[digit])
		if vlq == 0 {
			break
		}
	}
	return dst
}

// Mapping is one generated->original position pair, with no name column
// (spec §6: "no names table required").
type Mapping struct {
	GeneratedLine, GeneratedColumn int
	OriginalLine, OriginalColumn  int
}

// Builder accumulates mappings in generated-position order and renders them
// into the "mappings" field of a version-3 source map.
type Builder struct {
	mappings []Mapping
}

func (b *Builder) AddMapping(m Mapping) {
	b.mappings = append(b.mappings, m)
}

// Encode renders the accumulated mappings as the VLQ "mappings" string.
func (b *Builder) Encode() string {
	var out []byte
	prevGenLine := 0
	prevGenCol := 0
	prevSrcLine := 0
	prevSrcCol := 0

	for _, m := range b.mappings {
		for prevGenLine < m.GeneratedLine {
			out = append(out, ';')
			prevGenLine++
			prevGenCol = 0
		}
		if len(out) > 0 && out[len(out)-1] != ';' {
			out = append(out, ',')
		}
		out = encodeVLQ(out, m.GeneratedColumn-prevGenCol)
		out = encodeVLQ(out, 0) // single source
		out = encodeVLQ(out, m.OriginalLine-prevSrcLine)
		out = encodeVLQ(out, m.OriginalColumn-prevSrcCol)
		prevGenCol = m.GeneratedColumn
		prevSrcLine = m.OriginalLine
		prevSrcCol = m.OriginalColumn
	}
	return string(out)
}

// Map describes a generated file and maps back to exactly one original
// file, which is all severed's per-file rewrite ever needs.
type Map struct {
	Version        int      `json:"version"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

func New(sourceID, originalText string, builder *Builder) *Map {
	return &Map{
		Version:        3,
		Sources:        []string{sourceID},
		SourcesContent: []string{originalText},
		Names:          []string{},
		Mappings:       builder.Encode(),
	}
}

// ToJSON renders the map as a compact JSON object without pulling in
// encoding/json, since the shape is fixed and small enough to hand-build
// (avoiding a dependency on field-order-sensitive struct marshaling for
// something this small keeps the output deterministic byte-for-byte).
func (m *Map) ToJSON() string {
	var b strings.Builder
	b.WriteString(`{"version":3,"sources":[`)
	for i, s := range m.Sources {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(s))
	}
	b.WriteString(`],"sourcesContent":[`)
	for i, s := range m.SourcesContent {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(s))
	}
	b.WriteString(`],"names":[],"mappings":`)
	b.WriteString(strconv.Quote(m.Mappings))
	b.WriteByte('}')
	return b.String()
}

// ToInlineComment renders the map as a base64 data-url //# sourceMappingURL
// comment, ready to append to a generated file.
func (m *Map) ToInlineComment() string {
	encoded := base64.StdEncoding.EncodeToString([]byte(m.ToJSON()))
	return "//# sourceMappingURL=data:application/json;base64," + encoded
}
