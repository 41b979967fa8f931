// Package cache memoizes sub-bundler runs. Shaped after
// evanw-esbuild/internal/cache/cache_ast.go ("this cache intends to avoid
// unnecessarily re-parsing files in subsequent builds... if the contents of
// the file are the same... parsing can be avoided"), but backed by
// hashicorp/golang-lru/v2 instead of a hand-rolled map plus mutex, so the
// cache is bounded rather than growing for the life of a long-running host
// process.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of distinct derivative programs kept bundled in
// memory at once. Derivative programs are small (one file's worth of
// tree-shaken source), so this is generous without being unbounded.
const DefaultSize = 256

// BundleCache maps a hash of a source id and its derivative program to its already
// tree-shaken, bundled script text, so re-transforming an unchanged file
// (a common case under watch mode) skips the sub-bundler entirely.
type BundleCache struct {
	lru *lru.Cache[string, string]
}

func NewBundleCache(size int) (*BundleCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &BundleCache{lru: l}, nil
}

// Key hashes its input to a cache key. The coordinator passes the source id
// together with the derivative program's text, because a bundle's imports
// resolve from the source id's directory: the same derivative text under
// two different source ids may bundle differently.
func Key(derivativeText string) string {
	sum := sha256.Sum256([]byte(derivativeText))
	return hex.EncodeToString(sum[:])
}

func (c *BundleCache) Get(key string) (string, bool) {
	return c.lru.Get(key)
}

func (c *BundleCache) Put(key, bundledScript string) {
	c.lru.Add(key, bundledScript)
}
