package bundler

import (
	"sync"

	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// bundleCache memoizes built bundles by content hash, the same
// mutex-guarded map-of-entries shape as memory.Cache, specialized to
// in-memory-only storage since a Bundle holds live Go closures that can't
// round-trip through a Store.
type bundleCache struct {
	mu      sync.RWMutex
	entries map[string]sandbox.Bundle
}

func newBundleCache() *bundleCache {
	return &bundleCache{entries: make(map[string]sandbox.Bundle)}
}

func (c *bundleCache) get(hash string) (sandbox.Bundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.entries[hash]
	return b, ok
}

func (c *bundleCache) put(hash string, bundle sandbox.Bundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = bundle
}
