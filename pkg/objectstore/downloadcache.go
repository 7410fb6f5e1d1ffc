package objectstore

import "sync"

// cachedObject is one entry in the download proxy's in-process cache: the
// origin response body plus the headers worth replaying on a hit.
type cachedObject struct {
	body        []byte
	contentType string
}

// downloadCache is a single-writer, many-reader in-process cache keyed by
// origin+path (no query string), per spec.md §4.3. It is an explicit struct
// rather than a package-level map so it can be constructed per-test and
// injected, per spec.md §9's guidance against module-level globals.
type downloadCache struct {
	mu      sync.RWMutex
	entries map[string]cachedObject
}

func newDownloadCache() *downloadCache {
	return &downloadCache{entries: make(map[string]cachedObject)}
}

func (c *downloadCache) get(key string) (cachedObject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.entries[key]
	return obj, ok
}

func (c *downloadCache) put(key string, obj cachedObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = obj
}
