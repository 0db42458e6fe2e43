package locus

import (
	"reflect"
	"sync"
)

// instanceEntry is a ServiceInstance: either a realized value or a
// pending asynchronous construction of one. Entries are owned
// exclusively by the cache that created them and are indexed under the
// closed concrete type and every defining type of their descriptor.
type instanceEntry struct {
	keys []reflect.Type

	realized bool
	value    any

	pending *future
}

// instanceCache is the global Singleton cache. Pending entries are
// stored before construction completes so that re-entrant requests made
// during construction observe the same in-flight instance instead of
// triggering a second construction.
type instanceCache struct {
	mu      sync.Mutex
	entries map[reflect.Type]*instanceEntry
}

func newInstanceCache() *instanceCache {
	return &instanceCache{entries: make(map[reflect.Type]*instanceEntry)}
}

// get returns the entry cached under t.
func (c *instanceCache) get(t reflect.Type) (*instanceEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[t]
	return e, ok
}

// snapshot reads the entry's state under the cache lock. Entry fields
// must not be read directly while a construction may be realizing the
// entry concurrently.
func (c *instanceCache) snapshot(entry *instanceEntry) (value any, pending *future, realized bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return entry.value, entry.pending, entry.realized
}

// storePending caches a pending construction under every key, unless
// one of the keys is already claimed; in that case the existing entry is
// returned and created is false. This check-and-store under one lock is
// what guarantees at-most-once construction per closed type.
func (c *instanceCache) storePending(keys []reflect.Type, fut *future) (entry *instanceEntry, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if existing, ok := c.entries[k]; ok {
			return existing, false
		}
	}

	entry = &instanceEntry{keys: keys, pending: fut}
	for _, k := range keys {
		c.entries[k] = entry
	}

	return entry, true
}

// storeValue caches an already realized value under every key, with the
// same single-claim semantics as storePending.
func (c *instanceCache) storeValue(keys []reflect.Type, value any) (entry *instanceEntry, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if existing, ok := c.entries[k]; ok {
			return existing, false
		}
	}

	entry = &instanceEntry{keys: keys, realized: true, value: value}
	for _, k := range keys {
		c.entries[k] = entry
	}

	return entry, true
}

// realize flips a pending entry to its realized value.
func (c *instanceCache) realize(entry *instanceEntry, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.realized = true
	entry.value = value
	entry.pending = nil
}

// remove evicts the entry from every key it was stored under. Used when
// a cached-in-flight construction fails: no partially constructed
// instance may remain observable.
func (c *instanceCache) remove(entry *instanceEntry) {
	if entry == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range entry.keys {
		if c.entries[k] == entry {
			delete(c.entries, k)
		}
	}
}

// len returns the number of distinct cached entries.
func (c *instanceCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[*instanceEntry]struct{})
	for _, e := range c.entries {
		seen[e] = struct{}{}
	}
	return len(seen)
}

// clear drops every entry.
func (c *instanceCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[reflect.Type]*instanceEntry)
}
