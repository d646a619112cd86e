// Package registry tracks the last-served code and cache-bust timestamp for
// every module URL. Entries are bookkeeping snapshots: responses are always
// freshly transpiled, so a stale entry is harmless and no cross-request
// locking is needed beyond the map's own mutex.
package registry

import (
	"sync"
	"time"
)

// ModuleRecord is the last-served snapshot for one module URL.
type ModuleRecord struct {
	URL       string
	Code      string
	Timestamp int64
}

// ModuleRegistry is an in-memory map from server-relative URL to module
// record. It is owned by a single server instance; multiple instances can
// coexist in one process.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]ModuleRecord
	lastTS  map[string]int64
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules: make(map[string]ModuleRecord),
		lastTS:  make(map[string]int64),
	}
}

// NextTimestamp returns a cache-bust token for url. Tokens are wall-clock
// milliseconds, bumped past the previous token for the same URL so two rapid
// edits never reuse a value. The high-water mark survives invalidation.
func (r *ModuleRegistry) NextTimestamp(url string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := time.Now().UnixMilli()
	if last := r.lastTS[url]; ts <= last {
		ts = last + 1
	}
	r.lastTS[url] = ts
	return ts
}

// Store records the code served for url at the given timestamp, overwriting
// any previous record. Concurrent writers race benignly: identical input
// yields identical output, so last-write-wins.
func (r *ModuleRegistry) Store(url string, code string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[url] = ModuleRecord{URL: url, Code: code, Timestamp: timestamp}
}

// Get returns the record for url, if one exists.
func (r *ModuleRegistry) Get(url string) (ModuleRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.modules[url]
	return record, ok
}

// Invalidate removes the record for url. Removing an absent entry is a
// no-op, so repeated change events for the same path are idempotent.
func (r *ModuleRegistry) Invalidate(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, url)
}

// Count returns the number of live records.
func (r *ModuleRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
