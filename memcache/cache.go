// Package memcache implements the DRAM front tier: a small, fast cache
// that every request passes through before falling through to flash.
// Grounded on the reference implementation's mem_cache.hpp/lru.hpp.
package memcache

import "github.com/dgraph-io/kangaroosim/candidate"

// Cache is the DRAM tier, grounded on the reference implementation's
// MemCache.
type Cache interface {
	// Insert places id into the cache, evicting whatever is necessary to
	// make room (including, if id itself is larger than the cache, id
	// itself).
	Insert(id candidate.Candidate) []candidate.Candidate

	// Find reports whether id is resident, promoting it on a hit.
	Find(id candidate.Candidate) bool

	// FlushStats resets the interval hit/miss/eviction counters.
	FlushStats()
}
