// Package sets implements the flash tier's set-associative region: a fixed
// number of fixed-capacity bins addressed by a hash of the object id, each
// evicting independently of the others. Two placement/eviction strategies
// are provided, grounded on the reference implementation's sets.cpp
// (FIFO with hit-triggered promotion) and rrip_sets.cpp (RRIP).
package sets

import "github.com/dgraph-io/kangaroosim/candidate"

// Engine is the set-associative flash tier, grounded on the reference
// implementation's SetsAbstract.
type Engine interface {
	// Insert places items into the tier, letting each item map to whatever
	// set it hashes to, and returns anything evicted to make room.
	Insert(items []candidate.Candidate) []candidate.Candidate

	// InsertSet places items into a specific, already-resolved set number.
	// Every item must actually hash to setNum; callers that got setNum from
	// FindSetNums satisfy this by construction.
	InsertSet(setNum uint64, items []candidate.Candidate) []candidate.Candidate

	// Find reports whether item is currently resident.
	Find(item candidate.Candidate) bool

	// FindSetNums returns every set number item could be placed in: up to
	// numHashFunctions+1 of them, so possibly two even with a single hash
	// function.
	FindSetNums(item candidate.Candidate) map[uint64]struct{}

	// RatioCapacityUsed reports the fraction of total byte capacity
	// currently occupied, across all sets.
	RatioCapacityUsed() float64

	// CalcWriteAmp reports bytes actually written to this tier divided by
	// bytes the orchestrator requested be stored, since the last FlushStats.
	CalcWriteAmp() float64

	// RatioEvictedToCapacity reports bytes evicted since the last
	// FlushStats, as a fraction of total capacity.
	RatioEvictedToCapacity() float64

	// FlushStats resets the interval counters CalcWriteAmp and
	// RatioEvictedToCapacity derive from, without altering engine state.
	FlushStats()

	// CalcMemoryConsumption estimates the DRAM bytes needed to index this
	// tier's current contents.
	CalcMemoryConsumption() uint64

	// TrackHit records a hit that occurred elsewhere (e.g. a log tier
	// deduplicating against an item also resident here) for NRU/RRIP
	// bookkeeping, and reports whether item is actually resident.
	TrackHit(item candidate.Candidate) bool

	// EnableDistTracking turns on resident-size-distribution accounting.
	EnableDistTracking()

	// EnableHitDistributionOverSets turns on per-set hit-count accounting.
	EnableHitDistributionOverSets()
}
