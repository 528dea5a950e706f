// Package logtier implements the flash log tier: an append-mostly region
// that amortizes flash writes by accepting batches of candidates and
// evicting in bulk, rather than maintaining per-item placement like the
// set-associative tier. Two eviction strategies are provided, grounded on
// the reference implementation's log.cpp (monolithic) and
// rotating_log.cpp (block-rotating).
package logtier

import "github.com/dgraph-io/kangaroosim/candidate"

// Engine is the flash log tier, grounded on the reference implementation's
// LogAbstract.
type Engine interface {
	// Insert places items into the log and returns anything evicted to
	// make room, amortizing the flash write cost across the whole batch.
	Insert(items []candidate.Candidate) []candidate.Candidate

	// InsertFromSets accepts an item the set-associative tier is handing
	// back (e.g. because it earned a hit there), bypassing the normal
	// batch-eviction path: full logs simply reject the item instead of
	// forcing an eviction.
	InsertFromSets(item candidate.Candidate)

	// Find reports whether item is currently resident.
	Find(item candidate.Candidate) bool

	// Readmit is called once per batch of items the orchestrator evicted
	// before they reached the set-associative tier, giving the log a
	// chance to keep around ones that earned enough hits.
	Readmit(items []candidate.Candidate)

	// RatioCapacityUsed reports the fraction of total byte capacity
	// currently occupied.
	RatioCapacityUsed() float64

	// RatioEvictedToCapacity reports bytes evicted since the last
	// FlushStats, as a fraction of total capacity. Used by the orchestrator
	// to detect the end of the warmup period in topologies where the log is
	// the outermost flash tier.
	RatioEvictedToCapacity() float64

	// CalcWriteAmp reports bytes actually written to this tier divided by
	// bytes the orchestrator requested be stored, since the last
	// FlushStats.
	CalcWriteAmp() float64

	// FlushStats resets the interval counters CalcWriteAmp derives from,
	// without altering engine state.
	FlushStats()
}

// SetLocator is the narrow slice of the set-associative tier's API the
// rotating log needs: where an item would land if moved to sets, and
// whether a hit there should be credited instead of treated as a miss. Any
// sets.Engine implementation satisfies this automatically.
type SetLocator interface {
	FindSetNums(item candidate.Candidate) map[uint64]struct{}
	TrackHit(item candidate.Candidate) bool
}

// anySetNum returns the lowest set number item hashes to, so the set an item
// is indexed under on insert is the same one looked up when it is evicted.
func anySetNum(locator SetLocator, item candidate.Candidate) uint64 {
	first := true
	var lowest uint64
	for setNum := range locator.FindSetNums(item) {
		if first || setNum < lowest {
			lowest, first = setNum, false
		}
	}
	if first {
		panic("logtier: FindSetNums returned no candidates")
	}
	return lowest
}
