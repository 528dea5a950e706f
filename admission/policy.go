// Package admission implements the filters that decide whether an item
// evicted from one tier is allowed to flow into the next. Grounded on the
// reference implementation's admission/ directory (admission.hpp/.cpp,
// random_admission.hpp, threshold.hpp).
package admission

import (
	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/logtier"
	"github.com/dgraph-io/kangaroosim/sets"
	"github.com/dgraph-io/kangaroosim/stats"
)

// Policy decides which candidates flowing out of one tier are admitted
// into the next, grounded on the reference implementation's
// admission::Policy.
type Policy interface {
	// Admit groups items by destination set and drops those the policy
	// rejects, readmitting dropped items to the log tier (if one is
	// configured) before returning. Requires a sets.Engine to have been
	// supplied at construction time.
	Admit(items []candidate.Candidate) map[uint64][]candidate.Candidate

	// AdmitSimple applies the policy without any notion of destination
	// sets, used ahead of the log tier in topologies with no
	// set-associative region. Policies that fundamentally need set
	// grouping (Threshold) panic if called this way, mirroring the
	// reference's assert(false) in that position.
	AdmitSimple(items []candidate.Candidate) []candidate.Candidate

	// ByteRatioAdmitted reports bytes admitted divided by bytes considered
	// for admission, for write-amplification accounting.
	ByteRatioAdmitted() float64
}

// base carries the bookkeeping and helpers shared by every admission
// policy.
type base struct {
	stats *stats.Bag
	sets  sets.Engine
	log   logtier.Engine
}

// groupBasic buckets items by the lowest-numbered set each hashes to
// (FindSetNums returns an unordered set, so the order of the hash rounds is
// not used), which keeps the grouping the same from call to call. Panics
// if no sets.Engine was supplied, the same "give more helpful error than a
// segfault" intent as the reference's assert(_sets).
func (b *base) groupBasic(items []candidate.Candidate) map[uint64][]candidate.Candidate {
	if b.sets == nil {
		panic("admission: groupBasic called without a sets engine")
	}
	grouped := make(map[uint64][]candidate.Candidate)
	for _, item := range items {
		setNum := anyKey(b.sets.FindSetNums(item))
		grouped[setNum] = append(grouped[setNum], item)
	}
	return grouped
}

func (b *base) trackPossibleAdmits(items []candidate.Candidate) {
	b.stats.Inc("trackPossibleAdmitsCalls")
	for _, item := range items {
		b.stats.Inc("numPossibleAdmits")
		b.stats.Add("sizePossibleAdmits", item.Size)
	}
}

func (b *base) trackAdmitted(items []candidate.Candidate) {
	b.stats.Inc("trackAdmittedCalls")
	for _, item := range items {
		b.stats.Inc("numAdmits")
		b.stats.Add("sizeAdmits", item.Size)
	}
}

func (b *base) ByteRatioAdmitted() float64 {
	return float64(b.stats.Get("sizeAdmits")) / float64(b.stats.Get("sizePossibleAdmits"))
}

// performReadmission hands evicted items to the log tier's readmission
// path. A nil log (no log tier configured) means readmission is simply not
// possible, not an error.
func (b *base) performReadmission(evicted []candidate.Candidate) {
	if b.log == nil {
		return
	}
	b.log.Readmit(evicted)
}

// anyKey returns the lowest key of m.
func anyKey(m map[uint64]struct{}) uint64 {
	first := true
	var lowest uint64
	for k := range m {
		if first || k < lowest {
			lowest, first = k, false
		}
	}
	if first {
		panic("admission: findSetNums returned no candidates")
	}
	return lowest
}
