package admission

import (
	"sort"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/logtier"
	"github.com/dgraph-io/kangaroosim/sets"
	"github.com/dgraph-io/kangaroosim/stats"
)

// maxUint64 is the full uint64 range, used to scale a [0,1] admit ratio
// into a threshold comparable against the PRNG's raw output.
const maxUint64 = ^uint64(0)

// Random admits each candidate independently with fixed probability
// admitRatio, regardless of which bin it would land in. Grounded on the
// reference implementation's RandomAdmission.
type Random struct {
	base
	admitRatio float64
	threshold  uint64
	rng        *lcg
}

// NewRandom builds a Random admission filter. admitRatio must be in
// [0,1]. seed makes the accept/reject sequence reproducible across runs.
func NewRandom(admitRatio float64, seed uint64, setsEngine sets.Engine, log logtier.Engine, statsBag *stats.Bag) *Random {
	// float64(maxUint64) rounds up to 2^64, which does not fit in a uint64,
	// so a ratio of 1 is mapped to the full range directly.
	threshold := maxUint64
	if admitRatio < 1 {
		threshold = uint64(admitRatio * float64(maxUint64))
	}
	return &Random{
		base:       base{stats: statsBag, sets: setsEngine, log: log},
		admitRatio: admitRatio,
		threshold:  threshold,
		rng:        newLCG(seed),
	}
}

func (r *Random) Admit(items []candidate.Candidate) map[uint64][]candidate.Candidate {
	grouped := r.groupBasic(items)

	// Map iteration order is randomized per range, not just per process, so
	// visiting grouped directly would consume r.rng's sequential draws in a
	// different order every call, breaking seed reproducibility. Visit set
	// numbers in a fixed, sorted order instead.
	setNums := make([]uint64, 0, len(grouped))
	for setNum := range grouped {
		setNums = append(setNums, setNum)
	}
	sort.Slice(setNums, func(i, j int) bool { return setNums[i] < setNums[j] })

	var evicted []candidate.Candidate
	for _, setNum := range setNums {
		bin := grouped[setNum]
		r.trackPossibleAdmits(bin)
		kept := bin[:0]
		for _, item := range bin {
			if r.rng.next() > r.threshold {
				evicted = append(evicted, item)
			} else {
				kept = append(kept, item)
			}
		}
		grouped[setNum] = kept
		r.trackAdmitted(kept)
	}
	r.performReadmission(evicted)
	return grouped
}

func (r *Random) AdmitSimple(items []candidate.Candidate) []candidate.Candidate {
	r.trackPossibleAdmits(items)
	var admitted []candidate.Candidate
	for _, item := range items {
		if r.rng.next() <= r.threshold {
			admitted = append(admitted, item)
		}
	}
	r.trackAdmitted(admitted)
	return admitted
}
