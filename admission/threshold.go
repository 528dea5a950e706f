package admission

import (
	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/logtier"
	"github.com/dgraph-io/kangaroosim/sets"
	"github.com/dgraph-io/kangaroosim/stats"
)

// Threshold admits an entire destination bin only if at least threshold
// candidates are bound for it in the same batch, rejecting the whole bin
// otherwise. It has no meaningful per-item behavior, so AdmitSimple panics
// if called. Grounded on the reference implementation's Threshold.
type Threshold struct {
	base
	threshold int
}

// NewThreshold builds a Threshold admission filter. threshold must be > 1.
func NewThreshold(threshold int, setsEngine sets.Engine, log logtier.Engine, statsBag *stats.Bag) *Threshold {
	if threshold <= 1 {
		panic("admission: Threshold requires threshold > 1")
	}
	t := &Threshold{
		base:      base{stats: statsBag, sets: setsEngine, log: log},
		threshold: threshold,
	}
	t.stats.Set("thresholdValue", int64(threshold))
	return t
}

func (t *Threshold) Admit(items []candidate.Candidate) map[uint64][]candidate.Candidate {
	grouped := t.groupBasic(items)
	var evicted []candidate.Candidate
	for setNum, bin := range grouped {
		t.trackPossibleAdmits(bin)
		if len(bin) < t.threshold {
			evicted = append(evicted, bin...)
			delete(grouped, setNum)
		} else {
			t.trackAdmitted(bin)
		}
	}
	t.performReadmission(evicted)
	return grouped
}

// AdmitSimple panics: a group-size admission decision is meaningless
// without destination sets to group by, mirroring the reference
// implementation's assert(false) in this position.
func (t *Threshold) AdmitSimple(items []candidate.Candidate) []candidate.Candidate {
	panic("admission: Threshold admission filter needs sets")
}
