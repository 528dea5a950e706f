package admission

import (
	"testing"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
	"github.com/stretchr/testify/require"
)

// stubSets is a minimal sets.Engine that maps every item to bin id%numBins,
// exercising only the FindSetNums method admission relies on.
type stubSets struct {
	numBins uint64
}

func (s *stubSets) Insert(items []candidate.Candidate) []candidate.Candidate { return nil }
func (s *stubSets) InsertSet(uint64, []candidate.Candidate) []candidate.Candidate {
	return nil
}
func (s *stubSets) Find(candidate.Candidate) bool { return false }
func (s *stubSets) FindSetNums(item candidate.Candidate) map[uint64]struct{} {
	return map[uint64]struct{}{uint64(item.ID) % s.numBins: {}}
}
func (s *stubSets) RatioCapacityUsed() float64      { return 0 }
func (s *stubSets) CalcWriteAmp() float64           { return 0 }
func (s *stubSets) RatioEvictedToCapacity() float64 { return 0 }
func (s *stubSets) FlushStats()                     {}
func (s *stubSets) CalcMemoryConsumption() uint64   { return 0 }
func (s *stubSets) TrackHit(candidate.Candidate) bool {
	return false
}
func (s *stubSets) EnableDistTracking()            {}
func (s *stubSets) EnableHitDistributionOverSets() {}

type stubLog struct {
	readmitted []candidate.Candidate
}

func (l *stubLog) Insert(items []candidate.Candidate) []candidate.Candidate { return nil }
func (l *stubLog) InsertFromSets(candidate.Candidate)                       {}
func (l *stubLog) Find(candidate.Candidate) bool                            { return false }
func (l *stubLog) Readmit(items []candidate.Candidate) {
	l.readmitted = append(l.readmitted, items...)
}
func (l *stubLog) RatioCapacityUsed() float64      { return 0 }
func (l *stubLog) CalcWriteAmp() float64           { return 0 }
func (l *stubLog) RatioEvictedToCapacity() float64 { return 0 }
func (l *stubLog) FlushStats()                     {}

func newBag() *stats.Bag {
	return stats.NewCollector(nil).Bag("admission")
}

func TestRandomAdmitAllWhenRatioIsOne(t *testing.T) {
	r := NewRandom(1.0, 1, &stubSets{numBins: 4}, nil, newBag())
	items := []candidate.Candidate{candidate.New(1, 10, 0), candidate.New(2, 10, 0)}
	grouped := r.Admit(items)

	var total int
	for _, bin := range grouped {
		total += len(bin)
	}
	require.Equal(t, 2, total)
}

func TestRandomAdmitNoneWhenRatioIsZero(t *testing.T) {
	log := &stubLog{}
	r := NewRandom(0.0, 1, &stubSets{numBins: 4}, log, newBag())
	items := []candidate.Candidate{candidate.New(1, 10, 0), candidate.New(2, 10, 0)}
	grouped := r.Admit(items)

	for _, bin := range grouped {
		require.Empty(t, bin)
	}
	require.Len(t, log.readmitted, 2, "everything rejected should be handed to the log for readmission")
}

func TestRandomAdmitSimpleIsReproducibleWithSameSeed(t *testing.T) {
	items := []candidate.Candidate{
		candidate.New(1, 10, 0), candidate.New(2, 10, 0), candidate.New(3, 10, 0),
		candidate.New(4, 10, 0), candidate.New(5, 10, 0),
	}
	a := NewRandom(0.5, 42, nil, nil, newBag())
	b := NewRandom(0.5, 42, nil, nil, newBag())

	require.Equal(t, a.AdmitSimple(items), b.AdmitSimple(items))
}

func TestRandomAdmitIsReproducibleWithSameSeed(t *testing.T) {
	items := []candidate.Candidate{
		candidate.New(1, 10, 0), candidate.New(2, 10, 0), candidate.New(3, 10, 0),
		candidate.New(4, 10, 0), candidate.New(5, 10, 0), candidate.New(6, 10, 0),
	}
	a := NewRandom(0.5, 42, &stubSets{numBins: 4}, nil, newBag())
	b := NewRandom(0.5, 42, &stubSets{numBins: 4}, nil, newBag())

	require.Equal(t, a.Admit(items), b.Admit(items),
		"set visitation order must be fixed, not map iteration order, for the rng draws to line up")
}

func TestThresholdRejectsBinsBelowThreshold(t *testing.T) {
	log := &stubLog{}
	th := NewThreshold(2, &stubSets{numBins: 2}, log, newBag())

	items := []candidate.Candidate{
		candidate.New(2, 10, 0), candidate.New(4, 10, 0), // bin 0, count 2
		candidate.New(1, 10, 0), // bin 1, count 1
	}
	grouped := th.Admit(items)

	require.Contains(t, grouped, uint64(0))
	require.NotContains(t, grouped, uint64(1))
	require.Len(t, log.readmitted, 1)
}

func TestThresholdAdmitSimplePanics(t *testing.T) {
	th := NewThreshold(2, &stubSets{numBins: 2}, nil, newBag())
	require.Panics(t, func() {
		th.AdmitSimple([]candidate.Candidate{candidate.New(1, 10, 0)})
	})
}

func TestThresholdConstructorRejectsLowThreshold(t *testing.T) {
	require.Panics(t, func() {
		NewThreshold(1, &stubSets{numBins: 2}, nil, newBag())
	})
}

func TestByteRatioAdmitted(t *testing.T) {
	r := NewRandom(1.0, 1, &stubSets{numBins: 1}, nil, newBag())
	r.Admit([]candidate.Candidate{candidate.New(1, 10, 0), candidate.New(2, 30, 0)})
	require.Equal(t, 1.0, r.ByteRatioAdmitted())
}
