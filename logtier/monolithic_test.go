package logtier

import (
	"testing"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
	"github.com/stretchr/testify/require"
)

func newTestBag() *stats.Bag {
	return stats.NewCollector(nil).Bag("log")
}

func TestMonolithicBatchEvictsEntireResidentSetOnOverflow(t *testing.T) {
	m := NewMonolithic(100, newTestBag(), 0)

	evicted := m.Insert([]candidate.Candidate{
		candidate.New(1, 40, 0),
		candidate.New(2, 40, 0),
	})
	require.Empty(t, evicted)
	require.True(t, m.Find(candidate.New(1, 0, 0)))

	evicted = m.Insert([]candidate.Candidate{candidate.New(3, 30, 0)})
	require.Len(t, evicted, 2, "an overflowing insert must flush every resident item at once")

	require.False(t, m.Find(candidate.New(1, 0, 0)))
	require.True(t, m.Find(candidate.New(3, 0, 0)))
}

func TestMonolithicReadmitKeepsItemsAboveThreshold(t *testing.T) {
	m := NewMonolithic(100, newTestBag(), 2)
	m.Insert([]candidate.Candidate{candidate.New(1, 10, 0), candidate.New(3, 50, 0)})
	for i := 0; i < 3; i++ {
		m.Find(candidate.New(1, 0, 0))
	}

	// 60 resident + 45 overflows, flushing items 1 and 3; item 1 (10 bytes)
	// still fits beside the 45 bytes of item 2 afterwards.
	evicted := m.Insert([]candidate.Candidate{candidate.New(2, 45, 0)})
	require.Len(t, evicted, 2)

	m.Readmit(evicted)
	require.True(t, m.Find(candidate.New(1, 0, 0)), "item with hit count above readmit threshold must be kept")
}

func TestMonolithicReadmitDropsItemsAtOrBelowThreshold(t *testing.T) {
	m := NewMonolithic(100, newTestBag(), 2)
	m.Insert([]candidate.Candidate{candidate.New(1, 10, 0)})
	m.Find(candidate.New(1, 0, 0))

	evicted := m.Insert([]candidate.Candidate{candidate.New(2, 95, 0)})
	m.Readmit(evicted)
	require.False(t, m.Find(candidate.New(1, 0, 0)))
}

func TestMonolithicInsertFromSetsRejectsWhenFull(t *testing.T) {
	m := NewMonolithic(50, newTestBag(), 0)
	m.Insert([]candidate.Candidate{candidate.New(1, 40, 0)})
	m.InsertFromSets(candidate.New(2, 20, 0))
	require.False(t, m.Find(candidate.New(2, 0, 0)))
}
