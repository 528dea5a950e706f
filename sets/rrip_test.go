package sets

import (
	"testing"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/stretchr/testify/require"
)

func TestRRIPSetsEvictsMostDistantItemFirst(t *testing.T) {
	r := NewRRIPSets(1, 100, newTestBag(), nil, 1, 2, false, false)
	require.Equal(t, 3, r.maxRRPV) // 2^2 - 1

	r.Insert([]candidate.Candidate{
		candidate.New(1, 40, 0),
		candidate.New(2, 40, 0),
	})
	evicted := r.Insert([]candidate.Candidate{candidate.New(3, 40, 0)})
	require.Len(t, evicted, 1)
	require.Equal(t, int64(1), evicted[0].ID, "items inserted earlier age toward max RRPV and are evicted first")
}

func TestRRIPSetsHitDecrementsRRPVByOne(t *testing.T) {
	r := NewRRIPSets(1, 100, newTestBag(), nil, 1, 2, false, false)
	r.Insert([]candidate.Candidate{candidate.New(1, 10, 0)})
	require.True(t, r.Find(candidate.New(1, 0, 0)))

	bin := &r.bins[0]
	_, atOne := bin.rrpvToItems[1]
	require.True(t, atOne, "a hit on a freshly inserted item (rrpv=maxRRPV-1) should move it to rrpv-1")
}

func TestRRIPSetsPromotionOnlyResetsToZeroOnHit(t *testing.T) {
	r := NewRRIPSets(1, 100, newTestBag(), nil, 1, 2, true, false)
	r.Insert([]candidate.Candidate{candidate.New(1, 10, 0)})
	require.True(t, r.Find(candidate.New(1, 0, 0)))

	bin := &r.bins[0]
	items, ok := bin.rrpvToItems[0]
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Equal(t, int64(1), items[0].ID)
}

func TestRRIPSetsFindReportsMiss(t *testing.T) {
	r := NewRRIPSets(1, 100, newTestBag(), nil, 1, 2, false, false)
	require.False(t, r.Find(candidate.New(99, 0, 0)))
}
