package memcache

import (
	"testing"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
	"github.com/stretchr/testify/require"
)

func newBag() *stats.Bag {
	return stats.NewCollector(nil).Bag("mem")
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	l := NewLRU(100, newBag())
	l.Insert(candidate.New(1, 40, 0))
	l.Insert(candidate.New(2, 40, 0))
	require.True(t, l.Find(candidate.New(1, 0, 0))) // 1 is now most-recently-used

	evicted := l.Insert(candidate.New(3, 40, 0))
	require.Len(t, evicted, 1)
	require.Equal(t, int64(2), evicted[0].ID, "item 2 is least recently used and must be evicted")

	require.True(t, l.Find(candidate.New(1, 0, 0)))
	require.False(t, l.Find(candidate.New(2, 0, 0)))
}

func TestLRUOversizeItemEvictsImmediately(t *testing.T) {
	l := NewLRU(50, newBag())
	evicted := l.Insert(candidate.New(1, 100, 0))
	require.Len(t, evicted, 1)
	require.Equal(t, int64(1), evicted[0].ID)
	require.False(t, l.Find(candidate.New(1, 0, 0)))
}

func TestLRUFindMissOnEmptyCache(t *testing.T) {
	l := NewLRU(100, newBag())
	require.False(t, l.Find(candidate.New(1, 0, 0)))
}
