package memcache

import (
	"container/list"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
)

// LRU is a fixed-capacity, strict least-recently-used DRAM cache. An item
// larger than the entire cache is evicted immediately rather than ever
// being admitted. Grounded on the reference implementation's LRU
// (lru.hpp), with container/list replacing its hand-rolled intrusive
// doubly-linked list (no third-party linked-list package fits this better
// than the standard library's).
type LRU struct {
	stats *stats.Bag

	order   *list.List
	entries map[int64]*list.Element

	maxSize     int64
	currentSize int64
}

// NewLRU builds an LRU cache of maxSize bytes.
func NewLRU(maxSize int64, statsBag *stats.Bag) *LRU {
	l := &LRU{
		stats:   statsBag,
		order:   list.New(),
		entries: make(map[int64]*list.Element),
		maxSize: maxSize,
	}
	l.stats.Set("lruCacheCapacity", maxSize)
	return l
}

func (l *LRU) touch(item candidate.Candidate) {
	if elem, ok := l.entries[item.ID]; ok {
		elem.Value = item
		l.order.MoveToFront(elem)
		return
	}
	l.entries[item.ID] = l.order.PushFront(item)
}

func (l *LRU) evictOne() candidate.Candidate {
	back := l.order.Back()
	victim := back.Value.(candidate.Candidate)
	l.order.Remove(back)
	delete(l.entries, victim.ID)
	l.currentSize -= victim.Size
	return victim
}

func (l *LRU) Insert(id candidate.Candidate) []candidate.Candidate {
	if id.Size > l.maxSize {
		l.stats.Inc("numEvictions")
		l.stats.Add("sizeEvictions", id.Size)
		return []candidate.Candidate{id}
	}

	var evicted []candidate.Candidate
	for l.currentSize+id.Size > l.maxSize {
		victim := l.evictOne()
		l.stats.Inc("numEvictions")
		l.stats.Add("sizeEvictions", victim.Size)
		evicted = append(evicted, victim)
	}
	l.touch(id)
	l.currentSize += id.Size
	l.stats.Set("current_size", l.currentSize)
	return evicted
}

func (l *LRU) Find(id candidate.Candidate) bool {
	elem, ok := l.entries[id.ID]
	if !ok {
		l.stats.Inc("misses")
		return false
	}
	l.touch(elem.Value.(candidate.Candidate))
	l.stats.Inc("hits")
	return true
}

func (l *LRU) FlushStats() {
	l.stats.Reset("hits", "misses", "numEvictions", "sizeEvictions")
}
