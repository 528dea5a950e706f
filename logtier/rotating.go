package logtier

import (
	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
)

// evictSetLimit bounds how many bytes of early set-co-eviction work
// addSetMatches does for each set an evicted item maps to; high enough that
// it essentially never binds, matching the reference's EVICT_SET_LIMIT.
const evictSetLimit = 16000

type block struct {
	items    map[int64]candidate.Candidate
	capacity int64
	size     int64
}

func (b *block) insert(item candidate.Candidate) {
	b.items[item.ID] = item
	b.size += item.Size
}

// Rotating is a log that partitions its capacity into fixed-size blocks
// arranged in a circle; overflowing the active block advances a pointer to
// the next block and evicts that block's entire contents in one shot,
// instead of flushing the whole log at once. When given a SetLocator it
// also cross-indexes items by the set they'd land in, so that when a block
// rotation evicts an item, other log residents bound for the same set are
// co-evicted early with it and one set write absorbs them all. Grounded on
// the reference
// implementation's RotatingLog (rotating_log.hpp/rotating_log.cpp).
type Rotating struct {
	stats *stats.Bag
	sets  SetLocator

	blocks      []block
	itemActive  map[int64]bool
	perItemHits map[int64]int64
	setToItems  map[uint64][]candidate.Candidate

	totalCapacity int64
	totalSize     int64
	activeBlock   uint64
	numBlocks     uint64
	readmit       int64
}

// NewRotating builds a Rotating log of the given total capacity, divided
// into blocks of blockSize bytes (the last block may be smaller). sets may
// be nil, in which case Insert performs no cross-set co-eviction
// bookkeeping; InsertFromSets and Readmit always look up the item's set and
// so need a non-nil sets.
func NewRotating(capacity, blockSize int64, sets SetLocator, statsBag *stats.Bag, readmit int64) *Rotating {
	r := &Rotating{
		stats:         statsBag,
		sets:          sets,
		itemActive:    make(map[int64]bool),
		perItemHits:   make(map[int64]int64),
		setToItems:    make(map[uint64][]candidate.Candidate),
		totalCapacity: capacity,
		readmit:       readmit,
	}
	numBlocks := uint64(capacity / blockSize)
	r.blocks = make([]block, numBlocks)
	for i := range r.blocks {
		r.blocks[i] = block{items: make(map[int64]candidate.Candidate), capacity: blockSize}
	}
	if capacity%blockSize != 0 {
		numBlocks++
		r.blocks = append(r.blocks, block{items: make(map[int64]candidate.Candidate), capacity: capacity % blockSize})
	}
	r.numBlocks = numBlocks
	r.stats.Set("logCapacity", capacity)
	return r
}

func (r *Rotating) insertOne(item candidate.Candidate) {
	r.stats.Add("bytes_written", item.Size)
	r.stats.Inc("stores_requested")
	r.stats.Add("stores_requested_bytes", item.Size)
	r.totalSize += item.Size
	item.HitCount = 0
	r.blocks[r.activeBlock].insert(item)
	r.perItemHits[item.ID] = 0
	if r.sets != nil {
		setNum := anySetNum(r.sets, item)
		r.setToItems[setNum] = append(r.setToItems[setNum], item)
	}
	r.itemActive[item.ID] = true
}

// incrementBlockAndFlush advances the active block pointer and evicts the
// block now being reused, returning only the items that weren't already
// marked inactive (i.e. not already known to live in the sets tier).
func (r *Rotating) incrementBlockAndFlush() []candidate.Candidate {
	var evicted []candidate.Candidate
	r.activeBlock = (r.activeBlock + 1) % r.numBlocks
	cur := &r.blocks[r.activeBlock]
	if cur.size > 0 {
		for id, item := range cur.items {
			if r.itemActive[id] {
				evicted = append(evicted, item)
			}
			delete(r.itemActive, id)
		}
		r.stats.Add("numEvictions", int64(len(cur.items)))
		r.stats.Add("sizeEvictions", cur.size)
		r.stats.Inc("numLogFlushes")
		r.totalSize -= cur.size
		cur.items = make(map[int64]candidate.Candidate)
		cur.size = 0
	}
	return evicted
}

// addSetMatches folds in items previously cross-indexed as resident in the
// same sets bin as something now being force-evicted: those items are
// surfaced for eviction early too (once more than evictSetLimit bytes have
// been moved for one set, its remaining still-active items stay put),
// rather than waiting for their own block to rotate around.
func (r *Rotating) addSetMatches(evicted []candidate.Candidate) []candidate.Candidate {
	if r.sets == nil {
		return evicted
	}
	var ret []candidate.Candidate
	for _, item := range evicted {
		setNum := anySetNum(r.sets, item)
		matches := r.setToItems[setNum]
		if len(matches) == 0 {
			continue
		}
		var notMoved []candidate.Candidate
		var sizeMoved int64
		for _, m := range matches {
			_, stillActive := r.itemActive[m.ID]
			alreadyEvicted := !stillActive
			if !alreadyEvicted && sizeMoved > evictSetLimit {
				notMoved = append(notMoved, m)
				continue
			}
			m.HitCount = r.perItemHits[m.ID]
			sizeMoved += m.Size
			ret = append(ret, m)
			if !alreadyEvicted {
				r.stats.Inc("num_early_evict")
				r.stats.Add("size_early_evict", m.Size)
				r.itemActive[m.ID] = false
			}
		}
		r.setToItems[setNum] = notMoved
	}
	return ret
}

func (r *Rotating) Insert(items []candidate.Candidate) []candidate.Candidate {
	var evicted []candidate.Candidate
	for _, item := range items {
		cur := &r.blocks[r.activeBlock]
		if item.Size+cur.size > cur.capacity {
			evicted = append(evicted, r.incrementBlockAndFlush()...)
		}
		r.insertOne(item)
	}
	evicted = r.addSetMatches(evicted)
	r.stats.Set("current_size", r.totalSize)
	return evicted
}

func (r *Rotating) InsertFromSets(item candidate.Candidate) {
	setNum := anySetNum(r.sets, item)
	if _, ok := r.itemActive[item.ID]; ok {
		r.stats.Add("num_early_evict", -1)
		r.stats.Add("size_early_evict", -item.Size)
		r.itemActive[item.ID] = true
		r.setToItems[setNum] = append(r.setToItems[setNum], item)
		return
	}
	cur := &r.blocks[r.activeBlock]
	if item.Size+cur.size > cur.capacity {
		r.stats.Add("bytes_rejected_from_sets", item.Size)
		r.stats.Inc("num_rejected_from_sets")
		return
	}
	r.stats.Add("bytes_readmitted", item.Size)
	r.stats.Inc("num_readmitted")
	r.stats.Add("bytes_written", item.Size)
	r.totalSize += item.Size
	cur.insert(item)
	r.itemActive[item.ID] = true
	r.setToItems[setNum] = append(r.setToItems[setNum], item)
	r.perItemHits[item.ID] = 0
}

func (r *Rotating) Readmit(items []candidate.Candidate) {
	for _, item := range items {
		setNum := anySetNum(r.sets, item)
		_, stillActive := r.itemActive[item.ID]
		switch {
		case stillActive:
			r.stats.Add("num_early_evict", -1)
			r.stats.Add("size_early_evict", -item.Size)
			r.itemActive[item.ID] = true
			r.setToItems[setNum] = append(r.setToItems[setNum], item)
		case r.readmit != 0 && r.perItemHits[item.ID] > r.readmit:
			cur := &r.blocks[r.activeBlock]
			if item.Size+cur.size > cur.capacity {
				r.stats.Inc("readmit_evicted")
				r.stats.Add("readmit_evicted_size", item.Size)
				delete(r.perItemHits, item.ID)
				continue
			}
			r.stats.Add("bytes_readmitted", item.Size)
			r.stats.Inc("num_readmitted")
			r.stats.Add("bytes_written", item.Size)
			r.setToItems[setNum] = append(r.setToItems[setNum], item)
			r.totalSize += item.Size
			cur.insert(item)
			r.perItemHits[item.ID] = 0
			r.itemActive[item.ID] = true
		}
		delete(r.perItemHits, item.ID)
	}
	r.stats.Set("current_size", r.totalSize)
}

func (r *Rotating) Find(item candidate.Candidate) bool {
	active, ok := r.itemActive[item.ID]
	if !ok {
		r.stats.Inc("misses")
		return false
	}
	if !active {
		r.stats.Inc("hits")
		found := r.sets.TrackHit(item)
		if !found {
			r.itemActive[item.ID] = true
		}
		return true
	}
	r.stats.Inc("hits")
	r.perItemHits[item.ID]++
	return true
}

func (r *Rotating) RatioCapacityUsed() float64 {
	return float64(r.totalSize) / float64(r.totalCapacity)
}

func (r *Rotating) CalcWriteAmp() float64 {
	return float64(r.stats.Get("bytes_written")) / float64(r.stats.Get("stores_requested_bytes"))
}

func (r *Rotating) RatioEvictedToCapacity() float64 {
	return float64(r.stats.Get("sizeEvictions")) / float64(r.totalCapacity)
}

func (r *Rotating) FlushStats() {
	r.stats.Reset("bytes_written", "stores_requested", "stores_requested_bytes",
		"numEvictions", "sizeEvictions", "numLogFlushes", "misses", "hits",
		"num_early_evict", "size_early_evict", "bytes_rejected_from_sets", "num_rejected_from_sets")
}
