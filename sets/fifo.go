package sets

import (
	"strconv"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
)

const hitBitVectorSize = 32

type fifoBin struct {
	items         []candidate.Candidate
	binSize       int64
	noHitInsertAt int
}

// FIFOSets is a set-associative tier where each bin is a FIFO with a
// hit-triggered promotion zone: an item that takes a hit moves to the back
// of the bin, past a moving "no_hit_insert_loc" cursor, and is evicted only
// after every never-hit item ahead of it has gone. Grounded on the
// reference implementation's Sets (sets.hpp/sets.cpp).
type FIFOSets struct {
	stats *stats.Bag
	bins  []fifoBin
	// hitsInSets is the optional NRU bit vector per bin, set when nru is
	// enabled: before each set is touched by a fresh Insert batch it gets
	// reordered so recently-hit items move behind never-hit ones.
	hitsInSets [][]bool

	setCapacity      int64
	numSets          uint64
	totalSize        int64
	totalCapacity    int64
	numHashFunctions int
	nru              bool
	distTracking     bool
	hitDist          bool

	// readmitToLogFromSets is invoked instead of a plain eviction when an
	// item that already earned a hit reaches the front of its bin. Nil in
	// topologies with no log tier behind the sets tier — such evictions
	// fall through to a plain eviction in that case, the same as the
	// reference's ref_cache == nullptr branch.
	readmitToLogFromSets func(candidate.Candidate)
}

// NewFIFOSets builds a FIFOSets tier of numSets bins of setCapacity bytes
// each. readmitToLogFromSets may be nil. statsBag records the
// configuration values the reference records at construction time.
func NewFIFOSets(numSets uint64, setCapacity int64, statsBag *stats.Bag, readmitToLogFromSets func(candidate.Candidate), numHashFunctions int, nru bool) *FIFOSets {
	s := &FIFOSets{
		stats:                statsBag,
		bins:                 make([]fifoBin, numSets),
		setCapacity:          setCapacity,
		numSets:              numSets,
		totalCapacity:        setCapacity * int64(numSets),
		numHashFunctions:     numHashFunctions,
		nru:                  nru,
		readmitToLogFromSets: readmitToLogFromSets,
	}
	s.stats.Set("numSets", int64(numSets))
	s.stats.Set("setCapacity", setCapacity)
	s.stats.Set("numHashFunctions", int64(numHashFunctions))
	if nru {
		s.hitsInSets = make([][]bool, numSets)
		for i := range s.hitsInSets {
			s.hitsInSets[i] = make([]bool, hitBitVectorSize)
		}
	}
	return s
}

func (s *FIFOSets) FindSetNums(item candidate.Candidate) map[uint64]struct{} {
	return findSetNums(item.ID, s.numSets, s.numHashFunctions)
}

// reorderNRU moves every item the NRU bit vector marked as hit behind the
// items that weren't, clearing the bit vector, and returns the count of
// never-hit items — the new no_hit_insert_loc.
func (s *FIFOSets) reorderNRU(binNum uint64) int {
	bin := &s.bins[binNum]
	setHits := s.hitsInSets[binNum]
	var noHit, hit []candidate.Candidate
	var sizeHits int64
	for i, it := range bin.items {
		if i >= hitBitVectorSize || !setHits[i] {
			noHit = append(noHit, it)
		} else {
			if s.distTracking {
				sizeHits += it.Size
			}
			hit = append(hit, it)
		}
	}
	for i := range setHits {
		setHits[i] = false
	}
	bin.items = append(noHit, hit...)
	if s.distTracking {
		bucketed := (sizeHits / 10) * 10
		s.stats.Inc("numItemsWithHits" + strconv.Itoa(len(hit)))
		s.stats.Inc("sizeItemsWithHits" + strconv.FormatInt(bucketed, 10))
	}
	return len(noHit)
}

func (s *FIFOSets) insert(item candidate.Candidate, binNum uint64) []candidate.Candidate {
	bin := &s.bins[binNum]
	var evicted []candidate.Candidate

	for item.Size+bin.binSize > s.setCapacity {
		if bin.noHitInsertAt == 0 && item.HitCount == 0 {
			s.stats.Inc("numEvictions")
			s.stats.Add("sizeEvictions", item.Size)
			s.stats.Inc("numEvictionsImmediate")
			s.stats.Add("sizeEvictionsImmediate", item.Size)
			return append(evicted, item)
		}
		old := bin.items[0]
		s.stats.Inc("numEvictions")
		s.stats.Add("sizeEvictions", old.Size)
		bin.binSize -= old.Size
		s.totalSize -= old.Size
		if bin.noHitInsertAt > 0 {
			bin.noHitInsertAt--
			evicted = append(evicted, old)
		} else {
			s.stats.Inc("numHitItemsEvicted")
			s.stats.Add("sizeHitItemsEvicted", old.Size)
			if s.readmitToLogFromSets != nil {
				s.readmitToLogFromSets(old)
			} else {
				evicted = append(evicted, old)
			}
		}
		bin.items = bin.items[1:]
	}

	if item.HitCount > 0 {
		item.HitCount = 0
		bin.items = append(bin.items, item)
	} else {
		bin.items = append(bin.items[:bin.noHitInsertAt:bin.noHitInsertAt],
			append([]candidate.Candidate{item}, bin.items[bin.noHitInsertAt:]...)...)
		bin.noHitInsertAt++
	}
	bin.binSize += item.Size
	s.totalSize += item.Size
	s.stats.Set("current_size", s.totalSize)
	return evicted
}

func (s *FIFOSets) Insert(items []candidate.Candidate) []candidate.Candidate {
	touched := make(map[uint64]bool)
	var evicted []candidate.Candidate
	for _, item := range items {
		binNum := anyKey(s.FindSetNums(item))
		if !touched[binNum] {
			if s.nru {
				s.bins[binNum].noHitInsertAt = s.reorderNRU(binNum)
			} else {
				s.bins[binNum].noHitInsertAt = len(s.bins[binNum].items)
			}
			touched[binNum] = true
		}
		evicted = append(evicted, s.insert(item, binNum)...)
		s.trackRequestedStore(item)
	}
	s.updateActualStore(len(touched))
	return evicted
}

func (s *FIFOSets) InsertSet(setNum uint64, items []candidate.Candidate) []candidate.Candidate {
	var evicted []candidate.Candidate
	bin := &s.bins[setNum]
	if s.nru {
		bin.noHitInsertAt = s.reorderNRU(setNum)
	} else {
		bin.noHitInsertAt = len(bin.items)
	}
	for _, item := range items {
		evicted = append(evicted, s.insert(item, setNum)...)
		s.trackRequestedStore(item)
	}
	if len(items) > 0 {
		s.updateActualStore(1)
	}
	return evicted
}

func (s *FIFOSets) updateActualStore(numSetsTouched int) {
	s.stats.Add("bytes_written", int64(numSetsTouched)*s.setCapacity)
}

func (s *FIFOSets) trackRequestedStore(item candidate.Candidate) {
	s.stats.Inc("stores_requested")
	s.stats.Add("stores_requested_bytes", item.Size)
}

func (s *FIFOSets) Find(item candidate.Candidate) bool {
	for binNum := range s.FindSetNums(item) {
		for i, stored := range s.bins[binNum].items {
			if stored.Equal(item) {
				if s.nru && i < hitBitVectorSize {
					s.hitsInSets[binNum][i] = true
				}
				if s.hitDist {
					s.stats.Inc("set" + strconv.FormatUint(binNum, 10))
				}
				s.stats.Inc("hits")
				return true
			}
		}
		if s.hitDist {
			s.stats.Inc("setMisses" + strconv.FormatUint(binNum, 10))
		}
	}
	s.stats.Inc("misses")
	return false
}

func (s *FIFOSets) TrackHit(item candidate.Candidate) bool {
	for binNum := range s.FindSetNums(item) {
		for i, stored := range s.bins[binNum].items {
			if stored.Equal(item) {
				if s.nru && i < hitBitVectorSize {
					s.hitsInSets[binNum][i] = true
				}
				s.stats.Inc("hitsSharedWithLog")
				return true
			}
		}
	}
	s.stats.Inc("trackHitsFailed")
	return false
}

func (s *FIFOSets) RatioCapacityUsed() float64 {
	return float64(s.totalSize) / float64(s.totalCapacity)
}

func (s *FIFOSets) CalcWriteAmp() float64 {
	return float64(s.stats.Get("bytes_written")) / float64(s.stats.Get("stores_requested_bytes"))
}

func (s *FIFOSets) RatioEvictedToCapacity() float64 {
	return float64(s.stats.Get("sizeEvictions")) / float64(s.totalCapacity)
}

func (s *FIFOSets) FlushStats() {
	s.stats.Reset("misses", "hits", "bytes_written", "stores_requested", "stores_requested_bytes",
		"sizeEvictions", "numEvictions", "hitsSharedWithLog", "trackHitsFailed", "numHitItemsEvicted")
}

func (s *FIFOSets) CalcMemoryConsumption() uint64 {
	if !s.nru {
		return 0
	}
	bytesPerSet := uint64(hitBitVectorSize / 8)
	return bytesPerSet * s.numSets
}

func (s *FIFOSets) EnableDistTracking() {
	s.distTracking = true
}

func (s *FIFOSets) EnableHitDistributionOverSets() {
	s.hitDist = true
}
