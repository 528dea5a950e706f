package sets

import (
	"math"
	"strconv"

	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
)

const (
	rripLongDiff    = 1
	rripDistantDiff = 1
	avgObjSizeBytes = 330.0
)

type rripBin struct {
	rrpvToItems map[int][]candidate.Candidate
	binSize     int64
}

func (b *rripBin) maxRRPV() (int, bool) {
	first := true
	var max int
	for k := range b.rrpvToItems {
		if first || k > max {
			max = k
			first = false
		}
	}
	return max, !first
}

// RRIPSets is a set-associative tier using re-reference interval prediction
// (RRIP): each bin buckets its items by a predicted re-reference distance
// instead of pure insertion order, aging distances up on every touch and
// evicting the most "distant" item first. Grounded on the reference
// implementation's RripSets (rrip_sets.hpp/rrip_sets.cpp).
type RRIPSets struct {
	stats *stats.Bag
	bins  []rripBin

	setCapacity      int64
	numSets          uint64
	totalSize        int64
	totalCapacity    int64
	numHashFunctions int
	bits             int
	maxRRPV          int
	mixed            bool
	promotionOnly    bool
	distTracking     bool
	hitDist          bool

	readmitToLogFromSets func(candidate.Candidate)
}

// NewRRIPSets builds an RRIPSets tier. bits controls the RRPV range
// (maxRRPV = 2^bits - rripDistantDiff). promotionOnly and mixed both reset
// an item's RRPV to 0 on every hit instead of decrementing it by one;
// promotionOnly additionally inserts items that already carry a hit at
// RRPV 0 (see insert).
func NewRRIPSets(numSets uint64, setCapacity int64, statsBag *stats.Bag, readmitToLogFromSets func(candidate.Candidate), numHashFunctions, bits int, promotionOnly, mixed bool) *RRIPSets {
	r := &RRIPSets{
		stats:                statsBag,
		bins:                 make([]rripBin, numSets),
		setCapacity:          setCapacity,
		numSets:              numSets,
		totalCapacity:        setCapacity * int64(numSets),
		numHashFunctions:     numHashFunctions,
		bits:                 bits,
		maxRRPV:              int(math.Exp2(float64(bits))) - rripDistantDiff,
		mixed:                mixed,
		promotionOnly:        promotionOnly,
		readmitToLogFromSets: readmitToLogFromSets,
	}
	for i := range r.bins {
		r.bins[i].rrpvToItems = make(map[int][]candidate.Candidate)
	}
	r.stats.Set("numSets", int64(numSets))
	r.stats.Set("setCapacity", setCapacity)
	r.stats.Set("numHashFunctions", int64(numHashFunctions))
	r.stats.Set("rripBits", int64(bits))
	return r
}

func (r *RRIPSets) FindSetNums(item candidate.Candidate) map[uint64]struct{} {
	return findSetNums(item.ID, r.numSets, r.numHashFunctions)
}

// incrementRRPVValues ages every item in the bin toward maxRRPV by the same
// amount, preserving relative order, so the least-recently-reset item stays
// the most eligible for eviction.
func (r *RRIPSets) incrementRRPVValues(binNum uint64) {
	bin := &r.bins[binNum]
	currentMax, ok := bin.maxRRPV()
	if !ok {
		return
	}
	diff := r.maxRRPV - currentMax
	if diff <= 0 {
		return
	}
	shifted := make(map[int][]candidate.Candidate, len(bin.rrpvToItems))
	for k, v := range bin.rrpvToItems {
		shifted[k+diff] = v
	}
	bin.rrpvToItems = shifted
}

// calcAllowableSize sums the size of every item whose RRPV is at least
// insertionPoint, i.e. every item at least as eligible for eviction as a
// freshly-inserted item would be.
func (r *RRIPSets) calcAllowableSize(bin *rripBin, insertionPoint int) int64 {
	var total int64
	for rrpv, items := range bin.rrpvToItems {
		if rrpv < insertionPoint {
			continue
		}
		for _, it := range items {
			total += it.Size
		}
	}
	return total
}

func (r *RRIPSets) insert(item candidate.Candidate, binNum uint64) []candidate.Candidate {
	bin := &r.bins[binNum]
	var evicted []candidate.Candidate

	insertVal := r.maxRRPV - rripLongDiff - int(item.HitCount)
	if insertVal < 0 {
		insertVal = 0
	} else if r.promotionOnly && item.HitCount != 0 {
		insertVal = 0
	}

	if r.calcAllowableSize(bin, insertVal) < item.Size && item.Size+bin.binSize > r.setCapacity {
		r.stats.Inc("numEvictions")
		r.stats.Add("sizeEvictions", item.Size)
		r.stats.Inc("numEvictionsImmediate")
		r.stats.Add("sizeEvictionsImmediate", item.Size)
		if item.HitCount != 0 && r.readmitToLogFromSets != nil {
			r.readmitToLogFromSets(item)
		} else {
			evicted = append(evicted, item)
		}
		return evicted
	}

	for item.Size+bin.binSize > r.setCapacity {
		rrpv, ok := bin.maxRRPV()
		if !ok || len(bin.rrpvToItems[rrpv]) == 0 {
			panic("rrip sets: eviction loop found no items to evict")
		}
		old := bin.rrpvToItems[rrpv][0]
		r.stats.Inc("numEvictions")
		r.stats.Add("sizeEvictions", old.Size)
		bin.binSize -= old.Size
		r.totalSize -= old.Size
		evicted = append(evicted, old)
		bin.rrpvToItems[rrpv] = bin.rrpvToItems[rrpv][1:]
		if len(bin.rrpvToItems[rrpv]) == 0 {
			delete(bin.rrpvToItems, rrpv)
		}
	}

	item.HitCount = 0
	bin.rrpvToItems[insertVal] = append(bin.rrpvToItems[insertVal], item)
	bin.binSize += item.Size
	r.totalSize += item.Size
	r.stats.Set("current_size", r.totalSize)
	return evicted
}

func (r *RRIPSets) Insert(items []candidate.Candidate) []candidate.Candidate {
	touched := make(map[uint64]bool)
	var evicted []candidate.Candidate
	for _, item := range items {
		binNum := anyKey(r.FindSetNums(item))
		if !touched[binNum] {
			r.incrementRRPVValues(binNum)
			touched[binNum] = true
		}
		evicted = append(evicted, r.insert(item, binNum)...)
		r.trackRequestedStore(item)
	}
	r.updateActualStore(len(touched))
	return evicted
}

func (r *RRIPSets) InsertSet(setNum uint64, items []candidate.Candidate) []candidate.Candidate {
	var evicted []candidate.Candidate
	r.incrementRRPVValues(setNum)
	for _, item := range items {
		evicted = append(evicted, r.insert(item, setNum)...)
		r.trackRequestedStore(item)
	}
	if len(items) > 0 {
		r.updateActualStore(1)
	}
	return evicted
}

func (r *RRIPSets) updateActualStore(numSetsTouched int) {
	r.stats.Add("bytes_written", int64(numSetsTouched)*r.setCapacity)
}

func (r *RRIPSets) trackRequestedStore(item candidate.Candidate) {
	r.stats.Inc("stores_requested")
	r.stats.Add("stores_requested_bytes", item.Size)
}

// promote moves a hit item one step closer to 0 (or straight to 0 under
// promotion/mixed semantics), the shared logic behind Find and TrackHit.
func (r *RRIPSets) promote(binNum uint64, rrpv int, idx int) {
	bin := &r.bins[binNum]
	item := bin.rrpvToItems[rrpv][idx]
	if rrpv == 0 {
		return
	}
	target := rrpv - 1
	if r.mixed || r.promotionOnly {
		target = 0
	}
	bin.rrpvToItems[target] = append(bin.rrpvToItems[target], item)
	bin.rrpvToItems[rrpv] = append(bin.rrpvToItems[rrpv][:idx:idx], bin.rrpvToItems[rrpv][idx+1:]...)
	if len(bin.rrpvToItems[rrpv]) == 0 {
		delete(bin.rrpvToItems, rrpv)
	}
}

func (r *RRIPSets) Find(item candidate.Candidate) bool {
	for binNum := range r.FindSetNums(item) {
		bin := &r.bins[binNum]
		for rrpv, items := range bin.rrpvToItems {
			for i, stored := range items {
				if stored.Equal(item) {
					r.promote(binNum, rrpv, i)
					r.stats.Inc("hits")
					if r.hitDist {
						r.stats.Inc("setHits" + strconv.FormatUint(binNum, 10))
					}
					return true
				}
			}
		}
		if r.hitDist {
			r.stats.Inc("setMisses" + strconv.FormatUint(binNum, 10))
		}
	}
	r.stats.Inc("misses")
	return false
}

func (r *RRIPSets) TrackHit(item candidate.Candidate) bool {
	for binNum := range r.FindSetNums(item) {
		bin := &r.bins[binNum]
		for rrpv, items := range bin.rrpvToItems {
			for i, stored := range items {
				if stored.Equal(item) {
					r.promote(binNum, rrpv, i)
					r.stats.Inc("hitsSharedWithLog")
					return true
				}
			}
		}
	}
	r.stats.Inc("trackHitsFailed")
	return false
}

func (r *RRIPSets) RatioCapacityUsed() float64 {
	return float64(r.totalSize) / float64(r.totalCapacity)
}

func (r *RRIPSets) CalcWriteAmp() float64 {
	return float64(r.stats.Get("bytes_written")) / float64(r.stats.Get("stores_requested_bytes"))
}

func (r *RRIPSets) RatioEvictedToCapacity() float64 {
	return float64(r.stats.Get("sizeEvictions")) / float64(r.totalCapacity)
}

func (r *RRIPSets) FlushStats() {
	r.stats.Reset("misses", "hits", "bytes_written", "stores_requested", "stores_requested_bytes",
		"sizeEvictions", "numEvictions", "hitsSharedWithLog", "trackHitsFailed", "numHitItemsEvicted")
}

func (r *RRIPSets) CalcMemoryConsumption() uint64 {
	bitsPerSet := float64(r.bits) * (float64(r.setCapacity) / avgObjSizeBytes)
	bits := uint64(bitsPerSet) * r.numSets
	return bits / 8
}

func (r *RRIPSets) EnableDistTracking() {
	r.distTracking = true
}

func (r *RRIPSets) EnableHitDistributionOverSets() {
	r.hitDist = true
}
