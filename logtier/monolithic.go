package logtier

import (
	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/stats"
)

// Monolithic is a log that evicts its entire resident set as one batch the
// moment an insert would overflow it. Grounded on the reference
// implementation's Log (log.hpp/log.cpp).
type Monolithic struct {
	stats *stats.Bag

	items       map[int64]candidate.Candidate
	perItemHits map[int64]int64

	totalCapacity int64
	totalSize     int64
	readmit       int64
}

// NewMonolithic builds a Monolithic log of the given byte capacity.
// readmit is the hit-count threshold above which an evicted item is kept
// around instead of dropped (see Readmit); 0 disables readmission.
func NewMonolithic(capacity int64, statsBag *stats.Bag, readmit int64) *Monolithic {
	m := &Monolithic{
		stats:         statsBag,
		items:         make(map[int64]candidate.Candidate),
		perItemHits:   make(map[int64]int64),
		totalCapacity: capacity,
		readmit:       readmit,
	}
	m.stats.Set("logCapacity", capacity)
	return m
}

func (m *Monolithic) insertOne(item candidate.Candidate) {
	m.stats.Add("bytes_written", item.Size)
	m.stats.Inc("stores_requested")
	m.stats.Add("stores_requested_bytes", item.Size)
	m.totalSize += item.Size
	item.HitCount = 0
	m.items[item.ID] = item
	if m.readmit != 0 {
		m.perItemHits[item.ID] = 0
	}
}

func (m *Monolithic) Insert(items []candidate.Candidate) []candidate.Candidate {
	var evicted []candidate.Candidate
	for _, item := range items {
		if item.Size+m.totalSize > m.totalCapacity {
			for _, resident := range m.items {
				evicted = append(evicted, resident)
			}
			m.stats.Add("numEvictions", int64(len(evicted)))
			m.stats.Add("sizeEvictions", m.totalSize)
			m.stats.Inc("numLogFlushes")
			m.items = make(map[int64]candidate.Candidate)
			m.totalSize = 0
		}
		m.insertOne(item)
	}
	m.stats.Set("current_size", m.totalSize)
	return evicted
}

func (m *Monolithic) InsertFromSets(item candidate.Candidate) {
	if item.Size+m.totalSize > m.totalCapacity {
		m.stats.Add("bytes_rejected_from_sets", item.Size)
		m.stats.Inc("num_rejected_from_sets")
		return
	}
	m.stats.Add("bytes_readmitted", item.Size)
	m.stats.Inc("num_readmitted")
	m.stats.Add("bytes_written", item.Size)
	m.totalSize += item.Size
	m.items[item.ID] = item
	m.perItemHits[item.ID] = 0
}

func (m *Monolithic) Readmit(items []candidate.Candidate) {
	if m.readmit == 0 {
		return
	}
	for _, item := range items {
		if m.perItemHits[item.ID] > m.readmit && m.totalSize+item.Size < m.totalCapacity {
			m.stats.Add("bytes_written", item.Size)
			m.stats.Add("bytes_readmitted", item.Size)
			m.stats.Inc("num_readmitted")
			m.totalSize += item.Size
			m.items[item.ID] = item
			m.perItemHits[item.ID] = 0
		} else {
			delete(m.perItemHits, item.ID)
		}
	}
	m.stats.Set("current_size", m.totalSize)
}

func (m *Monolithic) Find(item candidate.Candidate) bool {
	stored, ok := m.items[item.ID]
	if !ok {
		m.stats.Inc("misses")
		return false
	}
	m.stats.Inc("hits")
	stored.HitCount++
	m.items[item.ID] = stored
	if m.readmit != 0 {
		m.perItemHits[item.ID]++
	}
	return true
}

func (m *Monolithic) RatioCapacityUsed() float64 {
	return float64(m.totalSize) / float64(m.totalCapacity)
}

func (m *Monolithic) CalcWriteAmp() float64 {
	return float64(m.stats.Get("bytes_written")) / float64(m.stats.Get("stores_requested_bytes"))
}

func (m *Monolithic) RatioEvictedToCapacity() float64 {
	return float64(m.stats.Get("sizeEvictions")) / float64(m.totalCapacity)
}

func (m *Monolithic) FlushStats() {
	m.stats.Reset("bytes_written", "stores_requested", "stores_requested_bytes",
		"numEvictions", "sizeEvictions", "numLogFlushes", "misses", "hits")
}
