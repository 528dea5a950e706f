// Package stats implements the keyed counter bags every cache component
// owns, and the collector that periodically serializes them to JSON.
//
// The simulator is single-threaded (spec §5): a Bag is not safe for
// concurrent use, the same way the teacher's LocalStatsCollector assumes a
// single caller per local collector.
package stats

import (
	"encoding/json"
	"io"
)

// Bag is a mapping from string name to a signed 64-bit counter, with
// default-zero read-or-create semantics: reading a name that was never set
// returns 0 without panicking, matching std::unordered_map<string,
// int64_t>::operator[] in the reference implementation.
type Bag struct {
	counters map[string]int64
}

func newBag() *Bag {
	return &Bag{counters: make(map[string]int64)}
}

// Get returns the current value of name, defaulting to 0.
func (b *Bag) Get(name string) int64 {
	return b.counters[name]
}

// Set assigns name to value.
func (b *Bag) Set(name string, value int64) {
	b.counters[name] = value
}

// Add increments name by delta and returns the new value.
func (b *Bag) Add(name string, delta int64) int64 {
	b.counters[name] += delta
	return b.counters[name]
}

// Inc increments name by one.
func (b *Bag) Inc(name string) {
	b.counters[name]++
}

// Reset clears the named counters, leaving every other counter as it is;
// used at warmup and at statistics flush boundaries.
func (b *Bag) Reset(names ...string) {
	for _, n := range names {
		delete(b.counters, n)
	}
}

// ResetAll clears every counter the bag has ever seen.
func (b *Bag) ResetAll() {
	b.counters = make(map[string]int64)
}

// Snapshot returns a copy of the bag's counters, used by the collector when
// serializing. The copy means the caller can keep writing after a flush
// started without racing the encoder.
func (b *Bag) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(b.counters))
	for k, v := range b.counters {
		out[k] = v
	}
	return out
}

// Collector owns every named Bag in the simulation and serializes them as
// one pretty-printed (multi-line) JSON object per flush, to a single output
// stream — the Go analogue of the reference's StatsCollector writing to an
// ofstream.
type Collector struct {
	w     io.Writer
	order []string
	bags  map[string]*Bag
	enc   *json.Encoder
}

// NewCollector wraps w; every Flush appends one pretty-printed JSON object
// followed by a newline, matching StatsCollector::print's
// blob.dump(PRETTY_JSON_SPACES) plus a trailing std::endl.
func NewCollector(w io.Writer) *Collector {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return &Collector{w: w, bags: make(map[string]*Bag), enc: enc}
}

// Bag returns the named bag, creating it (and recording its creation order)
// on first use. Unlike the reference, iteration order at flush time is
// always sorted by name regardless of creation order, so test goldens are
// stable (see spec's design notes on deterministic stats serialization).
func (c *Collector) Bag(name string) *Bag {
	if b, ok := c.bags[name]; ok {
		return b
	}
	b := newBag()
	c.bags[name] = b
	c.order = append(c.order, name)
	return b
}

// Flush writes every bag's current snapshot as a single JSON object keyed
// by bag name, with keys serialized in sorted order (encoding/json already
// sorts map[string]T keys, so no explicit sort is needed here).
func (c *Collector) Flush() error {
	blob := make(map[string]map[string]int64, len(c.bags))
	for name, bag := range c.bags {
		blob[name] = bag.Snapshot()
	}
	return c.enc.Encode(blob)
}
