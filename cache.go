/*
 * Copyright 2019 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package kangaroosim ties the DRAM, log, and set-associative tiers
// together into one of four cache topologies, and replays a trace against
// whichever topology a Config selects. Grounded on the reference
// implementation's caches/cache.cpp (the shared access() control flow) and
// caches/{mem_only,set_only,mem_log,mem_log_sets}_cache.cpp (the
// topology-specific insert/find/write-amp/warmup logic).
package kangaroosim

import (
	"io"
	"log"
	"math"

	"github.com/dgraph-io/kangaroosim/admission"
	"github.com/dgraph-io/kangaroosim/candidate"
	"github.com/dgraph-io/kangaroosim/config"
	"github.com/dgraph-io/kangaroosim/logtier"
	"github.com/dgraph-io/kangaroosim/memcache"
	"github.com/dgraph-io/kangaroosim/sets"
	"github.com/dgraph-io/kangaroosim/stats"
	"github.com/dgraph-io/kangaroosim/trace"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// checkWarmupInterval is how often, in accesses, the orchestrator checks
// whether the flash tier has cycled through its capacity once and can be
// considered warm. Matches the reference's CHECK_WARMUP_INTERVAL.
const checkWarmupInterval = 1000

// Cache is the orchestrator: it owns the DRAM tier and whichever of the
// flash log/set-associative tiers the configured topology calls for, and
// drives every access through find-then-insert-on-miss in the order the
// topology dictates. Grounded on the reference implementation's Cache base
// class plus its four concrete subclasses, collapsed here into one type
// that branches on topology rather than a parallel class per topology —
// the tiers differ by which fields are nil, not by behavior duplicated
// across four structs.
type Cache struct {
	collector *stats.Collector
	global    *stats.Bag

	topology config.Topology
	mem      memcache.Cache
	log      logtier.Engine
	setsTier sets.Engine

	preLogAdmission admission.Policy
	preSetAdmission admission.Policy

	statsInterval int64
	seenBefore    map[int64]bool
	warmedUp      bool
}

// New builds a Cache from cfg, logging a startup summary of the sizing
// decisions it made (flash/memory split, indexing overhead) via the standard
// logger. Stats are serialized to out.
func New(cfg *config.Config, out io.Writer) (*Cache, error) {
	topology, err := cfg.Topology()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		collector:     stats.NewCollector(out),
		topology:      topology,
		statsInterval: int64(math.Pow(10, float64(cfg.Stats.CollectionIntervalPower))),
		seenBefore:    make(map[int64]bool),
	}
	c.global = c.collector.Bag("global")

	flashSize := int64(cfg.Cache.FlashSizeMB) * 1024 * 1024
	memSize := int64(cfg.Cache.MemorySizeMB) * 1024 * 1024

	switch topology {
	case config.TopologyMemOnly:
		c.mem = memcache.NewLRU(memSize, c.collector.Bag("memCache"))
		// No flash tier to warm up: the DRAM-only ablation is warm from the
		// first access, matching the reference's MemOnlyCache never
		// consulting ratioEvictedToCapacity at all.
		c.warmedUp = true

	case config.TopologyMemSets:
		if err := c.buildMemSets(cfg, flashSize, memSize); err != nil {
			return nil, err
		}

	case config.TopologyMemLog:
		if err := c.buildMemLog(cfg, flashSize, memSize); err != nil {
			return nil, err
		}

	case config.TopologyMemLogSets:
		if err := c.buildMemLogSets(cfg, flashSize, memSize); err != nil {
			return nil, err
		}
	}

	if cfg.Cache.SlowWarmup {
		// Presence of this flag means the run should start already warm
		// (e.g. resuming a trace against a flash tier that's already been
		// through a full eviction cycle elsewhere), bypassing the
		// ratioEvictedToCapacity poll entirely.
		c.warmedUp = true
	}

	log.Printf("kangaroosim: topology=%s flash=%s memory=%s", topology, humanize.Bytes(uint64(flashSize)), humanize.Bytes(uint64(memSize)))
	return c, nil
}

func (c *Cache) buildMemSets(cfg *config.Config, flashSize, memSize int64) error {
	numSets := uint64(flashSize) / uint64(cfg.Sets.SetCapacity)
	setsBag := c.collector.Bag("sets")
	setsTier := buildSets(cfg.Sets, numSets, setsBag, nil)
	configureSetsDiagnostics(setsTier, cfg)

	memCapacity := memSize - int64(setsTier.CalcMemoryConsumption())
	if memCapacity <= 0 {
		return errors.Errorf("config error: memorySizeMB too small once sets indexing overhead (%s) is subtracted", humanize.Bytes(setsTier.CalcMemoryConsumption()))
	}

	c.setsTier = setsTier
	c.mem = memcache.NewLRU(memCapacity, c.collector.Bag("memCache"))
	if cfg.PreSetAdmission != nil {
		c.preSetAdmission = buildAdmission(cfg.PreSetAdmission, setsTier, nil, c.collector.Bag("preSetAdmission"))
	}
	return nil
}

func (c *Cache) buildMemLog(cfg *config.Config, flashSize, memSize int64) error {
	blockSizeKB := config.DefaultFlushBlockSizeKB
	if cfg.Log.FlushBlockSizeKB != nil {
		blockSizeKB = *cfg.Log.FlushBlockSizeKB
	}
	logEngine := logtier.NewRotating(flashSize, int64(blockSizeKB)*1024, nil, c.collector.Bag("log"), int64(cfg.Log.Readmit))

	memCapacity := memSize - int64(float64(flashSize)*cfg.Cache.MemOverheadRatio)
	if memCapacity <= 0 {
		return errors.Errorf("config error: memorySizeMB too small once log indexing overhead is subtracted")
	}

	c.log = logEngine
	c.mem = memcache.NewLRU(memCapacity, c.collector.Bag("memCache"))
	if cfg.PreLogAdmission != nil {
		c.preLogAdmission = buildAdmission(cfg.PreLogAdmission, nil, nil, c.collector.Bag("preLogAdmission"))
	}
	return nil
}

// buildMemLogSets ports the reference MemLogSetsCache constructor's flash
// split (log leans toward getting more of the flash budget than a plain
// percentLog/100 split would give, via the floor-to-a-set-capacity-multiple
// rounding below) and its memory-overhead accounting.
func (c *Cache) buildMemLogSets(cfg *config.Config, flashSize, memSize int64) error {
	logPercent := cfg.Log.PercentLog / 100.0
	exactSetCapacity := float64(flashSize) * (1 - logPercent)
	actualSetCapacity := int64(exactSetCapacity - math.Mod(exactSetCapacity, float64(cfg.Sets.SetCapacity)))
	logCapacity := flashSize - actualSetCapacity
	if cfg.Log.AdjustFlashSizeUp {
		actualSetCapacity += logCapacity / 2
		logCapacity = flashSize - actualSetCapacity
	}
	numSets := uint64(actualSetCapacity / cfg.Sets.SetCapacity)

	// The sets tier's readmission callback needs to reach the log tier, but
	// the log tier's constructor (for the rotating variant) needs the sets
	// tier as a SetLocator. Tie the knot with a closure over a variable
	// assigned after both are built, mirroring the reference's back-pointer
	// (ref_cache) being wired up before either engine ever runs.
	var logEngine logtier.Engine
	readmitToLog := func(item candidate.Candidate) { logEngine.InsertFromSets(item) }

	setsBag := c.collector.Bag("sets")
	setsTier := buildSets(cfg.Sets, numSets, setsBag, readmitToLog)
	configureSetsDiagnostics(setsTier, cfg)

	logBag := c.collector.Bag("log")
	if cfg.Log.FlushBlockSizeKB != nil {
		logEngine = logtier.NewRotating(logCapacity, int64(*cfg.Log.FlushBlockSizeKB)*1024, setsTier, logBag, int64(cfg.Log.Readmit))
	} else {
		logEngine = logtier.NewMonolithic(logCapacity, logBag, int64(cfg.Log.Readmit))
	}

	indexOverhead := int64(float64(logCapacity)*cfg.Cache.MemOverheadRatio) + int64(setsTier.CalcMemoryConsumption())
	memCapacity := memSize - indexOverhead
	if memCapacity <= 0 {
		return errors.Errorf("config error: memorySizeMB too small once flash indexing overhead (%s) is subtracted", humanize.Bytes(uint64(indexOverhead)))
	}

	log.Printf("kangaroosim: flash split desired_log=%.1f%% actual_log=%.1f%% (%s log / %s sets across %d sets)",
		cfg.Log.PercentLog, 100*float64(logCapacity)/float64(flashSize), humanize.Bytes(uint64(logCapacity)), humanize.Bytes(uint64(actualSetCapacity)), numSets)
	log.Printf("kangaroosim: memory cache sized to %s after %s of flash-indexing overhead", humanize.Bytes(uint64(memCapacity)), humanize.Bytes(uint64(indexOverhead)))

	c.log = logEngine
	c.setsTier = setsTier
	c.mem = memcache.NewLRU(memCapacity, c.collector.Bag("memCache"))
	if cfg.PreLogAdmission != nil {
		c.preLogAdmission = buildAdmission(cfg.PreLogAdmission, setsTier, logEngine, c.collector.Bag("preLogAdmission"))
	}
	if cfg.PreSetAdmission != nil {
		c.preSetAdmission = buildAdmission(cfg.PreSetAdmission, setsTier, logEngine, c.collector.Bag("preSetAdmission"))
	}
	return nil
}

func buildSets(cfg *config.SetsConfig, numSets uint64, bag *stats.Bag, readmit func(candidate.Candidate)) sets.Engine {
	if cfg.RripBits != nil {
		return sets.NewRRIPSets(numSets, cfg.SetCapacity, bag, readmit, cfg.NumHashFunctions, *cfg.RripBits, cfg.PromotionOnly, cfg.MixedRRIP)
	}
	return sets.NewFIFOSets(numSets, cfg.SetCapacity, bag, readmit, cfg.NumHashFunctions, cfg.TrackHitsPerItem)
}

func configureSetsDiagnostics(setsTier sets.Engine, cfg *config.Config) {
	if cfg.Sets.HitDistribution {
		setsTier.EnableHitDistributionOverSets()
	}
	if cfg.Cache.RecordSetDistribution {
		setsTier.EnableDistTracking()
	}
}

func buildAdmission(cfg *config.AdmissionConfig, setsTier sets.Engine, logEngine logtier.Engine, bag *stats.Bag) admission.Policy {
	switch cfg.Policy {
	case "Random":
		return admission.NewRandom(cfg.AdmitRatio, 0, setsTier, logEngine, bag)
	case "Threshold":
		return admission.NewThreshold(cfg.Threshold, setsTier, logEngine, bag)
	default:
		// config.Parse already rejects any other policy name before a
		// Config reaches here.
		panic("kangaroosim: unknown admission policy " + cfg.Policy)
	}
}

// Access replays one trace request: non-read requests are ignored, reads
// are looked up across the resident tiers in topology order and inserted
// into DRAM on a miss, cascading through admission into the flash tiers as
// configured. Grounded on the reference implementation's Cache::access.
func (c *Cache) Access(req trace.Request) error {
	if !req.Type.IsRead() {
		return nil
	}

	item := candidate.New(req.ID, req.Size, req.OracleCount)
	c.global.Inc("totalAccesses")
	c.global.Inc("accessesAfterFlush")

	if c.find(item) {
		c.global.Inc("hits")
		c.global.Add("sizeHits", item.Size)
	} else {
		c.global.Inc("misses")
		c.global.Add("sizeMisses", item.Size)
		c.insert(item)
	}
	c.global.Add("sizeAccesses", item.Size)

	c.trackHistory(item)
	c.checkWarmup()

	if c.global.Get("accessesAfterFlush") >= c.statsInterval {
		if err := c.dumpStats(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) trackHistory(item candidate.Candidate) {
	if c.seenBefore[item.ID] {
		return
	}
	c.seenBefore[item.ID] = true
	c.global.Inc("compulsoryMisses")
	c.global.Add("uniqueBytes", item.Size)
}

// find looks item up across the resident tiers in DRAM -> log -> sets
// order, whichever of the last two are present for this topology.
func (c *Cache) find(item candidate.Candidate) bool {
	if c.mem.Find(item) {
		return true
	}
	if c.log != nil && c.log.Find(item) {
		return true
	}
	if c.setsTier != nil && c.setsTier.Find(item) {
		return true
	}
	return false
}

// insert is only called on a miss. It inserts into DRAM and cascades
// whatever DRAM evicts through pre-log admission (if warm and configured)
// into the log, and whatever the log evicts through pre-set admission (if
// warm and configured) into the sets tier. Admission filters are bypassed
// entirely until the cache is warm.
func (c *Cache) insert(item candidate.Candidate) {
	evicted := c.mem.Insert(item)
	if len(evicted) == 0 {
		return
	}

	if c.log == nil && c.setsTier == nil {
		return
	}

	if c.setsTier != nil && c.log == nil {
		c.insertIntoSets(evicted)
		return
	}

	toLog := evicted
	if c.warmedUp && c.preLogAdmission != nil {
		if c.setsTier != nil {
			// A sets tier exists downstream of the log, so preLogAdmission was
			// built with it and grouped by destination set (mirroring
			// insertIntoSets' admit-then-flatten pattern below); a policy like
			// Threshold that needs set grouping only works called this way.
			toLog = nil
			for _, bin := range c.preLogAdmission.Admit(evicted) {
				toLog = append(toLog, bin...)
			}
		} else {
			toLog = c.preLogAdmission.AdmitSimple(evicted)
		}
	}
	fromLog := c.log.Insert(toLog)
	if len(fromLog) == 0 || c.setsTier == nil {
		return
	}
	c.insertIntoSets(fromLog)
}

func (c *Cache) insertIntoSets(items []candidate.Candidate) {
	if c.warmedUp && c.preSetAdmission != nil {
		for setNum, bin := range c.preSetAdmission.Admit(items) {
			c.setsTier.InsertSet(setNum, bin)
		}
		return
	}
	c.setsTier.Insert(items)
}

// checkWarmup mirrors the reference's CHECK_WARMUP_INTERVAL polling: every
// 1000 accesses, while not yet warm, test whether the outermost flash tier
// has evicted a full capacity's worth of bytes. Once it has, every
// component's interval counters are flushed and the global counters reset,
// except the ones that track cumulative history across the whole run.
func (c *Cache) checkWarmup() {
	if c.warmedUp {
		return
	}
	if c.global.Get("totalAccesses")%checkWarmupInterval != 0 {
		return
	}
	if c.flashRatioEvictedToCapacity() < 1 {
		return
	}

	c.warmedUp = true
	c.mem.FlushStats()
	if c.log != nil {
		c.log.FlushStats()
	}
	if c.setsTier != nil {
		c.setsTier.FlushStats()
	}
	c.global.Reset("hits", "misses", "sizeHits", "sizeMisses", "sizeAccesses", "accessesAfterFlush")
}

func (c *Cache) flashRatioEvictedToCapacity() float64 {
	switch c.topology {
	case config.TopologyMemSets:
		return c.setsTier.RatioEvictedToCapacity()
	case config.TopologyMemLog:
		return c.log.RatioEvictedToCapacity()
	case config.TopologyMemLogSets:
		// The sets tier is the outermost flash tier in the full pipeline:
		// it's the one that has to cycle through its whole capacity before
		// the system as a whole can be considered warm.
		return c.setsTier.RatioEvictedToCapacity()
	default:
		return 1
	}
}

// calcFlashWriteAmp composes the flash tiers' write amplification, scaling
// each stage by the byte-admission ratio of whatever filter gates it, since
// bytes an admission filter rejected never reached flash at all. Grounded
// on the reference implementation's MemLogSetsCache::calcFlashWriteAmp.
func (c *Cache) calcFlashWriteAmp() float64 {
	switch c.topology {
	case config.TopologyMemOnly:
		return 0
	case config.TopologyMemSets:
		setWriteAmp := c.setsTier.CalcWriteAmp()
		if c.warmedUp && c.preSetAdmission != nil {
			setWriteAmp *= c.preSetAdmission.ByteRatioAdmitted()
		}
		return setWriteAmp
	case config.TopologyMemLog:
		return c.log.CalcWriteAmp()
	case config.TopologyMemLogSets:
		setWriteAmp := c.setsTier.CalcWriteAmp()
		if c.warmedUp && c.preSetAdmission != nil {
			setWriteAmp *= c.preSetAdmission.ByteRatioAdmitted()
		}
		flashWriteAmp := setWriteAmp + c.log.CalcWriteAmp()
		if c.warmedUp && c.preLogAdmission != nil {
			flashWriteAmp *= c.preLogAdmission.ByteRatioAdmitted()
		}
		return flashWriteAmp
	default:
		return 0
	}
}

func (c *Cache) calcMissRate() float64 {
	hits, misses := c.global.Get("hits"), c.global.Get("misses")
	if hits+misses == 0 {
		return 0
	}
	return float64(misses) / float64(hits+misses)
}

// dumpStats serializes every component's current counters to the stats
// output stream and logs a one-line progress summary, matching the
// reference's periodic "Miss Rate / Flash Write Amp" print in
// Cache::dumpStats. A write failure on the stats stream is fatal per the
// error taxonomy: the caller should treat it as such.
func (c *Cache) dumpStats() error {
	log.Printf("kangaroosim: accesses=%d missRate=%.4f flashWriteAmp=%.4f",
		c.global.Get("totalAccesses"), c.calcMissRate(), c.calcFlashWriteAmp())
	if err := c.collector.Flush(); err != nil {
		return errors.Wrap(err, "flushing statistics")
	}
	c.global.Set("accessesAfterFlush", 0)
	return nil
}

// FlushStats forces a final statistics serialization, used by the CLI
// after the trace is exhausted so the last partial interval isn't lost.
func (c *Cache) FlushStats() error {
	return c.dumpStats()
}
