// Package config loads the immutable configuration record the simulator's
// core consumes. Configuration loading is an external collaborator per the
// specification (the core only consumes the resulting record), but a
// runnable simulator needs a concrete loader, so this package implements
// one: a hierarchical YAML document, the idiomatic replacement for the
// reference implementation's libconfig file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default values for keys the reference implementation treats as optional
// (see simulator/constants.hpp).
const (
	DefaultCollectionIntervalPower = 6
	DefaultMemOverheadRatio        = 0.02
	DefaultNumHashFunctions        = 1
	DefaultFlushBlockSizeKB        = 256
)

// StatsConfig controls the statistics sink.
type StatsConfig struct {
	OutputFile              string `yaml:"outputFile"`
	CollectionIntervalPower int    `yaml:"collectionIntervalPower"`
}

// CacheConfig controls global cache sizing and warmup behavior.
type CacheConfig struct {
	FlashSizeMB           int     `yaml:"flashSizeMB"`
	MemorySizeMB          int     `yaml:"memorySizeMB"`
	MemOverheadRatio      float64 `yaml:"memOverheadRatio"`
	SlowWarmup            bool    `yaml:"slowWarmup"`
	RecordSetDistribution bool    `yaml:"recordSetDistribution"`
}

// MemoryCacheConfig selects the DRAM tier's policy. "LRU" is the only
// supported value.
type MemoryCacheConfig struct {
	Policy string `yaml:"policy"`
}

// LogConfig controls the flash log tier. Present only for topologies that
// include a log.
type LogConfig struct {
	PercentLog        float64 `yaml:"percentLog"`
	FlushBlockSizeKB  *int    `yaml:"flushBlockSizeKB"`
	Readmit           int     `yaml:"readmit"`
	AdjustFlashSizeUp bool    `yaml:"adjustFlashSizeUp"`
}

// SetsConfig controls the set-associative flash tier. Present only for
// topologies that include a set-associative region.
type SetsConfig struct {
	SetCapacity      int64 `yaml:"setCapacity"`
	NumHashFunctions int   `yaml:"numHashFunctions"`
	RripBits         *int  `yaml:"rripBits"`
	PromotionOnly    bool  `yaml:"promotionOnly"`
	MixedRRIP        bool  `yaml:"mixedRRIP"`
	TrackHitsPerItem bool  `yaml:"trackHitsPerItem"`
	HitDistribution  bool  `yaml:"hitDistribution"`
}

// AdmissionConfig configures a Random or Threshold admission policy.
type AdmissionConfig struct {
	Policy     string  `yaml:"policy"`
	AdmitRatio float64 `yaml:"admitRatio"`
	Threshold  int     `yaml:"threshold"`
}

// Config is the immutable record the orchestrator is built from. Populate
// it via Load (and any ApplyOverride/ParseOverrides calls right after) and
// never mutate it once the orchestrator is built — every downstream
// component assumes it's stable for the life of the run.
type Config struct {
	Stats           StatsConfig        `yaml:"stats"`
	Cache           CacheConfig        `yaml:"cache"`
	MemoryCache     *MemoryCacheConfig `yaml:"memoryCache"`
	Log             *LogConfig         `yaml:"log"`
	Sets            *SetsConfig        `yaml:"sets"`
	PreLogAdmission *AdmissionConfig   `yaml:"preLogAdmission"`
	PreSetAdmission *AdmissionConfig   `yaml:"preSetAdmission"`
}

// Load reads and parses a YAML configuration file at path, applies defaults,
// and validates that the keys the core requires are present.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}
	return Parse(raw)
}

// Parse parses a YAML document already read into memory; split out from
// Load so tests and the override mechanism don't need a file on disk.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Stats.CollectionIntervalPower == 0 {
		c.Stats.CollectionIntervalPower = DefaultCollectionIntervalPower
	}
	if c.Cache.MemOverheadRatio == 0 {
		c.Cache.MemOverheadRatio = DefaultMemOverheadRatio
	}
	if c.Sets != nil && c.Sets.NumHashFunctions == 0 {
		c.Sets.NumHashFunctions = DefaultNumHashFunctions
	}
}

func (c *Config) validate() error {
	if c.Stats.OutputFile == "" {
		return errors.New("config error: stats.outputFile is required")
	}
	if c.MemoryCache != nil && c.MemoryCache.Policy != "LRU" {
		return errors.Errorf("config error: unsupported memoryCache.policy %q", c.MemoryCache.Policy)
	}
	if c.PreLogAdmission != nil {
		if err := validateAdmission("preLogAdmission", c.PreLogAdmission); err != nil {
			return err
		}
	}
	if c.PreSetAdmission != nil {
		if err := validateAdmission("preSetAdmission", c.PreSetAdmission); err != nil {
			return err
		}
	}
	return nil
}

func validateAdmission(section string, a *AdmissionConfig) error {
	switch a.Policy {
	case "Random":
		if a.AdmitRatio < 0 || a.AdmitRatio > 1 {
			return errors.Errorf("config error: %s.admitRatio must be in [0,1], got %v", section, a.AdmitRatio)
		}
	case "Threshold":
		if a.Threshold <= 1 {
			return errors.Errorf("config error: %s.threshold must be > 1, got %d", section, a.Threshold)
		}
	default:
		return errors.Errorf("config error: unknown admission policy %q in %s", a.Policy, section)
	}
	return nil
}

// Topology reports which of the four supported topologies this config
// selects, based on the presence of the memoryCache/log/sets sections
// (spec §4.5).
type Topology int

const (
	// TopologyMemOnly is the DRAM-only ablation.
	TopologyMemOnly Topology = iota
	// TopologyMemSets is the DRAM+sets ablation.
	TopologyMemSets
	// TopologyMemLog is the DRAM+log ablation.
	TopologyMemLog
	// TopologyMemLogSets is the full pipeline.
	TopologyMemLogSets
)

func (t Topology) String() string {
	switch t {
	case TopologyMemOnly:
		return "mem-only"
	case TopologyMemSets:
		return "mem-sets"
	case TopologyMemLog:
		return "mem-log"
	case TopologyMemLogSets:
		return "mem-log-sets"
	default:
		return "unknown"
	}
}

// Topology determines which orchestrator topology this config describes.
func (c *Config) Topology() (Topology, error) {
	hasLog, hasSets := c.Log != nil, c.Sets != nil
	switch {
	case !hasLog && hasSets:
		return TopologyMemSets, nil
	case hasLog && hasSets:
		return TopologyMemLogSets, nil
	case hasLog && !hasSets:
		return TopologyMemLog, nil
	case !hasLog && !hasSets:
		return TopologyMemOnly, nil
	}
	return 0, errors.New("config error: no appropriate cache implementation for the given sections")
}

// ApplyOverride patches a single dotted key (e.g. "cache.flashSizeMB") with
// a raw string value, the same role the reference's SuperFlag string
// (key=value;key=value) plays for quick one-off experiments. Only a small,
// explicit set of commonly-tuned knobs is supported; anything else is a
// configuration error rather than silently ignored.
func (c *Config) ApplyOverride(key, value string) error {
	switch key {
	case "cache.flashSizeMB":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "override %s", key)
		}
		c.Cache.FlashSizeMB = v
	case "cache.memorySizeMB":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "override %s", key)
		}
		c.Cache.MemorySizeMB = v
	case "stats.outputFile":
		c.Stats.OutputFile = value
	case "log.readmit":
		if c.Log == nil {
			return errors.Errorf("override %s: no log section configured", key)
		}
		v, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "override %s", key)
		}
		c.Log.Readmit = v
	default:
		return errors.Errorf("unsupported override key %q", key)
	}
	return nil
}

// ParseOverrides splits a ";"-separated list of "key=value" pairs, the same
// grammar the reference SuperFlag uses, and applies each to c in order.
func ParseOverrides(c *Config, flag string) error {
	if strings.TrimSpace(flag) == "" {
		return nil
	}
	for _, kv := range strings.Split(flag, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return errors.Errorf("malformed override %q, want key=value", kv)
		}
		if err := c.ApplyOverride(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])); err != nil {
			return err
		}
	}
	return nil
}
