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

package kangaroosim

import (
	"bytes"
	"testing"

	"github.com/dgraph-io/kangaroosim/config"
	"github.com/dgraph-io/kangaroosim/trace"
	"github.com/stretchr/testify/require"
)

func memOnlyConfig() *config.Config {
	return &config.Config{
		Stats: config.StatsConfig{OutputFile: "-", CollectionIntervalPower: 6},
		Cache: config.CacheConfig{FlashSizeMB: 0, MemorySizeMB: 1, MemOverheadRatio: 0.02},
	}
}

func memSetsConfig() *config.Config {
	return &config.Config{
		Stats: config.StatsConfig{OutputFile: "-", CollectionIntervalPower: 6},
		Cache: config.CacheConfig{FlashSizeMB: 1, MemorySizeMB: 1},
		Sets:  &config.SetsConfig{SetCapacity: 4096, NumHashFunctions: 1},
	}
}

func memLogConfig() *config.Config {
	return &config.Config{
		Stats: config.StatsConfig{OutputFile: "-", CollectionIntervalPower: 6},
		Cache: config.CacheConfig{FlashSizeMB: 1, MemorySizeMB: 1, MemOverheadRatio: 0.02},
		Log:   &config.LogConfig{Readmit: 0},
	}
}

func memLogSetsConfig() *config.Config {
	return &config.Config{
		Stats: config.StatsConfig{OutputFile: "-", CollectionIntervalPower: 6},
		Cache: config.CacheConfig{FlashSizeMB: 1, MemorySizeMB: 1, MemOverheadRatio: 0.02},
		Log:   &config.LogConfig{PercentLog: 50, Readmit: 0},
		Sets:  &config.SetsConfig{SetCapacity: 4096, NumHashFunctions: 1},
	}
}

func read(id, size int64) trace.Request {
	return trace.Request{ID: id, Size: size, Type: trace.Get}
}

func TestNewBuildsEachTopology(t *testing.T) {
	for name, cfg := range map[string]*config.Config{
		"mem-only":     memOnlyConfig(),
		"mem-sets":     memSetsConfig(),
		"mem-log":      memLogConfig(),
		"mem-log-sets": memLogSetsConfig(),
	} {
		t.Run(name, func(t *testing.T) {
			c, err := New(cfg, &bytes.Buffer{})
			require.NoError(t, err)
			require.NotNil(t, c.mem)
		})
	}
}

func TestMemOnlyMissThenHit(t *testing.T) {
	c, err := New(memOnlyConfig(), &bytes.Buffer{})
	require.NoError(t, err)
	require.True(t, c.warmedUp, "mem-only has no flash tier to warm up")

	require.NoError(t, c.Access(read(1, 100)))
	require.Equal(t, int64(1), c.global.Get("misses"))

	require.NoError(t, c.Access(read(1, 100)))
	require.Equal(t, int64(1), c.global.Get("hits"))
}

func TestMemOnlyDiscardsEvictionsSilently(t *testing.T) {
	c, err := New(memOnlyConfig(), &bytes.Buffer{})
	require.NoError(t, err)

	for i := int64(0); i < 50; i++ {
		require.NoError(t, c.Access(read(i, 1<<20)))
	}
	require.Equal(t, int64(50), c.global.Get("totalAccesses"))
	require.Zero(t, c.calcFlashWriteAmp())
}

func TestMemLogSetsCascadesEvictionsIntoFlash(t *testing.T) {
	c, err := New(memLogSetsConfig(), &bytes.Buffer{})
	require.NoError(t, err)

	for i := int64(0); i < 2000; i++ {
		require.NoError(t, c.Access(read(i, 4096)))
	}
	require.Greater(t, c.log.RatioCapacityUsed()+c.setsTier.RatioCapacityUsed(), 0.0,
		"enough misses should have pushed DRAM evictions into the flash tiers")
}

func TestWarmupTransitionResetsIntervalCounters(t *testing.T) {
	c, err := New(memLogConfig(), &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, c.warmedUp)

	for i := int64(0); i < 3000 && !c.warmedUp; i++ {
		require.NoError(t, c.Access(read(i, 4096)))
	}
	require.True(t, c.warmedUp, "enough misses should have cycled the log through its capacity")
	require.Zero(t, c.global.Get("misses"), "interval counters are reset at the warmup transition")
	require.True(t, c.global.Get("totalAccesses") > 0, "cumulative counters survive the warmup reset")
}

func TestSlowWarmupStartsAlreadyWarm(t *testing.T) {
	cfg := memLogConfig()
	cfg.Cache.SlowWarmup = true
	c, err := New(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	require.True(t, c.warmedUp)
}

func TestNonReadRequestsAreIgnored(t *testing.T) {
	c, err := New(memOnlyConfig(), &bytes.Buffer{})
	require.NoError(t, err)

	require.NoError(t, c.Access(trace.Request{ID: 1, Size: 10, Type: trace.Set}))
	require.Zero(t, c.global.Get("totalAccesses"))
}

func TestPeriodicFlushSerializesAllBags(t *testing.T) {
	var out bytes.Buffer
	cfg := memOnlyConfig()
	cfg.Stats.CollectionIntervalPower = 1 // flush every 10 accesses
	c, err := New(cfg, &out)
	require.NoError(t, err)

	for i := int64(0); i < 10; i++ {
		require.NoError(t, c.Access(read(i, 1)))
	}
	require.Contains(t, out.String(), "\"global\"")
	require.Contains(t, out.String(), "\"memCache\"")
}
