// Command kangaroosim replays a trace file against a configured cache
// topology and writes periodic statistics to the configured output file.
// Grounded on the reference implementation's main.cpp: load config, build
// the cache, drain the trace, print an end-to-end runtime summary.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/kangaroosim"
	"github.com/dgraph-io/kangaroosim/config"
	"github.com/dgraph-io/kangaroosim/trace"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file (required)")
	set := flag.String("set", "", "semicolon-separated key=value overrides, e.g. \"cache.flashSizeMB=2048;log.readmit=5\"")
	tracePath := flag.String("trace", "", "path to a delimited-text trace file (required unless -zipf is set)")
	zipf := flag.Bool("zipf", false, "generate a synthetic Zipfian trace instead of reading -trace")
	zipfRequests := flag.Int64("zipf-requests", 1_000_000, "number of synthetic requests to generate with -zipf")
	zipfObjects := flag.Uint64("zipf-objects", 100_000, "number of distinct objects in the synthetic Zipfian population")
	zipfSeed := flag.Int64("zipf-seed", 0, "seed for the synthetic Zipfian generator")
	flag.Parse()

	if err := run(*configPath, *set, *tracePath, *zipf, *zipfRequests, *zipfObjects, *zipfSeed); err != nil {
		log.Fatalf("kangaroosim: %v", err)
	}
}

func run(configPath, overrides, tracePath string, zipf bool, zipfRequests int64, zipfObjects uint64, zipfSeed int64) error {
	if configPath == "" {
		return errors.New("config error: -config is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := config.ParseOverrides(cfg, overrides); err != nil {
		return err
	}

	reader, closeTrace, err := buildReader(tracePath, zipf, zipfRequests, zipfObjects, zipfSeed)
	if err != nil {
		return err
	}
	defer closeTrace()

	statsOut, err := os.Create(cfg.Stats.OutputFile)
	if err != nil {
		return errors.Wrapf(err, "creating stats output file %q", cfg.Stats.OutputFile)
	}
	defer statsOut.Close()

	cache, err := kangaroosim.New(cfg, statsOut)
	if err != nil {
		return err
	}

	start := time.Now()
	var processed int64
	if err := trace.Drain(reader, func(req trace.Request) error {
		processed++
		return cache.Access(req)
	}); err != nil {
		return errors.Wrap(err, "draining trace")
	}

	if err := cache.FlushStats(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	rate := float64(processed) / elapsed.Seconds()
	log.Printf("kangaroosim: finished %s requests in %s (%.0f req/s)", humanize.Comma(processed), elapsed.Round(time.Millisecond), rate)
	return nil
}

func buildReader(tracePath string, zipf bool, zipfRequests int64, zipfObjects uint64, zipfSeed int64) (trace.Reader, func(), error) {
	if zipf {
		return trace.NewZipfReader(zipfSeed, 2, 1.01, zipfObjects, 1, 1<<20, zipfRequests), func() {}, nil
	}
	if tracePath == "" {
		return nil, nil, errors.New("config error: -trace is required unless -zipf is set")
	}
	f, err := os.Open(tracePath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening trace file %q", tracePath)
	}
	return trace.NewCSVReader(f), func() { f.Close() }, nil
}
