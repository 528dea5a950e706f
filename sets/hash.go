package sets

import (
	"strconv"

	farm "github.com/dgryski/go-farm"
	"github.com/zeebo/xxh3"
)

// findSetNums computes every set an object id could land in. The loop runs
// numHashFunctions+1 rounds, mirroring the reference implementation's
// "i <= num_hash_functions" loop, so even a single hash function (the common
// case) yields up to two set numbers — preserved exactly, including that
// off-by-one, since downstream behavior depends on it.
//
// The reference rehashes with std::hash, whose exact mixing is unspecified
// by the C++ standard. This simulator instead threads two concrete,
// well-distributed hashes across rounds: farm.Hash64 seeds the first
// candidate, xxh3 remixes it on every subsequent round.
func findSetNums(id int64, numSets uint64, numHashFunctions int) map[uint64]struct{} {
	possibilities := make(map[uint64]struct{}, numHashFunctions+1)
	current := farm.Hash64([]byte(strconv.FormatInt(id, 10)))
	for i := 0; i <= numHashFunctions; i++ {
		possibilities[current%numSets] = struct{}{}
		current = xxh3.HashString(strconv.FormatUint(current, 10))
	}
	return possibilities
}

// anyKey returns the lowest key of m, so an item is always placed in the
// same one of its candidate sets.
func anyKey(m map[uint64]struct{}) uint64 {
	first := true
	var lowest uint64
	for k := range m {
		if first || k < lowest {
			lowest, first = k, false
		}
	}
	if first {
		panic("sets: findSetNums returned no candidates")
	}
	return lowest
}
