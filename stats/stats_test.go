package stats

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBagDefaultZero(t *testing.T) {
	b := newBag()
	require.Equal(t, int64(0), b.Get("missing"))
	b.Inc("hits")
	b.Inc("hits")
	require.Equal(t, int64(2), b.Get("hits"))
}

func TestBagAddReturnsNewValue(t *testing.T) {
	b := newBag()
	require.Equal(t, int64(5), b.Add("sizeAdmits", 5))
	require.Equal(t, int64(8), b.Add("sizeAdmits", 3))
}

func TestBagResetClearsOnlyNamed(t *testing.T) {
	b := newBag()
	b.Set("a", 1)
	b.Set("b", 2)
	b.Reset("a")
	require.Equal(t, int64(0), b.Get("a"))
	require.Equal(t, int64(2), b.Get("b"))
}

func TestCollectorFlushIsSortedAndPretty(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(&buf)
	c.Bag("global").Set("hits", 10)
	c.Bag("log").Set("numEvictions", 3)

	require.NoError(t, c.Flush())

	var parsed map[string]map[string]int64
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Equal(t, int64(10), parsed["global"]["hits"])
	require.Equal(t, int64(3), parsed["log"]["numEvictions"])

	// Pretty printed: indentation present.
	require.Contains(t, buf.String(), "    \"global\"")
}

func TestCollectorBagIsStableAcrossCalls(t *testing.T) {
	c := NewCollector(&bytes.Buffer{})
	b1 := c.Bag("memCache")
	b2 := c.Bag("memCache")
	require.Same(t, b1, b2)
}
