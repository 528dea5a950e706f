package candidate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualByIDOnly(t *testing.T) {
	a := Candidate{ID: 1, Size: 40}
	b := Candidate{ID: 1, Size: 9000, HitCount: 3}
	require.True(t, a.Equal(b))

	c := Candidate{ID: 2, Size: 40}
	require.False(t, a.Equal(c))
}

func TestNew(t *testing.T) {
	c := New(7, 128, 99)
	require.Equal(t, int64(7), c.ID)
	require.Equal(t, int64(128), c.Size)
	require.Equal(t, int64(99), c.OracleCount)
	require.Equal(t, int64(0), c.HitCount)
}

func TestTotalSize(t *testing.T) {
	items := []Candidate{{ID: 1, Size: 40}, {ID: 2, Size: 60}, {ID: 3, Size: 10}}
	require.Equal(t, int64(110), TotalSize(items))
	require.Equal(t, int64(0), TotalSize(nil))
}
