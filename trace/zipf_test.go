package trace

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZipfReaderProducesExactCountAndIsReproducible(t *testing.T) {
	a := NewZipfReader(1, 1.5, 1, 1000, 64, 64, 50)
	b := NewZipfReader(1, 1.5, 1, 1000, 64, 64, 50)

	var idsA, idsB []int64
	for {
		req, err := a.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		idsA = append(idsA, req.ID)
	}
	for {
		req, err := b.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		idsB = append(idsB, req.ID)
	}

	require.Len(t, idsA, 50)
	require.Equal(t, idsA, idsB, "same seed must produce the same sequence")
}

func TestZipfReaderSizesWithinRange(t *testing.T) {
	r := NewZipfReader(42, 1.2, 1, 500, 100, 200, 200)
	for {
		req, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.GreaterOrEqual(t, req.Size, int64(100))
		require.LessOrEqual(t, req.Size, int64(200))
		require.True(t, req.Type.IsRead())
	}
}
