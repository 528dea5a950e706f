package trace

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVReaderExpandsOpCount(t *testing.T) {
	r := NewCSVReader(strings.NewReader("1,100,3\n2,200,1\n"))

	var got []Request
	for {
		req, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, req)
	}

	require.Len(t, got, 4)
	for i := 0; i < 3; i++ {
		require.Equal(t, int64(1), got[i].ID)
		require.Equal(t, int64(100), got[i].Size)
		require.Equal(t, Get, got[i].Type)
	}
	require.Equal(t, int64(2), got[3].ID)
	require.Equal(t, int64(200), got[3].Size)

	require.Equal(t, []int64{1, 2, 3, 4}, []int64{got[0].ReqNum, got[1].ReqNum, got[2].ReqNum, got[3].ReqNum})
	require.Equal(t, []uint64{1, 2, 3, 4}, []uint64{got[0].Time, got[1].Time, got[2].Time, got[3].Time})
}

func TestCSVReaderRejectsMalformedID(t *testing.T) {
	r := NewCSVReader(strings.NewReader("abc,100,1\n"))
	_, err := r.Read()
	require.Error(t, err)
}

func TestCSVReaderEOFOnEmptyInput(t *testing.T) {
	r := NewCSVReader(strings.NewReader(""))
	_, err := r.Read()
	require.ErrorIs(t, err, io.EOF)
}
