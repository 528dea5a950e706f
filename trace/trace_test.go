package trace

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeIsRead(t *testing.T) {
	require.True(t, Get.IsRead())
	require.False(t, Set.IsRead())
	require.False(t, Delete.IsRead())
	require.False(t, Other.IsRead())
}

type sliceReader struct {
	reqs []Request
	i    int
}

func (s *sliceReader) Read() (Request, error) {
	if s.i >= len(s.reqs) {
		return Request{}, io.EOF
	}
	req := s.reqs[s.i]
	s.i++
	return req, nil
}

func TestDrainVisitsEveryRequestInOrder(t *testing.T) {
	r := &sliceReader{reqs: []Request{{ID: 1}, {ID: 2}, {ID: 3}}}
	var seen []int64
	err := Drain(r, func(req Request) error {
		seen = append(seen, req.ID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, seen)
}

func TestDrainStopsOnVisitError(t *testing.T) {
	r := &sliceReader{reqs: []Request{{ID: 1}, {ID: 2}}}
	count := 0
	err := Drain(r, func(req Request) error {
		count++
		return io.ErrClosedPipe
	})
	require.Error(t, err)
	require.Equal(t, 1, count)
}
