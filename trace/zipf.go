package trace

import (
	"io"
	"math/rand"
)

// ZipfReader synthesizes a trace over numObjects objects drawn from a
// Zipf-like popularity distribution, mirroring the reference's ZipfParser /
// ZipfRequests "independent reference model" generator. Where the reference
// hand-rolls a two-level popularity-bucket sampler, this uses the standard
// library's math/rand.Zipf, which implements the same family of
// distribution (Zipf's law, parameterized by s/v) without the bespoke
// bucketing machinery — the idiomatic Go replacement for that sampler.
type ZipfReader struct {
	zipf    *rand.Zipf
	rnd     *rand.Rand
	minSize int64
	maxSize int64
	numLeft int64
	reqNum  int64
}

// NewZipfReader builds a generator of numRequests requests over
// numObjects distinct ids, skew s (> 1, larger is more skewed) and offset
// v (the reference's "alpha"/"min_size" roles), with object sizes drawn
// uniformly from [minSize, maxSize]. seed makes the sequence reproducible,
// matching the reference generator's fixed rd_gen.seed(1).
func NewZipfReader(seed int64, s, v float64, numObjects uint64, minSize, maxSize int64, numRequests int64) *ZipfReader {
	rnd := rand.New(rand.NewSource(seed))
	return &ZipfReader{
		zipf:    rand.NewZipf(rnd, s, v, numObjects-1),
		rnd:     rnd,
		minSize: minSize,
		maxSize: maxSize,
		numLeft: numRequests,
	}
}

// Read returns the next synthetic request, or io.EOF once numRequests have
// been generated.
func (z *ZipfReader) Read() (Request, error) {
	if z.numLeft <= 0 {
		return Request{}, io.EOF
	}
	z.numLeft--
	z.reqNum++
	id := int64(z.zipf.Uint64()) + 1
	size := z.minSize
	if z.maxSize > z.minSize {
		size += z.rnd.Int63n(z.maxSize - z.minSize + 1)
	}
	return Request{
		ID:     id,
		Size:   size,
		Type:   Get,
		Time:   uint64(z.reqNum),
		ReqNum: z.reqNum,
	}, nil
}
