package trace

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// CSVReader reads a simple three-column trace (id,size,opCount), the same
// shape the reference's FacebookTaoSimpleParser consumes: every row expands
// into opCount individual read requests, each bumping ReqNum/Time by one,
// matching the reference's "for (i = 0; i < op_count; i++) { req.req_num++;
// ...; visit(req); }" loop.
type CSVReader struct {
	r       *csv.Reader
	id      int64
	size    int64
	remain  int
	reqNum  int64
	closeFn func() error
}

// NewCSVReader wraps r, which must yield rows of exactly "id,size,opCount".
func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	return &CSVReader{r: cr}
}

// Read returns the next read request, pulling a new CSV row when the
// current row's opCount is exhausted.
func (c *CSVReader) Read() (Request, error) {
	for c.remain == 0 {
		record, err := c.r.Read()
		if err != nil {
			return Request{}, err
		}
		id, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return Request{}, errors.Wrap(err, "parsing trace id column")
		}
		size, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return Request{}, errors.Wrap(err, "parsing trace size column")
		}
		count, err := strconv.Atoi(record[2])
		if err != nil {
			return Request{}, errors.Wrap(err, "parsing trace opCount column")
		}
		c.id, c.size, c.remain = id, size, count
	}
	c.remain--
	c.reqNum++
	return Request{
		ID:     c.id,
		Size:   c.size,
		Type:   Get,
		Time:   uint64(c.reqNum),
		ReqNum: c.reqNum,
	}, nil
}
