// Package candidate defines the value object shared by every tier of the
// flash cache: a cached object's identity, size, and per-tier bookkeeping.
package candidate

// Candidate identifies a cached object. Equality and hashing are by ID
// alone; Size and the two counters are metadata carried alongside it.
// Candidates are plain values: copy them freely, never take their address
// for identity comparisons.
type Candidate struct {
	ID int64
	// Size is the object's byte count. Always positive for a real request.
	Size int64
	// HitCount is bumped while the candidate is resident in the log, and
	// reset to 0 whenever it crosses into the set-associative tier.
	HitCount int64
	// OracleCount is an opaque pass-through field from the trace; the core
	// never interprets it, only carries it.
	OracleCount int64
}

// New builds a Candidate from a trace request's (id, size, oracle count).
func New(id, size, oracleCount int64) Candidate {
	return Candidate{ID: id, Size: size, OracleCount: oracleCount}
}

// Equal reports whether two candidates name the same object.
func (c Candidate) Equal(other Candidate) bool {
	return c.ID == other.ID
}

// TotalSize sums the Size field over a batch of candidates.
func TotalSize(items []Candidate) int64 {
	var total int64
	for _, it := range items {
		total += it.Size
	}
	return total
}
