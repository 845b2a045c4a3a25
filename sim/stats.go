package sim

import (
	"fmt"

	"github.com/sarchlab/csim/mem/cache"
)

// Stats counts the outcomes of the replacement steps of one simulation.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Add accounts for one replacement step.
func (s *Stats) Add(outcome cache.Outcome) {
	if !outcome.IsMiss() {
		s.Hits++
		return
	}

	s.Misses++

	if outcome == cache.MissEvict {
		s.Evictions++
	}
}

// Accesses returns the number of replacement steps counted.
func (s Stats) Accesses() uint64 {
	return s.Hits + s.Misses
}

// MissRate returns the fraction of steps that missed. It is 0 when nothing
// has been counted.
func (s Stats) MissRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}

	return float64(s.Misses) / float64(s.Accesses())
}

// String formats the summary line printed at the end of a run.
func (s Stats) String() string {
	return fmt.Sprintf("hits:%d misses:%d evictions:%d",
		s.Hits, s.Misses, s.Evictions)
}
