package transpose

import (
	"errors"
	"fmt"

	"github.com/sarchlab/csim/mem/cache"
	"github.com/sarchlab/csim/mem/trace"
	"github.com/sarchlab/csim/sim"
)

const (
	// BaseA is the address of the source matrix.
	BaseA uint64 = 0x10c080

	// MaxDim bounds both dimensions. The destination matrix is placed right
	// after a MaxDim x MaxDim source region.
	MaxDim = 256

	// BaseB is the address of the destination matrix.
	BaseB = BaseA + MaxDim*MaxDim*ElementSize
)

// ReferenceGeometry is the cache transpose functions are scored on: 1 KiB,
// direct-mapped, 32-byte blocks.
var ReferenceGeometry = cache.Geometry{SetBits: 5, NumWays: 1, BlockBits: 5}

// ErrNotTranspose is returned when a function produces a wrong result.
var ErrNotTranspose = errors.New("result is not the transpose")

// Evaluation is the score of one transpose function.
type Evaluation struct {
	Rows, Cols int
	Stats      sim.Stats
	Records    []trace.Record
}

// Evaluate runs f on a rows x cols matrix, checks the result and replays the
// memory accesses on a cache with the given geometry.
func Evaluate(
	f Func,
	rows, cols int,
	g cache.Geometry,
) (Evaluation, error) {
	if rows < 1 || cols < 1 || rows > MaxDim || cols > MaxDim {
		return Evaluation{}, &sim.ConfigurationError{
			Field: "matrix size",
			Err: fmt.Errorf("%dx%d is outside 1x1 to %dx%d",
				rows, cols, MaxDim, MaxDim),
		}
	}

	s, err := sim.MakeBuilder().
		WithName(fmt.Sprintf("transpose_%dx%d", rows, cols)).
		WithGeometry(g).
		Build()
	if err != nil {
		return Evaluation{}, err
	}

	recorder := trace.NewRecorder()

	a := NewMatrix(rows, cols, BaseA, recorder)
	a.Fill(func(i, j int) int32 { return int32(i*cols + j) })
	b := NewMatrix(cols, rows, BaseB, recorder)

	f(a, b)

	if !IsTranspose(a, b) {
		return Evaluation{}, fmt.Errorf("%dx%d: %w", rows, cols, ErrNotTranspose)
	}

	stats, err := s.Run(recorder.Source())
	if err != nil {
		return Evaluation{}, err
	}

	return Evaluation{
		Rows:    rows,
		Cols:    cols,
		Stats:   stats,
		Records: recorder.Records(),
	}, nil
}
