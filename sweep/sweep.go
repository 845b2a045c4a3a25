// Package sweep simulates one trace on many cache geometries at once. Every
// geometry gets its own simulator; only the trace is shared, read-only.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/csim/mem/cache"
	"github.com/sarchlab/csim/mem/trace"
	"github.com/sarchlab/csim/sim"
)

// Space is the cartesian product of the geometry parameters to explore.
type Space struct {
	SetBits   []int
	NumWays   []int
	BlockBits []int
}

// Geometries lists every geometry of the space ordered by s, then E, then b.
// Duplicate values are dropped.
func (s Space) Geometries() []cache.Geometry {
	setBits := uniqueSorted(s.SetBits)
	numWays := uniqueSorted(s.NumWays)
	blockBits := uniqueSorted(s.BlockBits)

	geometries := make([]cache.Geometry, 0,
		len(setBits)*len(numWays)*len(blockBits))

	for _, sb := range setBits {
		for _, e := range numWays {
			for _, bb := range blockBits {
				geometries = append(geometries, cache.Geometry{
					SetBits:   sb,
					NumWays:   e,
					BlockBits: bb,
				})
			}
		}
	}

	return geometries
}

func uniqueSorted(values []int) []int {
	out := append([]int(nil), values...)
	sort.Ints(out)

	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}

	return out[:n]
}

// Result is the outcome of simulating one geometry.
type Result struct {
	Name     string
	Geometry cache.Geometry
	Stats    sim.Stats
}

// String formats the result as one line of a sweep report.
func (r Result) String() string {
	return fmt.Sprintf("%s %s miss-rate:%.4f",
		r.Geometry, r.Stats, r.Stats.MissRate())
}

// ProgressTracker is told when geometries start and finish.
type ProgressTracker interface {
	IncrementInProgress(amount uint64)
	MoveInProgressToFinished(amount uint64)
}

// Runner runs sweeps.
type Runner struct {
	workers  int
	logger   *zap.Logger
	progress ProgressTracker
	onCreate func(s *sim.Simulator)
}

// MakeRunner creates a runner that uses one worker per CPU.
func MakeRunner() Runner {
	return Runner{
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}
}

// WithWorkers limits the number of geometries simulated at the same time.
func (r Runner) WithWorkers(n int) Runner {
	if n < 1 {
		n = 1
	}

	r.workers = n

	return r
}

// WithLogger sets the logger.
func (r Runner) WithLogger(logger *zap.Logger) Runner {
	r.logger = logger
	return r
}

// WithProgressTracker reports the progress of the sweep to p.
func (r Runner) WithProgressTracker(p ProgressTracker) Runner {
	r.progress = p
	return r
}

// WithSimulatorCallback calls f with every simulator before it runs, for
// example to register it with a monitor.
func (r Runner) WithSimulatorCallback(f func(s *sim.Simulator)) Runner {
	r.onCreate = f
	return r
}

// Run simulates the records on every geometry. All geometries are validated
// before any simulation starts. Results keep the order of geometries. The
// first failure cancels the geometries that have not started yet.
func (r Runner) Run(
	ctx context.Context,
	records []trace.Record,
	geometries []cache.Geometry,
) ([]Result, error) {
	for _, g := range geometries {
		if err := g.Validate(); err != nil {
			return nil, &sim.ConfigurationError{
				Field: "geometry " + g.String(),
				Err:   err,
			}
		}
	}

	results := make([]Result, len(geometries))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for i, g := range geometries {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result, err := r.runOne(records, g)
			if err != nil {
				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (r Runner) runOne(records []trace.Record, g cache.Geometry) (Result, error) {
	name := fmt.Sprintf("s%d_E%d_b%d", g.SetBits, g.NumWays, g.BlockBits)

	s, err := sim.MakeBuilder().
		WithName(name).
		WithGeometry(g).
		WithLogger(r.logger).
		Build()
	if err != nil {
		return Result{}, err
	}

	if r.onCreate != nil {
		r.onCreate(s)
	}

	if r.progress != nil {
		r.progress.IncrementInProgress(1)
		defer r.progress.MoveInProgressToFinished(1)
	}

	stats, err := s.Run(trace.NewSliceSource(records))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}

	r.logger.Debug("geometry simulated",
		zap.String("name", name),
		zap.Stringer("stats", stats))

	return Result{Name: name, Geometry: g, Stats: stats}, nil
}
