// Package sim replays memory access traces against a modeled cache and
// counts the outcome of every access.
package sim

import (
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/csim/mem/cache"
	"github.com/sarchlab/csim/mem/trace"
)

// RecordResult lists the replacement steps one record caused. Instruction
// fetches cause none.
type RecordResult struct {
	Record trace.Record
	Steps  []cache.StepResult
}

// Snapshot is a copy of the externally visible state of a simulator.
type Snapshot struct {
	Name     string         `json:"name"`
	Geometry cache.Geometry `json:"geometry"`
	Stats    Stats          `json:"stats"`
	Records  uint64         `json:"records"`
}

// Simulator owns one cache and replays accesses against it. A simulator is
// not safe for concurrent accesses. Stats and Snapshot may be called from
// other goroutines while it runs.
type Simulator struct {
	*HookableBase

	name     string
	geometry cache.Geometry
	tags     cache.TagArray
	engine   *cache.ReplacementEngine
	logger   *zap.Logger

	clock uint64

	statsLock sync.Mutex
	stats     Stats
	records   uint64
}

// Name returns the name of the simulator.
func (s *Simulator) Name() string {
	return s.name
}

// Geometry returns the shape of the simulated cache.
func (s *Simulator) Geometry() cache.Geometry {
	return s.geometry
}

// Tags returns the tag array of the simulated cache.
func (s *Simulator) Tags() cache.TagArray {
	return s.tags
}

// Stats returns a copy of the counters.
func (s *Simulator) Stats() Stats {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()

	return s.stats
}

// Snapshot returns a copy of the name, geometry and counters.
func (s *Simulator) Snapshot() Snapshot {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()

	return Snapshot{
		Name:     s.name,
		Geometry: s.geometry,
		Stats:    s.stats,
		Records:  s.records,
	}
}

// Access simulates one record. Loads and stores take one replacement step,
// modifies take two on the same address, and instruction fetches are
// ignored.
func (s *Simulator) Access(rec trace.Record) RecordResult {
	result := RecordResult{Record: rec}

	numSteps := rec.Op.Steps()
	if numSteps == 0 {
		return result
	}

	tag, setID := s.geometry.Decompose(rec.Address)
	set := s.tags.Set(setID)

	result.Steps = make([]cache.StepResult, 0, numSteps)
	for i := 0; i < numSteps; i++ {
		s.clock++
		step := s.engine.Step(set, tag, s.clock)
		result.Steps = append(result.Steps, step)

		s.statsLock.Lock()
		s.stats.Add(step.Outcome)
		s.statsLock.Unlock()

		s.invoke(HookPosStep, rec, step)
	}

	s.statsLock.Lock()
	s.records++
	s.statsLock.Unlock()

	s.invoke(HookPosRecord, rec, result)

	return result
}

func (s *Simulator) invoke(pos *HookPos, item, detail interface{}) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

// Run simulates every record of the source. It stops at the first error
// returned by the source other than io.EOF and returns that error.
func (s *Simulator) Run(src trace.Source) (Stats, error) {
	s.logger.Debug("simulation started",
		zap.String("name", s.name),
		zap.Stringer("geometry", s.geometry),
		zap.Uint64("capacity", s.geometry.Capacity()))

	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			s.logger.Error("simulation aborted",
				zap.String("name", s.name),
				zap.Error(err))

			return s.Stats(), err
		}

		s.Access(rec)
	}

	stats := s.Stats()

	s.logger.Debug("simulation finished",
		zap.String("name", s.name),
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Uint64("evictions", stats.Evictions),
		zap.Int("sets", s.tags.NumAllocatedSets()))

	return stats, nil
}
