// Package tracing provides simulator hooks that report what every access did
// to the cache, either as human-readable lines or as database rows.
package tracing

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/csim/datarecording"
	"github.com/sarchlab/csim/mem/cache"
	"github.com/sarchlab/csim/mem/trace"
	"github.com/sarchlab/csim/sim"
)

// Names of the tables the AccessTracer writes.
const (
	AccessTable  = "cache_accesses"
	SummaryTable = "cache_summaries"
)

// accessEntry represents one replacement step in the database. Addresses,
// set indices and tags are stored as hex strings since SQLite integers are
// signed.
type accessEntry struct {
	Simulation string
	Step       uint64
	Op         string
	Address    string
	Size       int
	SetID      string
	WayID      int
	Tag        string
	Outcome    string
	VictimTag  string
}

// summaryEntry represents the final counters of one simulation.
type summaryEntry struct {
	ID         string
	Simulation string
	SetBits    int
	NumWays    int
	BlockBits  int
	Records    uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
}

type namedHookable interface {
	sim.Hookable
	Name() string
}

// AccessTracer is a hook that records every replacement step of the
// simulators it is attached to.
type AccessTracer struct {
	dataRecorder datarecording.DataRecorder
	steps        map[string]uint64
}

// NewAccessTracer creates the access and summary tables and returns a tracer
// that fills them.
func NewAccessTracer(dataRecorder datarecording.DataRecorder) *AccessTracer {
	t := &AccessTracer{
		dataRecorder: dataRecorder,
		steps:        make(map[string]uint64),
	}

	t.dataRecorder.CreateTable(AccessTable, accessEntry{})
	t.dataRecorder.CreateTable(SummaryTable, summaryEntry{})

	return t
}

// Func records the step if the hook is invoked after a replacement step.
func (t *AccessTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosStep {
		return
	}

	rec, ok := ctx.Item.(trace.Record)
	if !ok {
		return
	}

	step, ok := ctx.Detail.(cache.StepResult)
	if !ok {
		return
	}

	name := ""
	if domain, ok := ctx.Domain.(namedHookable); ok {
		name = domain.Name()
	}

	t.steps[name]++

	entry := accessEntry{
		Simulation: name,
		Step:       t.steps[name],
		Op:         rec.Op.String(),
		Address:    hex(rec.Address),
		Size:       rec.Size,
		SetID:      hex(step.SetID),
		WayID:      step.WayID,
		Tag:        hex(step.Tag),
		Outcome:    step.Outcome.String(),
	}

	if step.Outcome == cache.MissEvict {
		entry.VictimTag = hex(step.VictimTag)
	}

	t.dataRecorder.InsertData(AccessTable, entry)
}

// RecordSummary stores the final counters of a simulation.
func (t *AccessTracer) RecordSummary(snapshot sim.Snapshot) {
	entry := summaryEntry{
		ID:         xid.New().String(),
		Simulation: snapshot.Name,
		SetBits:    snapshot.Geometry.SetBits,
		NumWays:    snapshot.Geometry.NumWays,
		BlockBits:  snapshot.Geometry.BlockBits,
		Records:    snapshot.Records,
		Hits:       snapshot.Stats.Hits,
		Misses:     snapshot.Stats.Misses,
		Evictions:  snapshot.Stats.Evictions,
	}

	t.dataRecorder.InsertData(SummaryTable, entry)
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
