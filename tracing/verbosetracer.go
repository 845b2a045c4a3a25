package tracing

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/csim/sim"
)

// VerboseTracer prints one line per simulated record, listing the outcome of
// each replacement step, e.g. "M 20,1 miss hit".
type VerboseTracer struct {
	w   io.Writer
	err error
}

// NewVerboseTracer creates a tracer that prints to w.
func NewVerboseTracer(w io.Writer) *VerboseTracer {
	return &VerboseTracer{w: w}
}

// Func prints the record if the hook is invoked after a record.
func (t *VerboseTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosRecord || t.err != nil {
		return
	}

	result, ok := ctx.Detail.(sim.RecordResult)
	if !ok {
		return
	}

	outcomes := make([]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		outcomes = append(outcomes, step.Outcome.String())
	}

	_, t.err = fmt.Fprintf(t.w, "%s %s\n",
		result.Record, strings.Join(outcomes, " "))
}

// Err returns the first write error. Printing stops after it.
func (t *VerboseTracer) Err() error {
	return t.err
}
