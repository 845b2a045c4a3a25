package trace

import (
	"bufio"
	"fmt"
	"io"
)

// Writer emits records in the trace file format. Data accesses are indented
// by one space, as in traces produced by valgrind's lackey tool.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a writer on top of w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits one record.
func (w *Writer) Write(rec Record) error {
	indent := " "
	if rec.Op == Instruction {
		indent = ""
	}

	_, err := fmt.Fprintf(w.w, "%s%s\n", indent, rec)

	return err
}

// WriteAll emits every record in order.
func (w *Writer) WriteAll(records []Record) error {
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
