package trace

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOp is returned for lines that do not start with I, L, S or M.
	ErrUnknownOp = errors.New("unknown operation")

	// ErrMissingSize is returned for lines without a ",<length>" suffix.
	ErrMissingSize = errors.New("missing access length")

	// ErrBadAddress is returned for addresses that are not hexadecimal.
	ErrBadAddress = errors.New("invalid hexadecimal address")

	// ErrBadSize is returned for lengths that are not non-negative integers.
	ErrBadSize = errors.New("invalid access length")

	// ErrLineTooLong is returned for lines longer than MaxLineLength.
	ErrLineTooLong = errors.New("line too long")
)

// IOError reports a trace file that cannot be opened or read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cannot read trace %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// MalformedRecordError reports a trace line that does not have the shape of
// a record. Line numbers start at 1.
type MalformedRecordError struct {
	Line int
	Text string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
