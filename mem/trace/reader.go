package trace

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxLineLength is the longest trace line the reader accepts, in bytes.
// Well-formed records are far shorter.
const MaxLineLength = 4096

// A Source provides records one at a time. Next returns io.EOF after the
// last record.
type Source interface {
	Next() (Record, error)
}

// Reader parses records from a trace stream. It stops at the first malformed
// line and reports it as a *MalformedRecordError.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	path    string
	line    int
}

// NewReader creates a reader that parses records from r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), MaxLineLength)

	return &Reader{
		scanner: scanner,
		path:    "<stream>",
	}
}

// Open opens a trace file. Failures are reported as *IOError.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	r := NewReader(f)
	r.closer = f
	r.path = path

	return r, nil
}

// Next returns the next record. Blank lines are skipped.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}

		rec, err := ParseRecord(text)
		if err != nil {
			return Record{}, &MalformedRecordError{
				Line: r.line,
				Text: text,
				Err:  err,
			}
		}

		return rec, nil
	}

	err := r.scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		return Record{}, &MalformedRecordError{
			Line: r.line + 1,
			Err:  ErrLineTooLong,
		}
	}

	if err != nil {
		return Record{}, &IOError{Path: r.path, Err: err}
	}

	return Record{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// Close closes the underlying file if the reader opened it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

// ParseRecord parses a single trace line such as " L 7ff000398,8".
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, ErrUnknownOp
	}

	op, ok := ParseOp(line[0])
	if !ok {
		return Record{}, ErrUnknownOp
	}

	rest := line[1:]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return Record{}, ErrUnknownOp
	}

	addrText, sizeText, found := strings.Cut(strings.TrimSpace(rest), ",")
	if !found {
		return Record{}, ErrMissingSize
	}

	addrText = strings.TrimPrefix(strings.TrimPrefix(addrText, "0x"), "0X")
	addr, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return Record{}, ErrBadAddress
	}

	size, err := strconv.Atoi(strings.TrimSpace(sizeText))
	if err != nil || size < 0 {
		return Record{}, ErrBadSize
	}

	return Record{Op: op, Address: addr, Size: size}, nil
}

// ReadAll drains a source into a slice.
func ReadAll(src Source) ([]Record, error) {
	var records []Record

	for {
		rec, err := src.Next()
		if err == io.EOF {
			return records, nil
		}

		if err != nil {
			return records, err
		}

		records = append(records, rec)
	}
}

// SliceSource replays records held in memory.
type SliceSource struct {
	records []Record
	next    int
}

// NewSliceSource creates a source over the given records. The slice is read
// but never modified, so several sources may share it.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record.
func (s *SliceSource) Next() (Record, error) {
	if s.next >= len(s.records) {
		return Record{}, io.EOF
	}

	rec := s.records[s.next]
	s.next++

	return rec, nil
}
