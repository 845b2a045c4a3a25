package trace

// Recorder collects records produced by an instrumented program.
type Recorder struct {
	records []Record
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a record.
func (r *Recorder) Record(rec Record) {
	r.records = append(r.records, rec)
}

// Records returns the collected records in order.
func (r *Recorder) Records() []Record {
	return r.records
}

// Len returns the number of collected records.
func (r *Recorder) Len() int {
	return len(r.records)
}

// Source replays the collected records.
func (r *Recorder) Source() *SliceSource {
	return NewSliceSource(r.records)
}
