// Package transpose instruments matrix transposition so that its memory
// accesses can be scored on a simulated cache.
package transpose

import (
	"fmt"

	"github.com/sarchlab/csim/mem/trace"
)

// ElementSize is the size of a matrix element in bytes.
const ElementSize = 4

// Matrix is a row-major matrix of int32 placed at a fixed address. Reads
// through At emit loads and writes through Set emit stores.
type Matrix struct {
	rows, cols int
	base       uint64
	data       []int32
	recorder   *trace.Recorder
}

// NewMatrix creates a zeroed matrix. A nil recorder disables tracing.
func NewMatrix(rows, cols int, base uint64, recorder *trace.Recorder) *Matrix {
	return &Matrix{
		rows:     rows,
		cols:     cols,
		base:     base,
		data:     make([]int32, rows*cols),
		recorder: recorder,
	}
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return m.rows
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	return m.cols
}

// Base returns the address of the first element.
func (m *Matrix) Base() uint64 {
	return m.base
}

// Address returns the address of element (i, j).
func (m *Matrix) Address(i, j int) uint64 {
	return m.base + uint64(m.index(i, j))*ElementSize
}

// At reads element (i, j).
func (m *Matrix) At(i, j int) int32 {
	m.emit(trace.Load, i, j)
	return m.data[m.index(i, j)]
}

// Set writes element (i, j).
func (m *Matrix) Set(i, j int, v int32) {
	m.emit(trace.Store, i, j)
	m.data[m.index(i, j)] = v
}

// Fill initializes every element without emitting records.
func (m *Matrix) Fill(f func(i, j int) int32) {
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			m.data[m.index(i, j)] = f(i, j)
		}
	}
}

func (m *Matrix) peek(i, j int) int32 {
	return m.data[m.index(i, j)]
}

func (m *Matrix) index(i, j int) int {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("element (%d, %d) out of a %dx%d matrix",
			i, j, m.rows, m.cols))
	}

	return i*m.cols + j
}

func (m *Matrix) emit(op trace.Op, i, j int) {
	if m.recorder == nil {
		return
	}

	m.recorder.Record(trace.Record{
		Op:      op,
		Address: m.Address(i, j),
		Size:    ElementSize,
	})
}

// IsTranspose checks that b is the transpose of a. It does not emit
// records.
func IsTranspose(a, b *Matrix) bool {
	if a.rows != b.cols || a.cols != b.rows {
		return false
	}

	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			if a.peek(i, j) != b.peek(j, i) {
				return false
			}
		}
	}

	return true
}
