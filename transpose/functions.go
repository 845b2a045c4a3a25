package transpose

import (
	"fmt"
	"sort"
	"sync"
)

// Func writes the transpose of a into b. b must have a.Cols() rows and
// a.Rows() columns.
type Func func(a, b *Matrix)

// Baseline is a simple row-wise scan that ignores the cache.
func Baseline(a, b *Matrix) {
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			b.Set(j, i, a.At(i, j))
		}
	}
}

// Blocked transposes size x size blocks at a time. Inside diagonal blocks
// the diagonal element of each row is kept in a local and written after the
// rest of the row, so that the row of a is not evicted by the write to b.
func Blocked(size int) Func {
	if size < 1 {
		panic(fmt.Sprintf("block size %d must be positive", size))
	}

	return func(a, b *Matrix) {
		rows, cols := a.Rows(), a.Cols()

		for col := 0; col < cols; col += size {
			for row := 0; row < rows; row += size {
				transposeBlock(a, b, row, col, size)
			}
		}
	}
}

func transposeBlock(a, b *Matrix, row, col, size int) {
	rowEnd := min(row+size, a.Rows())
	colEnd := min(col+size, a.Cols())

	for i := row; i < rowEnd; i++ {
		var diagonal int32
		hasDiagonal := false

		for j := col; j < colEnd; j++ {
			if i == j {
				diagonal = a.At(i, j)
				hasDiagonal = true

				continue
			}

			b.Set(j, i, a.At(i, j))
		}

		if hasDiagonal {
			b.Set(i, i, diagonal)
		}
	}
}

// Submit picks the block size tuned for the shape of a.
func Submit(a, b *Matrix) {
	Blocked(submitBlockSize(a.Rows(), a.Cols()))(a, b)
}

func submitBlockSize(rows, cols int) int {
	switch {
	case rows == 32 && cols == 32:
		return 8
	case rows == 64 && cols == 64:
		return 4
	default:
		return 16
	}
}

// Function is a named transpose function.
type Function struct {
	Name        string
	Description string
	Transpose   Func
}

var (
	registryLock sync.Mutex
	registry     = map[string]Function{}
)

// Register makes a function available by name. Registering a name twice
// panics.
func Register(name, description string, f Func) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("transpose function %s already registered", name))
	}

	registry[name] = Function{Name: name, Description: description, Transpose: f}
}

// Lookup finds a registered function.
func Lookup(name string) (Function, bool) {
	registryLock.Lock()
	defer registryLock.Unlock()

	f, ok := registry[name]

	return f, ok
}

// Functions lists the registered functions sorted by name.
func Functions() []Function {
	registryLock.Lock()
	defer registryLock.Unlock()

	functions := make([]Function, 0, len(registry))
	for _, f := range registry {
		functions = append(functions, f)
	}

	sort.Slice(functions, func(i, j int) bool {
		return functions[i].Name < functions[j].Name
	})

	return functions
}

func init() {
	Register("submit", "Transpose submission", Submit)
	Register("baseline", "Simple row-wise scan transpose", Baseline)
	Register("blocked8", "Transpose in 8x8 blocks", Blocked(8))
	Register("blocked4", "Transpose in 4x4 blocks", Blocked(4))
}
