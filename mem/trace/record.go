// Package trace reads and writes memory access traces. Each line of a trace
// holds one access in the form `<op> <hex-address>,<length>`.
package trace

import "fmt"

// Op is the kind of a memory access.
type Op byte

// Access kinds, named after the letter that marks them in a trace file.
const (
	Instruction Op = 'I'
	Load        Op = 'L'
	Store       Op = 'S'
	Modify      Op = 'M'
)

// ParseOp converts a trace letter into an Op.
func ParseOp(c byte) (Op, bool) {
	switch op := Op(c); op {
	case Instruction, Load, Store, Modify:
		return op, true
	default:
		return 0, false
	}
}

// Steps returns how many cache lookups an access of this kind performs. A
// modify is a load followed by a store to the same address. Instruction
// fetches are not simulated.
func (o Op) Steps() int {
	switch o {
	case Load, Store:
		return 1
	case Modify:
		return 2
	default:
		return 0
	}
}

// String returns the trace letter.
func (o Op) String() string {
	return string(rune(o))
}

// A Record is one access in a trace.
type Record struct {
	Op      Op
	Address uint64
	Size    int
}

// String formats the record the way it appears in verbose output, without
// the leading indentation used for data accesses in trace files.
func (r Record) String() string {
	return fmt.Sprintf("%c %x,%d", byte(r.Op), r.Address, r.Size)
}
