// Package cache models the state of a set-associative cache: which tags are
// resident in which set, and which line gets replaced on a miss.
package cache

import (
	"errors"
	"fmt"
	"math"
)

// AddressBits is the width of the addresses the cache decomposes.
const AddressBits = 64

var (
	// ErrNoWays is returned when a geometry has fewer than one line per set.
	ErrNoWays = errors.New("number of lines per set must be at least 1")

	// ErrNegativeBits is returned when a geometry has a negative bit count.
	ErrNegativeBits = errors.New("bit counts must not be negative")

	// ErrAddressOverflow is returned when the set-index and block-offset
	// fields do not fit into an address.
	ErrAddressOverflow = errors.New("set-index and block-offset bits exceed address width")
)

// Geometry describes the shape of a cache.
type Geometry struct {
	// SetBits is the number of set-index bits (s). The cache has 2^s sets.
	SetBits int
	// BlockBits is the number of block-offset bits (b). Blocks are 2^b bytes.
	BlockBits int
	// NumWays is the number of lines per set (E).
	NumWays int
}

// Validate checks that the geometry describes a cache that can be built.
func (g Geometry) Validate() error {
	if g.SetBits < 0 || g.BlockBits < 0 {
		return fmt.Errorf("s=%d, b=%d: %w", g.SetBits, g.BlockBits, ErrNegativeBits)
	}

	if g.NumWays < 1 {
		return fmt.Errorf("E=%d: %w", g.NumWays, ErrNoWays)
	}

	if g.SetBits+g.BlockBits > AddressBits {
		return fmt.Errorf("s+b=%d: %w", g.SetBits+g.BlockBits, ErrAddressOverflow)
	}

	return nil
}

// NumSets returns S, the number of sets. It saturates at math.MaxUint64
// when s is 64.
func (g Geometry) NumSets() uint64 {
	if g.SetBits >= AddressBits {
		return math.MaxUint64
	}

	return uint64(1) << uint(g.SetBits)
}

// BlockSize returns B, the number of bytes in a block.
func (g Geometry) BlockSize() uint64 {
	if g.BlockBits >= AddressBits {
		return math.MaxUint64
	}

	return uint64(1) << uint(g.BlockBits)
}

// Capacity returns the number of bytes the cache can hold. It saturates at
// math.MaxUint64.
func (g Geometry) Capacity() uint64 {
	return saturatingMul(saturatingMul(g.NumSets(), uint64(g.NumWays)),
		g.BlockSize())
}

// Decompose splits an address into its tag and set index. The block offset
// is dropped since whole blocks are the unit of residency.
func (g Geometry) Decompose(addr uint64) (tag uint64, setID uint64) {
	setMask := uint64(1)<<uint(g.SetBits) - 1

	setID = (addr >> uint(g.BlockBits)) & setMask
	tag = addr >> uint(g.SetBits+g.BlockBits)

	return tag, setID
}

// String formats the geometry in the command-line flag notation.
func (g Geometry) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", g.SetBits, g.NumWays, g.BlockBits)
}

func saturatingMul(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}

	return a * b
}
