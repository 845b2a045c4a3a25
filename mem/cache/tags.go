package cache

import "fmt"

// TagArray holds the residency state of every line in a cache. Sets are
// allocated when they are first used, so the memory a tag array needs grows
// with the sets a trace touches rather than with 2^s.
type TagArray interface {
	// Geometry returns the shape of the tag array.
	Geometry() Geometry

	// Set returns the set at the given index, creating it on first use.
	Set(setID uint64) *Set

	// NumAllocatedSets returns how many sets have been used so far.
	NumAllocatedSets() int

	// Reset drops every set, leaving all the lines invalid.
	Reset()
}

// NewTagArray creates a tag array with every line invalid. The geometry must
// have been validated.
func NewTagArray(g Geometry) TagArray {
	t := &tagArrayImpl{
		geometry: g,
	}

	t.Reset()

	return t
}

// A Block is the state of one cache line.
type Block struct {
	SetID    uint64
	WayID    int
	Tag      uint64
	IsValid  bool
	UseOrder uint64
}

// A Set is the list of blocks where a certain piece of memory can be stored.
// Blocks are appended as lines are filled, up to NumWays. Blocks that were
// never filled are not materialized.
type Set struct {
	ID      uint64
	NumWays int
	Blocks  []Block
}

// Lookup returns the valid block that holds the tag.
func (s *Set) Lookup(tag uint64) (*Block, bool) {
	for i := range s.Blocks {
		block := &s.Blocks[i]
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return nil, false
}

// NumValid returns the number of valid blocks in the set.
func (s *Set) NumValid() int {
	n := 0

	for _, block := range s.Blocks {
		if block.IsValid {
			n++
		}
	}

	return n
}

// AllocateBlock appends an invalid block in the next way. It returns false
// when all NumWays blocks exist. The returned pointer is only valid until the
// next allocation.
func (s *Set) AllocateBlock() (*Block, bool) {
	if len(s.Blocks) >= s.NumWays {
		return nil, false
	}

	s.Blocks = append(s.Blocks, Block{SetID: s.ID, WayID: len(s.Blocks)})

	return &s.Blocks[len(s.Blocks)-1], true
}

const initialWaysPerSet = 16

type tagArrayImpl struct {
	geometry Geometry
	sets     map[uint64]*Set
}

func (t *tagArrayImpl) Geometry() Geometry {
	return t.geometry
}

func (t *tagArrayImpl) Set(setID uint64) *Set {
	if set, ok := t.sets[setID]; ok {
		return set
	}

	if t.geometry.SetBits < AddressBits && setID >= t.geometry.NumSets() {
		panic(fmt.Sprintf("set %d out of %d sets", setID, t.geometry.NumSets()))
	}

	set := &Set{
		ID:      setID,
		NumWays: t.geometry.NumWays,
		Blocks:  make([]Block, 0, min(t.geometry.NumWays, initialWaysPerSet)),
	}
	t.sets[setID] = set

	return set
}

func (t *tagArrayImpl) NumAllocatedSets() int {
	return len(t.sets)
}

func (t *tagArrayImpl) Reset() {
	t.sets = make(map[uint64]*Set)
}
