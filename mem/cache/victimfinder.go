package cache

// A VictimFinder decides which block receives a newly fetched tag.
type VictimFinder interface {
	// FindVictim returns the block to fill and whether a valid block has to
	// be evicted to make room.
	FindVictim(set *Set) (block *Block, evict bool)
}

// LRUVictimFinder fills the first free block, and otherwise evicts the least
// recently used block.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the first invalid block in slot order, allocating the
// next way if the set is not full yet. If all the blocks are valid, it
// returns the one with the smallest use order, lowest way winning ties.
func (e *LRUVictimFinder) FindVictim(set *Set) (*Block, bool) {
	for i := range set.Blocks {
		if !set.Blocks[i].IsValid {
			return &set.Blocks[i], false
		}
	}

	if block, ok := set.AllocateBlock(); ok {
		return block, false
	}

	return leastRecentlyUsed(set), true
}

func leastRecentlyUsed(set *Set) *Block {
	victim := &set.Blocks[0]

	for i := 1; i < len(set.Blocks); i++ {
		if set.Blocks[i].UseOrder < victim.UseOrder {
			victim = &set.Blocks[i]
		}
	}

	return victim
}
