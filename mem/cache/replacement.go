package cache

// Outcome is the result of presenting one tag to a set.
type Outcome int

// The three ways a replacement step can end.
const (
	Hit Outcome = iota
	MissFill
	MissEvict
)

// String returns the wording used in verbose traces.
func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case MissFill:
		return "miss"
	case MissEvict:
		return "miss eviction"
	default:
		return "unknown"
	}
}

// IsMiss returns true if the tag was not resident.
func (o Outcome) IsMiss() bool {
	return o != Hit
}

// A StepResult describes what one replacement step did to a set.
type StepResult struct {
	Outcome   Outcome
	SetID     uint64
	WayID     int
	Tag       uint64
	VictimTag uint64
}

// ReplacementEngine applies one access to a set, updating the line that
// receives or already holds the tag.
type ReplacementEngine struct {
	victimFinder VictimFinder
}

// NewReplacementEngine creates a replacement engine. A nil victim finder
// selects LRU replacement.
func NewReplacementEngine(victimFinder VictimFinder) *ReplacementEngine {
	if victimFinder == nil {
		victimFinder = NewLRUVictimFinder()
	}

	return &ReplacementEngine{
		victimFinder: victimFinder,
	}
}

// Step looks up the tag in the set at clock value now. On a hit only the
// matching block is touched. On a miss the block chosen by the victim finder
// is overwritten.
func (e *ReplacementEngine) Step(set *Set, tag uint64, now uint64) StepResult {
	if block, found := set.Lookup(tag); found {
		block.UseOrder = now

		return StepResult{
			Outcome: Hit,
			SetID:   block.SetID,
			WayID:   block.WayID,
			Tag:     tag,
		}
	}

	block, evict := e.victimFinder.FindVictim(set)

	result := StepResult{
		Outcome: MissFill,
		SetID:   block.SetID,
		WayID:   block.WayID,
		Tag:     tag,
	}

	if evict {
		result.Outcome = MissEvict
		result.VictimTag = block.Tag
	}

	block.IsValid = true
	block.Tag = tag
	block.UseOrder = now

	return result
}
