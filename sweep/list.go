package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxListValues is the largest number of values a list may expand to.
const MaxListValues = 4096

// ParseIntList parses comma-separated values and inclusive ranges, such as
// "0-3,6", into the list of integers they cover.
func ParseIntList(text string) ([]int, error) {
	var values []int

	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lowText, highText, isRange := strings.Cut(part, "-")
		low, err := strconv.Atoi(strings.TrimSpace(lowText))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", part, err)
		}

		high := low
		if isRange {
			high, err = strconv.Atoi(strings.TrimSpace(highText))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", part, err)
			}
		}

		if high < low {
			return nil, fmt.Errorf("invalid range %q: end before start", part)
		}

		span := uint64(high) - uint64(low)
		if span >= uint64(MaxListValues-len(values)) {
			return nil, fmt.Errorf("list %q covers more than %d values",
				text, MaxListValues)
		}

		for i := 0; i <= int(span); i++ {
			values = append(values, low+i)
		}
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("no values in %q", text)
	}

	return values, nil
}
