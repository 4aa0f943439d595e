package icons

import (
	"sort"
	"strconv"
	"strings"
)

// Default target sizes, matching a home screen grid of three icons per row.
const (
	DefaultTargetSize      = 84
	DefaultTargetSizeHiDPI = 142
)

// ParseEdgeLength returns the width of a "WxH" size token. The height is
// ignored. Tokens without an 'x', with nothing before it, or not starting
// with a positive integer are rejected.
func ParseEdgeLength(token string) (int, bool) {
	i := strings.IndexByte(token, 'x')
	if i <= 0 {
		return 0, false
	}

	prefix := token[:i]
	end := 0
	for end < len(prefix) && prefix[end] >= '0' && prefix[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(prefix[:end])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// DefaultTarget returns the target size used when the caller gives none.
func DefaultTarget(ratio float64) int {
	if ratio > 1 {
		return DefaultTargetSizeHiDPI
	}
	return DefaultTargetSize
}

// SelectPreferredSize returns the smallest size >= target, or the largest
// size when none is big enough. sorted must be ascending and non-empty. A
// target <= 0 is replaced by DefaultTarget(ratio).
func SelectPreferredSize(sorted []int, target int, ratio float64) int {
	if target <= 0 {
		target = DefaultTarget(ratio)
	}

	selected := -1
	for i := 0; i < len(sorted) && selected < target; i++ {
		selected = sorted[i]
	}
	return selected
}

// GetSizes builds a SizeTable from every size token of every icon. A size
// declared twice maps to the icon declaring it last.
func GetSizes(icons PlaceIcons) SizeTable {
	table := SizeTable{}
	for _, icon := range icons {
		for _, token := range strings.Fields(strings.Join(icon.Sizes, " ")) {
			n, ok := ParseEdgeLength(token)
			if !ok {
				continue
			}
			table[n] = Candidate{URI: icon.URI, Rel: icon.Rel}
		}
	}
	return table
}

// Sorted returns the table's sizes in ascending order.
func (t SizeTable) Sorted() []int {
	sizes := make([]int, 0, len(t))
	for n := range t {
		sizes = append(sizes, n)
	}
	sort.Ints(sizes)
	return sizes
}

// Best applies SelectPreferredSize to the table. It returns false for an
// empty table.
func (t SizeTable) Best(target int, ratio float64) (Candidate, bool) {
	if len(t) == 0 {
		return Candidate{}, false
	}
	return t[SelectPreferredSize(t.Sorted(), target, ratio)], true
}
