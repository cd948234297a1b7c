package bulk

import "sort"

// Schedule orders validated rows by the fixed dependency priority so that
// same-file forward references resolve in a single pass. The sort is stable:
// original file order is preserved within a kind. Unrecognized kinds sort
// last (they cannot occur after validation).
func Schedule(rows []Row) []Row {
	ordered := append([]Row(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityOf(ordered[i].Kind) < priorityOf(ordered[j].Kind)
	})
	return ordered
}

func priorityOf(k Kind) int {
	p, ok := kindPriority[k]
	if !ok {
		return len(processingOrder)
	}
	return p
}
