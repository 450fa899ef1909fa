package planner

// =============================================================================
// EVEN SPLIT - Shared by per-day worker spreads, hour spreads and derivation
// =============================================================================

// splitEvenly distributes total across slots, never exceeding a slot's limit.
// Every open slot gets the same share; what does not divide evenly goes one
// unit at a time to the earliest open slots. Returns the shares and whatever
// could not be placed.
func splitEvenly(total int, limits []int) ([]int, int) {
	shares := make([]int, len(limits))
	remaining := total
	for remaining > 0 {
		open := make([]int, 0, len(limits))
		for i, limit := range limits {
			if shares[i] < limit {
				open = append(open, i)
			}
		}
		if len(open) == 0 {
			break
		}
		each := remaining / len(open)
		if each == 0 {
			for _, i := range open[:remaining] {
				shares[i]++
			}
			remaining = 0
			break
		}
		for _, i := range open {
			give := min(each, limits[i]-shares[i])
			shares[i] += give
			remaining -= give
		}
	}
	return shares, remaining
}

// unbounded returns n limits that never cap a split of total.
func unbounded(n, total int) []int {
	limits := make([]int, n)
	for i := range limits {
		limits[i] = total
	}
	return limits
}
