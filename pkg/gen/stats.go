package gen

// Mode returns the most frequently occurring value in src, and how many
// times it occurs. Ties go to the value that reached the winning count
// first. An empty slice yields the zero value and a count of 0.
func Mode[T comparable](src []T) (T, int) {
	var best T
	bestN := 0
	seen := map[T]int{}
	for _, v := range src {
		seen[v]++
		if seen[v] > bestN {
			best = v
			bestN = seen[v]
		}
	}
	return best, bestN
}
