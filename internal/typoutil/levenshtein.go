// Package typoutil finds indexed terms within a small Damerau-Levenshtein
// distance of a query term.
package typoutil

// Distance returns the Damerau-Levenshtein distance (optimal string
// alignment) between a and b, counting runes.
func Distance(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	return DistanceWithin(a, b, max(la, lb))
}

// DistanceWithin is Distance with early termination: any result above
// maxDistance is reported as maxDistance+1.
func DistanceWithin(a, b string, maxDistance int) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	if abs(la-lb) > maxDistance {
		return maxDistance + 1
	}
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Three rows: i-2 is needed for transpositions
	prevPrev := make([]int, lb+1)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d = min(d, prevPrev[j-2]+cost)
			}
			curr[j] = d
			rowMin = min(rowMin, d)
		}
		// Every later cell derives from this row
		if rowMin > maxDistance {
			return maxDistance + 1
		}
		prevPrev, prev, curr = prev, curr, prevPrev
	}

	if prev[lb] > maxDistance {
		return maxDistance + 1
	}
	return prev[lb]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
