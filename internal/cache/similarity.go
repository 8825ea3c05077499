package cache

import "strings"

// similarity computes the word-set Dice coefficient between two strings.
// Tokens of length <= 2 are dropped. Exact match after lowercasing
// short-circuits to 1.0; if either side has no qualifying tokens the result
// is 0.
func similarity(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1.0
	}

	setA := wordSet(la)
	setB := wordSet(lb)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}

	return 2 * float64(intersection) / float64(len(setA)+len(setB))
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}
