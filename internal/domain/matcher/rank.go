package matcher

import "sort"

// Rank orders candidates by descending score and keeps the first n.
// Equal scores keep their discovery order. A negative n keeps everything.
func Rank(candidates []MatchCandidate, n int) []MatchCandidate {
	ranked := make([]MatchCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
