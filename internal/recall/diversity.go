package recall

import "sort"

const (
	diversityThreshold = 0.85
	diversityPenalty   = 0.08
)

// applyDiversity re-ranks scored candidates, penalizing near-duplicates.
// Walking the score-descending list, a candidate whose token set overlaps an
// already-accepted higher candidate beyond the Jaccard threshold takes one
// flat penalty (never cumulative), then the list is re-sorted. The pass only
// ever lowers rank.
func applyDiversity(scored []*scoredCandidate) {
	sortByScore(scored)

	var accepted []*scoredCandidate
	for _, sc := range scored {
		for _, prev := range accepted {
			if jaccard(sc.tokens, prev.tokens) > diversityThreshold {
				sc.score = clamp01(sc.score - diversityPenalty)
				sc.penalized = true
				break
			}
		}
		accepted = append(accepted, sc)
	}

	sortByScore(scored)
}

func sortByScore(scored []*scoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
}
