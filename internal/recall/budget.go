package recall

import (
	"unicode/utf8"

	"github.com/personacore/persona-memory/internal/model"
)

// Budget defaults and clamp ranges.
const (
	DefaultCandidateMax  = 180
	DefaultRerankMax     = 30
	DefaultInjectMax     = 8
	DefaultInjectCharMax = 2200

	maxCandidateMax  = 300
	maxRerankMax     = 40
	maxInjectMax     = 12
	minInjectCharMax = 200
	maxInjectCharMax = 3600

	reservedKeywordSlots = 2
)

// Budgets holds the four selection budgets for one recall call.
type Budgets struct {
	CandidateMax  int `json:"candidate_max" mapstructure:"candidate_max"`
	RerankMax     int `json:"rerank_max" mapstructure:"rerank_max"`
	InjectMax     int `json:"inject_max" mapstructure:"inject_max"`
	InjectCharMax int `json:"inject_char_max" mapstructure:"inject_char_max"`
}

// DefaultBudgets returns the default budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		CandidateMax:  DefaultCandidateMax,
		RerankMax:     DefaultRerankMax,
		InjectMax:     DefaultInjectMax,
		InjectCharMax: DefaultInjectCharMax,
	}
}

// normalized clamps every budget to its allowed range. The rerank pool is
// always at least as large as the inject count.
func (b Budgets) normalized() Budgets {
	b.CandidateMax = clampInt(b.CandidateMax, 1, maxCandidateMax, DefaultCandidateMax)
	b.RerankMax = clampInt(b.RerankMax, 1, maxRerankMax, DefaultRerankMax)
	b.InjectMax = clampInt(b.InjectMax, 1, maxInjectMax, DefaultInjectMax)
	b.InjectCharMax = clampInt(b.InjectCharMax, minInjectCharMax, maxInjectCharMax, DefaultInjectCharMax)
	if b.RerankMax < b.InjectMax {
		b.RerankMax = b.InjectMax
	}
	return b
}

// merged overlays non-zero override fields onto b.
func (b Budgets) merged(override *Budgets) Budgets {
	if override == nil {
		return b
	}
	if override.CandidateMax > 0 {
		b.CandidateMax = override.CandidateMax
	}
	if override.RerankMax > 0 {
		b.RerankMax = override.RerankMax
	}
	if override.InjectMax > 0 {
		b.InjectMax = override.InjectMax
	}
	if override.InjectCharMax > 0 {
		b.InjectCharMax = override.InjectCharMax
	}
	return b
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// selectBudget picks the injected subset from the diversity-adjusted,
// score-descending candidate list. Up to two slots are reserved for the
// highest-scoring keyword-hit candidates that fit the character budget; the
// rest fill from the rerank pool. Every candidate receives a reason, and
// the returned selection preserves insertion order (reserved first).
func selectBudget(scored []*scoredCandidate, b Budgets) (selected []*scoredCandidate, usedChars int) {
	pool := scored
	if len(pool) > b.RerankMax {
		pool = pool[:b.RerankMax]
		for _, sc := range scored[b.RerankMax:] {
			sc.reason = model.ReasonRerankBudget
		}
	}

	chosen := map[*scoredCandidate]bool{}

	// Reserved slots for keyword-hit candidates.
	reserve := reservedKeywordSlots
	if b.InjectMax < reserve {
		reserve = b.InjectMax
	}
	for _, sc := range pool {
		if reserve == 0 {
			break
		}
		if sc.hits == 0 {
			continue
		}
		size := utf8.RuneCountInString(sc.cand.Memory.Content)
		if usedChars+size > b.InjectCharMax {
			continue
		}
		sc.reason = model.ReasonSelected
		chosen[sc] = true
		selected = append(selected, sc)
		usedChars += size
		reserve--
	}

	// Fill remaining slots from the rerank pool in rank order.
	for _, sc := range pool {
		if chosen[sc] {
			continue
		}
		if len(selected) >= b.InjectMax {
			sc.reason = model.ReasonInjectItemBudget
			continue
		}
		size := utf8.RuneCountInString(sc.cand.Memory.Content)
		if usedChars+size > b.InjectCharMax {
			sc.reason = model.ReasonInjectCharBudget
			continue
		}
		sc.reason = model.ReasonSelected
		chosen[sc] = true
		selected = append(selected, sc)
		usedChars += size
	}

	return selected, usedChars
}
