package recall

import (
	"math"
	"strings"
	"time"

	"github.com/personacore/persona-memory/internal/model"
)

// Fusion weights for the composite score.
const (
	weightSalience    = 0.20
	weightRetrieval   = 0.18
	weightAffinity    = 0.15
	weightState       = 0.10
	weightLexical     = 0.18
	weightVector      = 0.18
	weightRecency     = 0.05
	weightCredibility = 0.20

	queryMissPenalty     = 0.2
	maxKeywordBoost      = 0.2
	maxRepetitionPenalty = 0.12
)

// Memory-strength half-lives in days, by type.
var halfLifeDays = map[string]float64{
	"episodic":   14,
	"procedural": 30,
	"relational": 45,
	"semantic":   60,
}

// Base type weights for the type/intent affinity term.
var typeBaseWeight = map[string]float64{
	"episodic":   0.30,
	"semantic":   0.40,
	"relational": 0.50,
	"procedural": 0.35,
}

// intentTypeBonus is the affinity bonus added when an active intent tag
// matches the memory type.
var intentTypeBonus = map[string]map[string]float64{
	IntentIdentity:     {"semantic": 0.30, "relational": 0.20},
	IntentRelationship: {"relational": 0.35},
	IntentProcedural:   {"procedural": 0.35},
	IntentPreference:   {"semantic": 0.25},
	IntentFactual:      {"semantic": 0.20},
	IntentEmotional:    {"episodic": 0.30},
}

// Lifecycle-state weights.
var stateWeight = map[string]float64{
	"hot":     1.0,
	"scar":    0.9,
	"warm":    0.75,
	"cold":    0.35,
	"archive": 0.2,
}

// emphasisMarkers flag explicit "remember this" style content.
var emphasisMarkers = []string{
	"remember", "always", "never forget", "important", "must",
	"记住", "一定", "务必", "必须", "重要", "永远",
}

// scoredCandidate carries a candidate through scoring, diversity
// re-ranking, and budget selection.
type scoredCandidate struct {
	cand      Candidate
	score     float64
	breakdown model.ScoreBreakdown
	hits      int
	tokens    map[string]struct{}
	reason    string
	penalized bool
}

// scoreInput is the per-call context the scorer needs.
type scoreInput struct {
	keywords []string
	intents  []string
	now      time.Time
	// repeats counts appearances per memory ID across the selections of
	// the last recall calls.
	repeats map[string]int
}

// scoreCandidate computes the composite score and its full breakdown.
func scoreCandidate(c Candidate, in scoreInput) *scoredCandidate {
	m := c.Memory
	bd := model.ScoreBreakdown{}

	bd.Salience = clamp01(m.Salience)

	ageDays := ageInDays(m, in.now)
	bd.RetrievalStrength = retrievalStrength(m, ageDays)
	bd.TypeAffinity = typeAffinity(m.Type, in.intents)
	bd.StateWeight = stateWeightFor(m.State)

	hits := keywordHits(m.Content, in.keywords)
	if len(in.keywords) > 0 {
		bd.LexicalRatio = float64(hits) / float64(len(in.keywords))
	}
	if c.HasVector {
		bd.VectorSimilarity = clamp01(c.VectorScore)
	}
	bd.Recency = 1 / (1 + ageDays/7)
	bd.Credibility = clamp01(m.CredibilityScore)

	score := bd.Salience*weightSalience +
		bd.RetrievalStrength*weightRetrieval +
		bd.TypeAffinity*weightAffinity +
		bd.StateWeight*weightState +
		bd.LexicalRatio*weightLexical +
		bd.VectorSimilarity*weightVector +
		bd.Recency*weightRecency +
		bd.Credibility*weightCredibility

	if hits > 0 {
		bd.KeywordBoost = math.Min(maxKeywordBoost, 0.08+0.03*float64(hits))
	}
	bd.EmphasisBoost = emphasisBoost(m, bd.TypeAffinity > typeBaseWeight[m.Type], hits)

	score = clamp01(score + bd.KeywordBoost + bd.EmphasisBoost)

	bd.OriginDiscount = originDiscount(m.OriginRole)
	score *= bd.OriginDiscount

	if n := in.repeats[m.ID]; n > 0 {
		bd.RepetitionPenalty = math.Min(maxRepetitionPenalty, 0.02*float64(n))
		score -= bd.RepetitionPenalty
	}
	if len(in.keywords) > 0 && hits == 0 {
		bd.QueryMissPenalty = queryMissPenalty
		score -= queryMissPenalty
	}

	return &scoredCandidate{
		cand:      c,
		score:     clamp01(score),
		breakdown: bd,
		hits:      hits,
		tokens:    tokenSet(m.Content),
	}
}

func ageInDays(m model.Memory, now time.Time) float64 {
	ref := m.CreatedAt
	if m.LastActivatedAt != nil && m.LastActivatedAt.After(ref) {
		ref = *m.LastActivatedAt
	}
	days := now.Sub(ref).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// retrievalStrength blends log-scaled activation frequency with an
// exponential age decay whose half-life depends on the memory type.
func retrievalStrength(m model.Memory, ageDays float64) float64 {
	count := float64(m.ActivationCount)
	if count < 1 {
		count = 1
	}
	if count > 200 {
		count = 200
	}
	frequency := math.Log(1+count) / math.Log(201)

	halfLife, ok := halfLifeDays[m.Type]
	if !ok {
		halfLife = 30
	}
	decay := math.Exp(-math.Ln2 * ageDays / halfLife)

	return clamp01(0.55*frequency + 0.45*decay)
}

func typeAffinity(memType string, intents []string) float64 {
	affinity := typeBaseWeight[memType]
	best := 0.0
	for _, intent := range intents {
		if bonus := intentTypeBonus[intent][memType]; bonus > best {
			best = bonus
		}
	}
	return clamp01(affinity + best)
}

func stateWeightFor(state string) float64 {
	if w, ok := stateWeight[state]; ok {
		return w
	}
	return 0.5
}

// emphasisBoost rewards user-authored content carrying an explicit emphasis
// marker, scaled up when the query intent matches the memory type and when
// keywords hit.
func emphasisBoost(m model.Memory, intentMatch bool, hits int) float64 {
	if m.OriginRole != "user" || !hasEmphasisMarker(m.Content) {
		return 0
	}
	switch {
	case intentMatch && hits > 0:
		return 0.16
	case intentMatch || hits > 0:
		return 0.10
	default:
		return 0.08
	}
}

func hasEmphasisMarker(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range emphasisMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func originDiscount(role string) float64 {
	switch role {
	case "assistant":
		return 0.88
	case "system":
		return 0.92
	default:
		return 1.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
