package model

import "time"

// Selection reasons recorded per scored candidate.
const (
	ReasonSelected         = "selected"
	ReasonRerankBudget     = "rerank_budget"
	ReasonInjectItemBudget = "inject_item_budget"
	ReasonInjectCharBudget = "inject_char_budget"
)

// Candidate source channels.
const (
	SourceSalience = "salience"
	SourceFTS      = "fts"
	SourceVector   = "vector"
	SourceHybrid   = "hybrid"
)

// ScoreBreakdown records every term that contributed to a candidate's score.
type ScoreBreakdown struct {
	Salience          float64 `json:"salience"`
	RetrievalStrength float64 `json:"retrieval_strength"`
	TypeAffinity      float64 `json:"type_affinity"`
	StateWeight       float64 `json:"state_weight"`
	LexicalRatio      float64 `json:"lexical_ratio"`
	VectorSimilarity  float64 `json:"vector_similarity"`
	Recency           float64 `json:"recency"`
	Credibility       float64 `json:"credibility"`
	KeywordBoost      float64 `json:"keyword_boost"`
	EmphasisBoost     float64 `json:"emphasis_boost"`
	OriginDiscount    float64 `json:"origin_discount"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	QueryMissPenalty  float64 `json:"query_miss_penalty"`
}

// CandidateScore is one scored candidate as persisted in a recall trace.
type CandidateScore struct {
	ID                      string         `json:"id"`
	Score                   float64        `json:"score"`
	Reason                  string         `json:"reason"`
	CandidateSource         string         `json:"candidateSource"`
	KeywordHits             int            `json:"keywordHits"`
	DiversityPenaltyApplied bool           `json:"diversityPenaltyApplied"`
	ScoreBreakdown          ScoreBreakdown `json:"scoreBreakdown"`
}

// BudgetSnapshot records configured limits and observed counts for one call.
type BudgetSnapshot struct {
	CandidateMax  int      `json:"candidateMax"`
	RerankMax     int      `json:"rerankMax"`
	InjectMax     int      `json:"injectMax"`
	InjectCharMax int      `json:"injectCharMax"`
	Candidates    int      `json:"candidates"`
	Reranked      int      `json:"reranked"`
	Injected      int      `json:"injected"`
	InjectedChars int      `json:"injectedChars"`
	Intents       []string `json:"intents"`
}

// RecallTrace is the immutable audit record of one recall call.
type RecallTrace struct {
	ID          string           `json:"id"`
	Query       string           `json:"query"`
	SelectedIDs []string         `json:"selectedIds"`
	Scores      []CandidateScore `json:"scores"`
	Budget      BudgetSnapshot   `json:"budget"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// MemoryBlock is one rendered memory handed to the response generator.
type MemoryBlock struct {
	ID               string `json:"id"`
	Source           string `json:"source"`
	Content          string `json:"content"`
	UncertaintyLevel string `json:"uncertaintyLevel"`
}
