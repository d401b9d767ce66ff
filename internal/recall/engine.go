package recall

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/personacore/persona-memory/internal/embedding"
	"github.com/personacore/persona-memory/internal/lifecycle"
	"github.com/personacore/persona-memory/internal/model"
	"github.com/personacore/persona-memory/internal/store"
)

// repetitionWindow is how many past recall calls feed the repetition
// penalty.
const repetitionWindow = 6

// Engine is the hybrid recall engine. It owns its query cache and its
// recent-selection window; construct one engine per store.
type Engine struct {
	store    *store.SQLiteStore
	embedder embedding.Embedder
	cache    *QueryCache
	budgets  Budgets
	now      func() time.Time

	mu     sync.Mutex
	recent [][]string
}

// Options configures an Engine.
type Options struct {
	// Cache to use; a fresh default cache is created when nil.
	Cache *QueryCache
	// Budgets defaults for calls without overrides.
	Budgets Budgets
	// Clock override for tests.
	Clock func() time.Time
}

// New creates an engine over a store. The embedder may be nil, which
// disables the vector channel.
func New(s *store.SQLiteStore, emb embedding.Embedder, opts Options) *Engine {
	e := &Engine{
		store:    s,
		embedder: emb,
		cache:    opts.Cache,
		budgets:  opts.Budgets,
		now:      opts.Clock,
	}
	if e.cache == nil {
		e.cache = NewQueryCache(DefaultCacheMaxBytes, DefaultCacheTTL, opts.Clock)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if (e.budgets == Budgets{}) {
		e.budgets = DefaultBudgets()
	}
	return e
}

// Result is the outcome of a recall call.
type Result struct {
	Memories     []string            `json:"memories"`
	MemoryBlocks []model.MemoryBlock `json:"memoryBlocks"`
	SelectedIDs  []string            `json:"selectedIds"`
	TraceID      string              `json:"traceId"`
	Trace        *model.RecallTrace  `json:"trace"`
}

// RecallWithTrace runs the full recall pipeline for a query: intent tagging
// and keyword extraction, cached merged-candidate fetch, scoring, diversity
// re-ranking, budget selection, trace persistence, and reinforcement of the
// selected memories.
func (e *Engine) RecallWithTrace(ctx context.Context, query string, overrides *Budgets) (*Result, error) {
	b := e.budgets.merged(overrides).normalized()
	intents := TagIntents(query)
	keywords := ExtractKeywords(query)
	now := e.now()

	candidates, err := e.fetchCandidates(ctx, query, keywords, b)
	if err != nil {
		return nil, err
	}

	scored := make([]*scoredCandidate, 0, len(candidates))
	in := scoreInput{keywords: keywords, intents: intents, now: now, repeats: e.repeatCounts()}
	for _, c := range candidates {
		scored = append(scored, scoreCandidate(c, in))
	}

	applyDiversity(scored)
	selected, usedChars := selectBudget(scored, b)

	trace := &model.RecallTrace{
		ID:          e.store.NewID(),
		Query:       query,
		SelectedIDs: []string{},
		Scores:      make([]model.CandidateScore, 0, len(scored)),
		Budget: model.BudgetSnapshot{
			CandidateMax:  b.CandidateMax,
			RerankMax:     b.RerankMax,
			InjectMax:     b.InjectMax,
			InjectCharMax: b.InjectCharMax,
			Candidates:    len(candidates),
			Reranked:      min(len(scored), b.RerankMax),
			Injected:      len(selected),
			InjectedChars: usedChars,
			Intents:       intents,
		},
		CreatedAt: now,
	}

	result := &Result{
		Memories:     []string{},
		MemoryBlocks: []model.MemoryBlock{},
		SelectedIDs:  []string{},
		TraceID:      trace.ID,
		Trace:        trace,
	}

	for _, sc := range selected {
		m := sc.cand.Memory
		result.Memories = append(result.Memories, m.Content)
		result.MemoryBlocks = append(result.MemoryBlocks, renderBlock(m, sc.cand.Source))
		result.SelectedIDs = append(result.SelectedIDs, m.ID)
		trace.SelectedIDs = append(trace.SelectedIDs, m.ID)
	}
	for _, sc := range scored {
		trace.Scores = append(trace.Scores, model.CandidateScore{
			ID:                      sc.cand.Memory.ID,
			Score:                   sc.score,
			Reason:                  sc.reason,
			CandidateSource:         sc.cand.Source,
			KeywordHits:             sc.hits,
			DiversityPenaltyApplied: sc.penalized,
			ScoreBreakdown:          sc.breakdown,
		})
	}

	updates := make([]store.ReinforcementUpdate, 0, len(selected))
	for _, sc := range selected {
		m := sc.cand.Memory
		salience := lifecycle.Rescore(m, now)
		updates = append(updates, store.ReinforcementUpdate{
			ID:       m.ID,
			Salience: salience,
			State:    lifecycle.Classify(m, salience, now),
		})
	}

	if err := e.store.CommitRecall(ctx, trace, updates); err != nil {
		return nil, fmt.Errorf("commit recall: %w", err)
	}
	e.pushRecent(result.SelectedIDs)

	log.Debug().
		Str("trace_id", trace.ID).
		Int("candidates", len(candidates)).
		Int("injected", len(selected)).
		Int("injected_chars", usedChars).
		Strs("intents", intents).
		Msg("recall complete")

	return result, nil
}

// RecallSimple runs a recall and returns only the rendered memories.
func (e *Engine) RecallSimple(ctx context.Context, query string, maxItems int) ([]string, error) {
	res, err := e.RecallWithTrace(ctx, query, &Budgets{InjectMax: maxItems})
	if err != nil {
		return nil, err
	}
	return res.Memories, nil
}

// SearchResult is one hybrid search hit.
type SearchResult struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Type    string  `json:"type"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

// HybridSearch scores and ranks candidates for a query without recording a
// trace or reinforcing anything.
func (e *Engine) HybridSearch(ctx context.Context, query string, maxResults int, overrides *Budgets) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	b := e.budgets.merged(overrides).normalized()
	keywords := ExtractKeywords(query)

	candidates, err := e.fetchCandidates(ctx, query, keywords, b)
	if err != nil {
		return nil, err
	}

	in := scoreInput{keywords: keywords, intents: TagIntents(query), now: e.now(), repeats: e.repeatCounts()}
	scored := make([]*scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scoreCandidate(c, in))
	}
	applyDiversity(scored)

	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}
	out := make([]SearchResult, 0, len(scored))
	for _, sc := range scored {
		out = append(out, SearchResult{
			ID:      sc.cand.Memory.ID,
			Content: sc.cand.Memory.Content,
			Type:    sc.cand.Memory.Type,
			Score:   sc.score,
			Source:  sc.cand.Source,
		})
	}
	return out, nil
}

// GetTraceByID returns a persisted recall trace.
func (e *Engine) GetTraceByID(ctx context.Context, traceID string) (*model.RecallTrace, error) {
	return e.store.GetTraceByID(ctx, traceID)
}

// CacheStats exposes the query-cache counters.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// fetchCandidates returns the merged candidate set for a keyword set,
// serving from the query cache when possible. The three channel reads fan
// out concurrently and are joined before merging; a store or embedder
// failure aborts the fetch.
func (e *Engine) fetchCandidates(ctx context.Context, query string, keywords []string, b Budgets) ([]Candidate, error) {
	key := cacheKey(e.store.Identity(), b.CandidateMax, maxLexicalTerms, keywords)
	if cached, ok := e.cache.Get(key); ok {
		return e.filterVisible(ctx, cached)
	}

	var (
		wg      sync.WaitGroup
		salient []model.Memory
		lexical []model.Memory
		vector  []VectorHit
		errSal  error
		errLex  error
		errVec  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		salient, errSal = e.store.SalienceCandidates(ctx, b.CandidateMax)
	}()
	go func() {
		defer wg.Done()
		lexical, errLex = e.store.LexicalCandidates(ctx, b.CandidateMax, lexicalTerms(keywords))
	}()
	go func() {
		defer wg.Done()
		vector, errVec = e.vectorCandidates(ctx, query, b.CandidateMax)
	}()
	wg.Wait()

	for _, err := range []error{errSal, errLex, errVec} {
		if err != nil {
			return nil, fmt.Errorf("fetch candidates: %w", err)
		}
	}

	merged := mergeCandidates(salient, lexical, vector)
	if len(merged) > b.CandidateMax {
		merged = merged[:b.CandidateMax]
	}
	e.cache.Put(key, merged)
	return merged, nil
}

// filterVisible re-checks cached candidates against current row visibility.
// A memory forgotten or excluded after the set was cached must not resurface
// inside the TTL window. Survivors keep their cached rows so identical calls
// still see identical candidates.
func (e *Engine) filterVisible(ctx context.Context, cached []Candidate) ([]Candidate, error) {
	if len(cached) == 0 {
		return cached, nil
	}
	ids := make([]string, len(cached))
	for i, c := range cached {
		ids[i] = c.Memory.ID
	}
	rows, err := e.store.MemoriesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(rows) == len(cached) {
		return cached, nil
	}
	alive := make(map[string]bool, len(rows))
	for _, m := range rows {
		alive[m.ID] = true
	}
	out := make([]Candidate, 0, len(rows))
	for _, c := range cached {
		if alive[c.Memory.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// vectorCandidates embeds the query and cosine-ranks stored embeddings,
// rescaling similarity from [-1,1] to [0,1]. An embedder error is not
// recovered here; it aborts the recall call.
func (e *Engine) vectorCandidates(ctx context.Context, query string, limit int) ([]VectorHit, error) {
	if e.embedder == nil || query == "" {
		return nil, nil
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, nil
	}
	queryVec := vectors[0]

	rows, err := e.store.VisibleEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	type hit struct {
		id    string
		score float64
	}
	hits := make([]hit, 0, len(rows))
	for _, row := range rows {
		sim := embedding.CosineSimilarity(queryVec, row.Vector)
		hits = append(hits, hit{id: row.MemoryID, score: (sim + 1) / 2})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	memories, err := e.store.MemoriesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	out := make([]VectorHit, 0, len(hits))
	for _, h := range hits {
		m, ok := byID[h.id]
		if !ok {
			continue
		}
		out = append(out, VectorHit{Memory: m, Score: h.score})
	}
	return out, nil
}

func (e *Engine) repeatCounts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := map[string]int{}
	for _, sel := range e.recent {
		for _, id := range sel {
			counts[id]++
		}
	}
	return counts
}

func (e *Engine) pushRecent(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recent = append(e.recent, ids)
	if len(e.recent) > repetitionWindow {
		e.recent = e.recent[len(e.recent)-repetitionWindow:]
	}
}
