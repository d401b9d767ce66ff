package recall

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/personacore/persona-memory/internal/embedding"
	"github.com/personacore/persona-memory/internal/model"
	"github.com/personacore/persona-memory/internal/store"
)

// fakeEmbedder returns a fixed vector per text based on a simple keyword
// table; it never leaves the process.
type fakeEmbedder struct {
	vectors map[string]embedding.Vector
	fail    bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if f.fail {
		return nil, errors.New("embedder unavailable")
	}
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = embedding.Vector{1, 0, 0}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string  { return "fake" }
func (f *fakeEmbedder) Model() string { return "fake-3d" }
func (f *fakeEmbedder) Dims() int     { return 3 }

func newTestEngine(t *testing.T, emb embedding.Embedder) (*store.SQLiteStore, *Engine) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, New(s, emb, Options{})
}

func TestRecall_EmptyStore(t *testing.T) {
	_, engine := newTestEngine(t, nil)

	res, err := engine.RecallWithTrace(context.Background(), "anything at all", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Memories) != 0 {
		t.Fatalf("expected no memories, got %d", len(res.Memories))
	}
	if len(res.SelectedIDs) != 0 {
		t.Fatalf("expected no selected ids, got %d", len(res.SelectedIDs))
	}
	if res.Trace.Budget.Candidates != 0 {
		t.Fatalf("expected 0 candidates, got %d", res.Trace.Budget.Candidates)
	}
}

func TestRecall_ChineseKeywordMatch(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	m, err := s.Remember(ctx, store.RememberParams{
		Type:     "semantic",
		Content:  "用户偏好：喜欢极简设计",
		Salience: 0.8,
		State:    "warm",
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := engine.RecallWithTrace(ctx, "设计", nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.SelectedIDs) != 1 || res.SelectedIDs[0] != m.ID {
		t.Fatalf("expected %s selected, got %v", m.ID, res.SelectedIDs)
	}
	var cs *model.CandidateScore
	for i := range res.Trace.Scores {
		if res.Trace.Scores[i].ID == m.ID {
			cs = &res.Trace.Scores[i]
		}
	}
	if cs == nil {
		t.Fatal("candidate missing from trace scores")
	}
	if cs.CandidateSource != model.SourceFTS && cs.CandidateSource != model.SourceHybrid {
		t.Fatalf("expected fts or hybrid source, got %q", cs.CandidateSource)
	}
	if cs.KeywordHits < 1 {
		t.Fatalf("expected keyword hits, got %d", cs.KeywordHits)
	}
	if cs.Reason != model.ReasonSelected {
		t.Fatalf("expected reason selected, got %q", cs.Reason)
	}

	rows, err := s.MemoriesByIDs(ctx, []string{m.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("reload memory: %v", err)
	}
	if rows[0].ActivationCount != 2 {
		t.Fatalf("expected activation count 2, got %d", rows[0].ActivationCount)
	}
}

func TestRecall_CharBudgetReasons(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		content := strings.Repeat(fmt.Sprintf("design memo %02d ", i), 25)
		if _, err := s.Remember(ctx, store.RememberParams{Content: content}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := engine.RecallWithTrace(ctx, "design", nil)
	if err != nil {
		t.Fatal(err)
	}

	total := 0
	for _, m := range res.Memories {
		total += len(m)
	}
	if total > DefaultInjectCharMax {
		t.Fatalf("char budget exceeded: %d", total)
	}
	if len(res.SelectedIDs) == 0 || len(res.SelectedIDs) == 20 {
		t.Fatalf("expected a partial selection, got %d", len(res.SelectedIDs))
	}

	selected := map[string]bool{}
	for _, id := range res.SelectedIDs {
		selected[id] = true
	}
	overBudget := 0
	for _, cs := range res.Trace.Scores {
		if selected[cs.ID] {
			continue
		}
		if cs.Reason != model.ReasonInjectCharBudget {
			t.Fatalf("expected inject_char_budget for %s, got %q", cs.ID, cs.Reason)
		}
		overBudget++
	}
	if overBudget == 0 {
		t.Fatal("expected candidates beyond the character budget")
	}
}

func TestRecall_CacheHitOnRepeat(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	s.Remember(ctx, store.RememberParams{Content: "the user prefers tea over coffee"})

	if _, err := engine.RecallWithTrace(ctx, "tea or coffee", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.RecallWithTrace(ctx, "tea or coffee", nil); err != nil {
		t.Fatal(err)
	}

	st := engine.CacheStats()
	if st.Hits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", st.Hits)
	}
	if st.Misses != 1 {
		t.Fatalf("expected 1 cache miss, got %d", st.Misses)
	}
}

func TestRecall_ExcludedAndDeletedUnreachable(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	kept, _ := s.Remember(ctx, store.RememberParams{Content: "visible note about travel plans"})
	gone, _ := s.Remember(ctx, store.RememberParams{Content: "deleted note about travel plans"})
	excl, _ := s.Remember(ctx, store.RememberParams{Content: "excluded note about travel plans"})

	if err := s.Forget(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DB().Exec(`UPDATE memories SET excluded = 1 WHERE id = ?`, excl.ID); err != nil {
		t.Fatal(err)
	}

	res, err := engine.RecallWithTrace(ctx, "travel plans", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, cs := range res.Trace.Scores {
		if cs.ID == gone.ID || cs.ID == excl.ID {
			t.Fatalf("invisible memory %s reached the trace", cs.ID)
		}
	}
	for _, id := range res.SelectedIDs {
		if id != kept.ID {
			t.Fatalf("unexpected selection %s", id)
		}
	}
}

func TestRecall_ForgetInvalidatesCachedCandidate(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	kept, _ := s.Remember(ctx, store.RememberParams{Content: "notes about the budapest trip"})
	gone, _ := s.Remember(ctx, store.RememberParams{Content: "more notes about the budapest trip"})

	first, err := engine.RecallWithTrace(ctx, "budapest trip", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.SelectedIDs) != 2 {
		t.Fatalf("expected both memories selected, got %v", first.SelectedIDs)
	}

	if err := s.Forget(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	// Within the cache TTL the candidate set is served from the cache; the
	// forgotten memory must still be gone from scores and selection.
	second, err := engine.RecallWithTrace(ctx, "budapest trip", nil)
	if err != nil {
		t.Fatal(err)
	}
	if engine.CacheStats().Hits != 1 {
		t.Fatal("expected the second call to hit the cache")
	}
	for _, cs := range second.Trace.Scores {
		if cs.ID == gone.ID {
			t.Fatal("forgotten memory reached the trace from the cache")
		}
	}
	if len(second.SelectedIDs) != 1 || second.SelectedIDs[0] != kept.ID {
		t.Fatalf("expected only %s selected, got %v", kept.ID, second.SelectedIDs)
	}
}

func TestRecall_ReinforcementIncrements(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	m, _ := s.Remember(ctx, store.RememberParams{Content: "the cat is named Miso", Salience: 0.9})

	for i := 1; i <= 3; i++ {
		res, err := engine.RecallWithTrace(ctx, "cat named Miso", nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.SelectedIDs) != 1 {
			t.Fatalf("call %d: expected selection", i)
		}
		rows, _ := s.MemoriesByIDs(ctx, []string{m.ID})
		if rows[0].ActivationCount != 1+i {
			t.Fatalf("call %d: activation count %d, want %d", i, rows[0].ActivationCount, 1+i)
		}
		if rows[0].ReconsolidationCount != i {
			t.Fatalf("call %d: reconsolidation count %d, want %d", i, rows[0].ReconsolidationCount, i)
		}
		if rows[0].LastActivatedAt == nil {
			t.Fatalf("call %d: last_activated_at not set", i)
		}
	}
}

func TestRecall_ScoresWithinBounds(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	s.Remember(ctx, store.RememberParams{Content: "remember: always important design preference", Salience: 1.0, State: "hot"})
	s.Remember(ctx, store.RememberParams{Content: "an old forgotten fragment", Salience: 0.01, State: "archive", OriginRole: "assistant"})

	res, err := engine.RecallWithTrace(ctx, "important design preference", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, cs := range res.Trace.Scores {
		if cs.Score < 0 || cs.Score > 1 {
			t.Fatalf("score %f out of [0,1] for %s", cs.Score, cs.ID)
		}
	}
}

func TestRecall_TraceRoundTrip(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	s.Remember(ctx, store.RememberParams{Content: "a note about sourdough baking"})

	res, err := engine.RecallWithTrace(ctx, "sourdough baking", nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := engine.GetTraceByID(ctx, res.TraceID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != res.TraceID || got.Query != "sourdough baking" {
		t.Fatalf("trace mismatch: %+v", got)
	}
	if len(got.Scores) != len(res.Trace.Scores) {
		t.Fatalf("expected %d scores, got %d", len(res.Trace.Scores), len(got.Scores))
	}
	if len(got.SelectedIDs) != len(res.SelectedIDs) {
		t.Fatal("selected ids not preserved")
	}
	if got.Budget.InjectMax != res.Trace.Budget.InjectMax {
		t.Fatal("budget snapshot not preserved")
	}
}

func TestRecall_VectorChannel(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string]embedding.Vector{
		"what pets do I have": {1, 0, 0},
	}}
	s, engine := newTestEngine(t, emb)
	ctx := context.Background()

	near, _ := s.Remember(ctx, store.RememberParams{Content: "owns a small orange cat"})
	far, _ := s.Remember(ctx, store.RememberParams{Content: "works as a florist downtown"})
	s.PutEmbedding(ctx, model.Embedding{MemoryID: near.ID, Provider: "fake", Model: "fake-3d", Dims: 3, Vector: []float32{1, 0, 0}, ContentHash: "h1"})
	s.PutEmbedding(ctx, model.Embedding{MemoryID: far.ID, Provider: "fake", Model: "fake-3d", Dims: 3, Vector: []float32{-1, 0, 0}, ContentHash: "h2"})

	res, err := engine.RecallWithTrace(ctx, "what pets do I have", nil)
	if err != nil {
		t.Fatal(err)
	}

	var nearScore, farScore *model.CandidateScore
	for i := range res.Trace.Scores {
		switch res.Trace.Scores[i].ID {
		case near.ID:
			nearScore = &res.Trace.Scores[i]
		case far.ID:
			farScore = &res.Trace.Scores[i]
		}
	}
	if nearScore == nil || farScore == nil {
		t.Fatal("expected both candidates in trace")
	}
	if nearScore.CandidateSource != model.SourceHybrid {
		t.Fatalf("expected hybrid tag, got %q", nearScore.CandidateSource)
	}
	if nearScore.ScoreBreakdown.VectorSimilarity != 1 {
		t.Fatalf("expected similarity 1, got %f", nearScore.ScoreBreakdown.VectorSimilarity)
	}
	if farScore.ScoreBreakdown.VectorSimilarity != 0 {
		t.Fatalf("expected similarity 0, got %f", farScore.ScoreBreakdown.VectorSimilarity)
	}
}

func TestRecall_EmbedderFailureAborts(t *testing.T) {
	s, engine := newTestEngine(t, &fakeEmbedder{fail: true})
	ctx := context.Background()

	s.Remember(ctx, store.RememberParams{Content: "some note"})

	if _, err := engine.RecallWithTrace(ctx, "some note", nil); err == nil {
		t.Fatal("expected embedder failure to abort the recall")
	}
}

func TestRecallSimple(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Remember(ctx, store.RememberParams{Content: fmt.Sprintf("note number %d about gardening", i)})
	}

	memories, err := engine.RecallSimple(ctx, "gardening", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(memories) > 2 {
		t.Fatalf("expected at most 2 memories, got %d", len(memories))
	}
}

func TestHybridSearch_NoSideEffects(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	m, _ := s.Remember(ctx, store.RememberParams{Content: "enjoys hiking in the mountains"})

	results, err := engine.HybridSearch(ctx, "hiking mountains", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatal("results not sorted by score")
		}
	}

	rows, _ := s.MemoriesByIDs(ctx, []string{m.ID})
	if rows[0].ActivationCount != 1 {
		t.Fatalf("search must not reinforce; activation count %d", rows[0].ActivationCount)
	}
	st, _ := s.Stats(ctx)
	if st.TraceCount != 0 {
		t.Fatalf("search must not record traces; got %d", st.TraceCount)
	}
}

func TestRecall_InjectMaxRespected(t *testing.T) {
	s, engine := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		s.Remember(ctx, store.RememberParams{Content: fmt.Sprintf("short note %d", i)})
	}

	res, err := engine.RecallWithTrace(ctx, "short note", &Budgets{InjectMax: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.SelectedIDs) > 3 {
		t.Fatalf("inject budget exceeded: %d", len(res.SelectedIDs))
	}
}
