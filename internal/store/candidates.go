package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/personacore/persona-memory/internal/model"
)

// maxLexicalTerms bounds how many keywords go into one FTS match expression.
const maxLexicalTerms = 8

// SalienceCandidates returns the top visible rows by stored salience, most
// recently activated first within equal salience.
func (s *SQLiteStore) SalienceCandidates(ctx context.Context, limit int) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM memories m
		 WHERE %s
		 ORDER BY m.salience DESC, COALESCE(m.last_activated_at, m.created_at) DESC
		 LIMIT ?`, memoryColumns, visiblePredicate), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows), nil
}

// LexicalCandidates returns visible rows matching the keyword set. It tries
// an FTS5 match first and falls back to a substring scan whenever FTS errors
// or returns zero rows, so a stale or unavailable index never hides content.
func (s *SQLiteStore) LexicalCandidates(ctx context.Context, limit int, keywords []string) ([]model.Memory, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	out, err := s.ftsCandidates(ctx, limit, keywords)
	if err != nil {
		log.Debug().Err(err).Msg("fts query failed, falling back to substring scan")
	}
	if len(out) > 0 {
		return out, nil
	}
	return s.substringCandidates(ctx, limit, keywords)
}

func (s *SQLiteStore) ftsCandidates(ctx context.Context, limit int, keywords []string) ([]model.Memory, error) {
	terms := keywords
	if len(terms) > maxLexicalTerms {
		terms = terms[:maxLexicalTerms]
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	match := strings.Join(quoted, " OR ")

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM memories_fts f
		 JOIN memories m ON m.rowid = f.rowid
		 WHERE memories_fts MATCH ? AND %s
		 ORDER BY rank
		 LIMIT ?`, memoryColumns, visiblePredicate), match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows), nil
}

func (s *SQLiteStore) substringCandidates(ctx context.Context, limit int, keywords []string) ([]model.Memory, error) {
	terms := keywords
	if len(terms) > maxLexicalTerms {
		terms = terms[:maxLexicalTerms]
	}

	conds := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, t := range terms {
		conds[i] = `m.content LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(t)+"%")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM memories m
		 WHERE %s AND (%s)
		 ORDER BY m.salience DESC
		 LIMIT ?`, memoryColumns, visiblePredicate, strings.Join(conds, " OR ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// VisibleEmbeddings returns all embedding rows whose memory is visible.
// Rows with an unparseable vector are skipped.
func (s *SQLiteStore) VisibleEmbeddings(ctx context.Context) ([]model.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT e.memory_id, e.provider, e.model, e.dims, e.vector, e.content_hash, e.updated_at
		 FROM memory_embeddings e
		 JOIN memories m ON m.id = e.memory_id
		 WHERE %s`, visiblePredicate))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Embedding
	for rows.Next() {
		var e model.Embedding
		var vecJSON, updatedAt string
		if err := rows.Scan(&e.MemoryID, &e.Provider, &e.Model, &e.Dims, &vecJSON, &e.ContentHash, &updatedAt); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(vecJSON), &e.Vector); err != nil || len(e.Vector) == 0 {
			continue
		}
		if t, err := parseRFC3339(updatedAt); err == nil {
			e.UpdatedAt = t
		}
		out = append(out, e)
	}
	return out, nil
}

// PutEmbedding inserts or replaces the embedding row for a memory. Used by
// the indexing job and by tests.
func (s *SQLiteStore) PutEmbedding(ctx context.Context, e model.Embedding) error {
	vecJSON, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_embeddings
			(memory_id, provider, model, dims, vector, content_hash, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.MemoryID, e.Provider, e.Model, e.Dims, string(vecJSON), e.ContentHash, nowRFC3339())
	return err
}
