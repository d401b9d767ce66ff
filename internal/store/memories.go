package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/personacore/persona-memory/internal/model"
)

// visiblePredicate is the single query-time visibility rule: excluded or
// soft-deleted rows are unreachable from every candidate source.
const visiblePredicate = "m.excluded = 0 AND m.deleted_at IS NULL"

const memoryColumns = `m.id, m.type, m.content, m.salience, m.state,
	m.activation_count, m.last_activated_at, m.emotion_score, m.narrative_score,
	m.credibility_score, m.reconsolidation_count, m.origin_role, m.evidence_level,
	m.excluded, m.deleted_at, m.created_at, m.updated_at`

// RememberParams holds parameters for inserting a memory.
type RememberParams struct {
	Type        string
	Content     string
	Salience    float64
	State       string
	OriginRole  string
	Credibility float64
}

// Remember inserts a new memory record with sane defaults.
func (s *SQLiteStore) Remember(ctx context.Context, p RememberParams) (*model.Memory, error) {
	if p.Type == "" {
		p.Type = "semantic"
	}
	if !model.ValidTypes[p.Type] {
		return nil, fmt.Errorf("invalid memory type %q", p.Type)
	}
	if p.State == "" {
		p.State = "warm"
	}
	if !model.ValidStates[p.State] {
		return nil, fmt.Errorf("invalid state %q", p.State)
	}
	if p.OriginRole == "" {
		p.OriginRole = "user"
	}
	if !model.ValidOrigins[p.OriginRole] {
		return nil, fmt.Errorf("invalid origin role %q", p.OriginRole)
	}
	if p.Salience == 0 {
		p.Salience = 0.5
	}
	if p.Credibility == 0 {
		p.Credibility = 0.5
	}

	now := time.Now().UTC()
	m := &model.Memory{
		ID:               s.NewID(),
		Type:             p.Type,
		Content:          p.Content,
		Salience:         clamp01(p.Salience),
		State:            p.State,
		ActivationCount:  1,
		CredibilityScore: clamp01(p.Credibility),
		OriginRole:       p.OriginRole,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, type, content, salience, state, activation_count,
			emotion_score, narrative_score, credibility_score, reconsolidation_count,
			origin_role, excluded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, 0, 0, ?, 0, ?, 0, ?, ?)`,
		m.ID, m.Type, m.Content, m.Salience, m.State, m.CredibilityScore,
		m.OriginRole, fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return m, nil
}

// Forget soft-deletes a memory. The FTS update trigger drops it from the
// lexical index in the same statement.
func (s *SQLiteStore) Forget(ctx context.Context, id string) error {
	now := fmtTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory not found: %s", id)
	}
	return nil
}

// MemoriesByIDs returns the visible rows for the given identifiers, in no
// particular order. Unknown or invisible IDs are silently absent.
func (s *SQLiteStore) MemoriesByIDs(ctx context.Context, ids []string) ([]model.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM memories m WHERE m.id IN (%s) AND %s`,
		memoryColumns, placeholders, visiblePredicate), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows), nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanMemory is the single parse point for memory rows. Callers that iterate
// result sets skip rows it rejects rather than failing the whole call.
func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var lastActivated, evidence, deletedAt sql.NullString
	var createdAt, updatedAt string
	var excluded int

	err := row.Scan(
		&m.ID, &m.Type, &m.Content, &m.Salience, &m.State,
		&m.ActivationCount, &lastActivated, &m.EmotionScore, &m.NarrativeScore,
		&m.CredibilityScore, &m.ReconsolidationCount, &m.OriginRole, &evidence,
		&excluded, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return m, err
	}

	m.Excluded = excluded != 0
	m.EvidenceLevel = evidence.String
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if lastActivated.Valid {
		if t, err := time.Parse(time.RFC3339, lastActivated.String); err == nil {
			m.LastActivatedAt = &t
		}
	}
	if deletedAt.Valid {
		if t, err := time.Parse(time.RFC3339, deletedAt.String); err == nil {
			m.DeletedAt = &t
		}
	}
	return m, nil
}

// collectMemories drains a result set, skipping malformed rows.
func collectMemories(rows *sql.Rows) []model.Memory {
	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nowRFC3339() string {
	return fmtTime(time.Now())
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
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
