package store

import (
	"context"
	"os"
)

// Stats holds store statistics.
type Stats struct {
	DBPath        string         `json:"db_path"`
	DBSizeBytes   int64          `json:"db_size_bytes"`
	TotalMemories int            `json:"total_memories"`
	VisibleCount  int            `json:"visible_memories"`
	EmbeddedCount int            `json:"embedded_memories"`
	TraceCount    int            `json:"traces"`
	CountsByType  map[string]int `json:"by_type"`
	CountsByState map[string]int `json:"by_state"`
	SchemaVersion int            `json:"schema_version"`
}

// Stats returns store statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		DBPath:        s.path,
		CountsByType:  map[string]int{},
		CountsByState: map[string]int{},
	}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}
	if v, err := s.schemaVersion(ctx); err == nil {
		st.SchemaVersion = v
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories m WHERE `+visiblePredicate).Scan(&st.VisibleCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_embeddings`).Scan(&st.EmbeddedCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recall_traces`).Scan(&st.TraceCount)

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM memories m WHERE `+visiblePredicate+` GROUP BY type`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		rows.Scan(&typ, &n)
		st.CountsByType[typ] = n
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM memories m WHERE `+visiblePredicate+` GROUP BY state`)
	if err != nil {
		return st, err
	}
	defer srows.Close()
	for srows.Next() {
		var state string
		var n int
		srows.Scan(&state, &n)
		st.CountsByState[state] = n
	}

	return st, nil
}
