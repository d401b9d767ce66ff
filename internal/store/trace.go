package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/personacore/persona-memory/internal/model"
)

// ErrTraceNotFound is returned by GetTraceByID for unknown identifiers.
var ErrTraceNotFound = errors.New("trace not found")

// ReinforcementUpdate holds the recomputed fields written back for one
// selected memory. Activation and reconsolidation counters are incremented
// in SQL against the current row, so a stale cached candidate can never
// undercount an activation.
type ReinforcementUpdate struct {
	ID       string
	Salience float64
	State    string
}

// CommitRecall persists the recall trace and applies every reinforcement
// update in a single transaction, so a recall either fully lands or leaves
// the store untouched.
func (s *SQLiteStore) CommitRecall(ctx context.Context, trace *model.RecallTrace, updates []ReinforcementUpdate) error {
	selectedJSON, err := json.Marshal(trace.SelectedIDs)
	if err != nil {
		return fmt.Errorf("marshal selected ids: %w", err)
	}
	scoresJSON, err := json.Marshal(trace.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	budgetJSON, err := json.Marshal(trace.Budget)
	if err != nil {
		return fmt.Errorf("marshal budget: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := fmtTime(trace.CreatedAt)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO recall_traces (id, query, selected_ids, scores, budget, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.Query, string(selectedJSON), string(scoresJSON), string(budgetJSON), now)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}

	for _, u := range updates {
		_, err = tx.ExecContext(ctx,
			`UPDATE memories SET activation_count = activation_count + 1,
				reconsolidation_count = reconsolidation_count + 1,
				salience = ?, state = ?, last_activated_at = ?, updated_at = ?
			 WHERE id = ?`,
			u.Salience, u.State, now, now, u.ID)
		if err != nil {
			return fmt.Errorf("reinforce %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

// GetTraceByID returns a previously persisted recall trace.
func (s *SQLiteStore) GetTraceByID(ctx context.Context, traceID string) (*model.RecallTrace, error) {
	var t model.RecallTrace
	var selectedJSON, scoresJSON, budgetJSON, createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, query, selected_ids, scores, budget, created_at
		 FROM recall_traces WHERE id = ?`, traceID).
		Scan(&t.ID, &t.Query, &selectedJSON, &scoresJSON, &budgetJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(selectedJSON), &t.SelectedIDs); err != nil {
		return nil, fmt.Errorf("parse selected ids: %w", err)
	}
	if err := json.Unmarshal([]byte(scoresJSON), &t.Scores); err != nil {
		return nil, fmt.Errorf("parse scores: %w", err)
	}
	if err := json.Unmarshal([]byte(budgetJSON), &t.Budget); err != nil {
		return nil, fmt.Errorf("parse budget: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}
