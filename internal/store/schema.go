package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the highest schema version this build understands.
const SchemaVersion = 5

// requiredTables are the tables Inspect checks for.
var requiredTables = []string{"memories", "memories_fts", "memory_embeddings", "recall_traces"}

// migrations are applied sequentially; index i holds version i+1. Every
// statement is guarded so re-running a migration is a no-op, and each
// migration runs inside a single transaction.
var migrations = []string{
	// v1: memory records
	`CREATE TABLE IF NOT EXISTS memories (
		id                    TEXT PRIMARY KEY,
		type                  TEXT NOT NULL DEFAULT 'semantic',
		content               TEXT NOT NULL,
		salience              REAL NOT NULL DEFAULT 0.5,
		state                 TEXT NOT NULL DEFAULT 'warm',
		activation_count      INTEGER NOT NULL DEFAULT 1,
		last_activated_at     TEXT,
		emotion_score         REAL NOT NULL DEFAULT 0,
		narrative_score       REAL NOT NULL DEFAULT 0,
		credibility_score     REAL NOT NULL DEFAULT 0.5,
		reconsolidation_count INTEGER NOT NULL DEFAULT 0,
		origin_role           TEXT NOT NULL DEFAULT 'user',
		evidence_level        TEXT,
		excluded              INTEGER NOT NULL DEFAULT 0,
		deleted_at            TEXT,
		created_at            TEXT NOT NULL,
		updated_at            TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_salience ON memories(salience DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
	CREATE INDEX IF NOT EXISTS idx_memories_state ON memories(state);
	CREATE INDEX IF NOT EXISTS idx_memories_deleted ON memories(deleted_at);`,

	// v2: full-text index as an external-content projection of memories,
	// trigger-maintained with the same visibility predicate used at query
	// time (not excluded, not soft-deleted).
	`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		content,
		content='memories',
		content_rowid='rowid'
	);
	CREATE TRIGGER IF NOT EXISTS memories_fts_ai AFTER INSERT ON memories
	WHEN new.excluded = 0 AND new.deleted_at IS NULL BEGIN
		INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_fts_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_fts_au AFTER UPDATE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		INSERT INTO memories_fts(rowid, content)
			SELECT new.rowid, new.content WHERE new.excluded = 0 AND new.deleted_at IS NULL;
	END;`,

	// v3: embeddings, one row per memory
	`CREATE TABLE IF NOT EXISTS memory_embeddings (
		memory_id    TEXT PRIMARY KEY REFERENCES memories(id),
		provider     TEXT NOT NULL,
		model        TEXT NOT NULL,
		dims         INTEGER NOT NULL,
		vector       TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);`,

	// v4: recall traces
	`CREATE TABLE IF NOT EXISTS recall_traces (
		id           TEXT PRIMARY KEY,
		query        TEXT NOT NULL,
		selected_ids TEXT NOT NULL,
		scores       TEXT NOT NULL,
		budget       TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_traces_created ON recall_traces(created_at DESC);`,

	// v5: guard the FTS trigger delete branches with the visibility
	// predicate. Invisible rows were never indexed, and issuing an fts5
	// 'delete' for an unindexed row corrupts an external-content table.
	`DROP TRIGGER IF EXISTS memories_fts_au;
	CREATE TRIGGER IF NOT EXISTS memories_fts_au AFTER UPDATE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content)
			SELECT 'delete', old.rowid, old.content WHERE old.excluded = 0 AND old.deleted_at IS NULL;
		INSERT INTO memories_fts(rowid, content)
			SELECT new.rowid, new.content WHERE new.excluded = 0 AND new.deleted_at IS NULL;
	END;
	DROP TRIGGER IF EXISTS memories_fts_ad;
	CREATE TRIGGER IF NOT EXISTS memories_fts_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content)
			SELECT 'delete', old.rowid, old.content WHERE old.excluded = 0 AND old.deleted_at IS NULL;
	END;`,
}

// SchemaInfo reports the result of Inspect.
type SchemaInfo struct {
	Version       int      `json:"version"`
	MissingTables []string `json:"missing_tables,omitempty"`
}

// Ensure brings the store to the latest schema version, applying pending
// migrations in order, each in its own transaction. A store whose version
// exceeds SchemaVersion is rejected, never downgraded.
func (s *SQLiteStore) Ensure(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("store schema version %d exceeds supported version %d", current, SchemaVersion)
	}

	for v := current + 1; v <= SchemaVersion; v++ {
		if err := s.applyMigration(ctx, v, migrations[v-1]); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
	}
	return nil
}

// Inspect reports the current schema version and any missing required
// tables. It never mutates the store.
func (s *SQLiteStore) Inspect(ctx context.Context) (*SchemaInfo, error) {
	info := &SchemaInfo{}

	var hasVersionTable bool
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`).
		Scan(&hasVersionTable)
	if err != nil {
		return nil, err
	}
	if hasVersionTable {
		if info.Version, err = s.schemaVersion(ctx); err != nil {
			return nil, err
		}
	}

	for _, name := range requiredTables {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, name).Scan(&n)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			info.MissingTables = append(info.MissingTables, name)
		}
	}
	return info, nil
}

func (s *SQLiteStore) schemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, version int, schema string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		version, nowRFC3339()); err != nil {
		return err
	}
	return tx.Commit()
}
