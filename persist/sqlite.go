package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists workflow history to a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path, applies WAL-mode
// pragmas, and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("persist: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("persist: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS artifacts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project    TEXT NOT NULL,
			name       TEXT NOT NULL,
			path       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_artifacts_project ON artifacts(project);

		CREATE TABLE IF NOT EXISTS decisions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project    TEXT NOT NULL,
			text       TEXT NOT NULL,
			author     TEXT NOT NULL,
			rationale  TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_project ON decisions(project);

		CREATE TABLE IF NOT EXISTS task_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project    TEXT NOT NULL,
			task_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			stage      TEXT NOT NULL,
			status     TEXT NOT NULL,
			error      TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_task_events_project ON task_events(project);

		CREATE TABLE IF NOT EXISTS llm_calls (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			project           TEXT NOT NULL,
			model             TEXT NOT NULL,
			prompt_tokens     INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			created_at        TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_llm_calls_project ON llm_calls(project);

		CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project    TEXT NOT NULL,
			stage      TEXT NOT NULL,
			data       BLOB NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project);
	`
	_, err := s.db.Exec(schema)
	return err
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) RecordArtifact(ctx context.Context, rec ArtifactRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (project, name, path, created_at) VALUES (?, ?, ?, ?)`,
		rec.Project, rec.Name, rec.Path, timestamp(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("persist: record artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordDecision(ctx context.Context, rec DecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (project, text, author, rationale, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Project, rec.Text, rec.Author, rec.Rationale, timestamp(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("persist: record decision: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordTaskEvent(ctx context.Context, ev TaskEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_events (project, task_id, title, stage, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Project, ev.TaskID, ev.Title, ev.Stage, ev.Status, ev.Error, timestamp(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("persist: record task event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordLLMCall(ctx context.Context, rec LLMCallRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_calls (project, model, prompt_tokens, completion_tokens, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Project, rec.Model, rec.PromptTokens, rec.CompletionTokens, timestamp(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("persist: record llm call: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (project, stage, data, created_at) VALUES (?, ?, ?, ?)`,
		snap.Project, snap.Stage, snap.Data, timestamp(snap.CreatedAt))
	if err != nil {
		return fmt.Errorf("persist: save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, project string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT project, stage, data, created_at FROM snapshots WHERE project = ? ORDER BY id DESC LIMIT 1`,
		project)

	var snap Snapshot
	var createdAt string
	if err := row.Scan(&snap.Project, &snap.Stage, &snap.Data, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("persist: load snapshot: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &snap, nil
}

func (s *SQLiteStore) Decisions(ctx context.Context, project string) ([]DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project, text, author, rationale, created_at FROM decisions WHERE project = ? ORDER BY id`,
		project)
	if err != nil {
		return nil, fmt.Errorf("persist: query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var rationale sql.NullString
		var createdAt string
		if err := rows.Scan(&rec.Project, &rec.Text, &rec.Author, &rationale, &createdAt); err != nil {
			return nil, fmt.Errorf("persist: scan decision: %w", err)
		}
		rec.Rationale = rationale.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		decisions = append(decisions, rec)
	}
	return decisions, rows.Err()
}

func (s *SQLiteStore) TaskEvents(ctx context.Context, project string) ([]TaskEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project, task_id, title, stage, status, error, created_at FROM task_events WHERE project = ? ORDER BY id`,
		project)
	if err != nil {
		return nil, fmt.Errorf("persist: query task events: %w", err)
	}
	defer rows.Close()

	var events []TaskEvent
	for rows.Next() {
		var ev TaskEvent
		var errText sql.NullString
		var createdAt string
		if err := rows.Scan(&ev.Project, &ev.TaskID, &ev.Title, &ev.Stage, &ev.Status, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("persist: scan task event: %w", err)
		}
		ev.Error = errText.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}
