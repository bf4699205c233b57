package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
// The path should be a file path (e.g., "./loomflow.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS executions (
			run_id TEXT PRIMARY KEY,
			app_id TEXT,
			user_id TEXT,
			status TEXT NOT NULL,
			outputs BLOB,
			error TEXT,
			elapsed_ns INTEGER NOT NULL,
			total_steps INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS node_executions (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			node_type TEXT NOT NULL,
			status TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			outputs BLOB,
			error TEXT,
			elapsed_ns INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_executions_run_id
			ON node_executions(run_id)`,
		`CREATE TABLE IF NOT EXISTS run_states (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			saved_at TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// SaveExecution implements ExecutionStore.
func (s *SQLiteStore) SaveExecution(rec ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO executions
			(run_id, app_id, user_id, status, outputs, error, elapsed_ns, total_steps, total_tokens, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			outputs = excluded.outputs,
			error = excluded.error,
			elapsed_ns = excluded.elapsed_ns,
			total_steps = excluded.total_steps,
			total_tokens = excluded.total_tokens,
			finished_at = excluded.finished_at
	`, rec.RunID, rec.AppID, rec.UserID, rec.Status, rec.Outputs, rec.Error,
		int64(rec.Elapsed), rec.TotalSteps, rec.TotalTokens,
		rec.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// GetExecution implements ExecutionStore.
func (s *SQLiteStore) GetExecution(runID string) (ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ExecutionRecord{}, ErrStoreClosed
	}

	var rec ExecutionRecord
	var elapsedNs int64
	var finishedAt string
	err := s.db.QueryRow(`
		SELECT run_id, app_id, user_id, status, outputs, error, elapsed_ns, total_steps, total_tokens, finished_at
		FROM executions WHERE run_id = ?
	`, runID).Scan(&rec.RunID, &rec.AppID, &rec.UserID, &rec.Status, &rec.Outputs,
		&rec.Error, &elapsedNs, &rec.TotalSteps, &rec.TotalTokens, &finishedAt)
	if err == sql.ErrNoRows {
		return ExecutionRecord{}, ErrNotFound
	}
	if err != nil {
		return ExecutionRecord{}, fmt.Errorf("get execution: %w", err)
	}

	rec.Elapsed = time.Duration(elapsedNs)
	if t, err := time.Parse(time.RFC3339Nano, finishedAt); err == nil {
		rec.FinishedAt = t
	}
	return rec, nil
}

// SaveNodeExecution implements NodeExecutionStore.
func (s *SQLiteStore) SaveNodeExecution(rec NodeExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO node_executions
			(run_id, node_id, node_type, status, attempt, outputs, error, elapsed_ns, sequence, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.NodeID, rec.NodeType, rec.Status, rec.Attempt, rec.Outputs,
		rec.Error, int64(rec.Elapsed), rec.Sequence,
		rec.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save node execution: %w", err)
	}
	return nil
}

// ListNodeExecutions implements NodeExecutionStore.
func (s *SQLiteStore) ListNodeExecutions(runID string) ([]NodeExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT run_id, node_id, node_type, status, attempt, outputs, error, elapsed_ns, sequence, finished_at
		FROM node_executions WHERE run_id = ? ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list node executions: %w", err)
	}
	defer rows.Close()

	var recs []NodeExecutionRecord
	for rows.Next() {
		var rec NodeExecutionRecord
		var elapsedNs int64
		var finishedAt string
		if err := rows.Scan(&rec.RunID, &rec.NodeID, &rec.NodeType, &rec.Status,
			&rec.Attempt, &rec.Outputs, &rec.Error, &elapsedNs, &rec.Sequence, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan node execution: %w", err)
		}
		rec.Elapsed = time.Duration(elapsedNs)
		if t, err := time.Parse(time.RFC3339Nano, finishedAt); err == nil {
			rec.FinishedAt = t
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list node executions: %w", err)
	}
	if recs == nil {
		recs = []NodeExecutionRecord{}
	}
	return recs, nil
}

// SaveState implements StateStore.
func (s *SQLiteStore) SaveState(runID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO run_states (run_id, payload, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload,
			saved_at = excluded.saved_at
	`, runID, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// LoadState implements StateStore.
func (s *SQLiteStore) LoadState(runID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM run_states WHERE run_id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return payload, nil
}

// DeleteState implements StateStore.
func (s *SQLiteStore) DeleteState(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM run_states WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
