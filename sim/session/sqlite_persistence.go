package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/service"
)

// SQLitePersistence implements SessionPersistence on a SQLite database.
// Sessions and their runs live in separate tables. A session row points at
// its current run; earlier runs stay queryable through RunHistory.
// Timestamps are stored as Unix nanoseconds.
type SQLitePersistence struct {
	db *sql.DB
}

// NewSQLitePersistence opens (or creates) the database at dbPath
func NewSQLitePersistence(dbPath string) (*SQLitePersistence, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return &SQLitePersistence{db: db}, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL,
			scenario_json TEXT NOT NULL,
			last_run_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			last_accessed_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			collisions INTEGER NOT NULL,
			survivors INTEGER NOT NULL,
			result_json TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session_id ON runs(session_id);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database
func (sp *SQLitePersistence) Close() error {
	return sp.db.Close()
}

// Save upserts the session row and records its last run if it is new
func (sp *SQLitePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	scenarioJSON, err := json.Marshal(session.Scenario)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	tx, err := sp.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lastRunID := ""
	if session.LastRun != nil {
		lastRunID = session.LastRun.RunID
	}

	_, err = tx.Exec(`INSERT INTO sessions (session_id, scenario_id, scenario_json, last_run_id, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			scenario_id = excluded.scenario_id,
			scenario_json = excluded.scenario_json,
			last_run_id = excluded.last_run_id,
			last_accessed_at = excluded.last_accessed_at`,
		strings.ToLower(session.ID), session.ScenarioID, string(scenarioJSON), lastRunID,
		session.CreatedAt.UnixNano(), session.LastAccessedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if run := session.LastRun; run != nil && run.Result != nil {
		resultJSON, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal run result: %w", err)
		}
		_, err = tx.Exec(`INSERT OR IGNORE INTO runs
			(run_id, session_id, started_at, duration_ns, ticks, collisions, survivors, result_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, strings.ToLower(session.ID), run.StartedAt.UnixNano(), run.Duration.Nanoseconds(),
			len(run.Result.Ticks), len(run.Result.Collisions), run.Result.Survivors(), string(resultJSON))
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	return tx.Commit()
}

// Load restores a session and its current run
func (sp *SQLitePersistence) Load(id string) (*service.Session, error) {
	var (
		data                  PersistedSessionData
		scenarioJSON          string
		lastRunID             string
		createdNs, accessedNs int64
	)
	row := sp.db.QueryRow(`SELECT session_id, scenario_id, scenario_json, last_run_id, created_at, last_accessed_at
		FROM sessions WHERE session_id = ?`, strings.ToLower(id))
	if err := row.Scan(&data.ID, &data.ScenarioID, &scenarioJSON, &lastRunID, &createdNs, &accessedNs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var scenario engine.Scenario
	if err := json.Unmarshal([]byte(scenarioJSON), &scenario); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}
	data.Scenario = &scenario
	data.CreatedAt = time.Unix(0, createdNs)
	data.LastAccessedAt = time.Unix(0, accessedNs)

	if lastRunID != "" {
		run, err := sp.loadRun(lastRunID)
		if err != nil {
			return nil, err
		}
		data.LastRun = run
	}

	session, err := data.toSession()
	if err != nil {
		return nil, fmt.Errorf("persisted session %s is invalid: %w", id, err)
	}
	return session, nil
}

func (sp *SQLitePersistence) loadRun(runID string) (*service.RunRecord, error) {
	var (
		record                service.RunRecord
		startedNs, durationNs int64
		resultJSON            string
	)
	row := sp.db.QueryRow(`SELECT run_id, started_at, duration_ns, result_json FROM runs WHERE run_id = ?`, runID)
	if err := row.Scan(&record.RunID, &startedNs, &durationNs, &resultJSON); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var result engine.RunResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run result: %w", err)
	}
	record.StartedAt = time.Unix(0, startedNs)
	record.Duration = time.Duration(durationNs)
	record.Result = &result
	return &record, nil
}

// RunSummary is one row of a session's run history
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Ticks      int           `json:"ticks"`
	Collisions int           `json:"collisions"`
	Survivors  int           `json:"survivors"`
}

// RunHistory lists every stored run of a session, newest first
func (sp *SQLitePersistence) RunHistory(id string) ([]RunSummary, error) {
	rows, err := sp.db.Query(`SELECT run_id, started_at, duration_ns, ticks, collisions, survivors
		FROM runs WHERE session_id = ? ORDER BY started_at DESC`, strings.ToLower(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var history []RunSummary
	for rows.Next() {
		var (
			s                     RunSummary
			startedNs, durationNs int64
		)
		if err := rows.Scan(&s.RunID, &startedNs, &durationNs, &s.Ticks, &s.Collisions, &s.Survivors); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = time.Unix(0, startedNs)
		s.Duration = time.Duration(durationNs)
		history = append(history, s)
	}
	return history, rows.Err()
}

// Delete removes a session and its runs
func (sp *SQLitePersistence) Delete(id string) error {
	tx, err := sp.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM runs WHERE session_id = ?`, strings.ToLower(id)); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM sessions WHERE session_id = ?`, strings.ToLower(id))
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}

	return tx.Commit()
}

// ListAll returns all persisted session IDs
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := sp.db.Query(`SELECT session_id FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks if a session row exists
func (sp *SQLitePersistence) Exists(id string) bool {
	var one int
	err := sp.db.QueryRow(`SELECT 1 FROM sessions WHERE session_id = ?`, strings.ToLower(id)).Scan(&one)
	return err == nil
}
