package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vigil/internal/logging"
)

// Store persists longitudinal state, the crisis episode archive, and the
// task audit log in one on-device SQLite file. A single connection with
// WAL journaling keeps writes atomic with respect to process termination.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.Get(logging.CategoryStore).Warnw("pragma failed", "pragma", pragma, "error", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Get(logging.CategoryStore).Infow("store ready", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS longitudinal_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS crisis_episodes (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		escalated INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_crisis_ended ON crisis_episodes(ended_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		checkin_id TEXT NOT NULL,
		task TEXT NOT NULL,
		used_model INTEGER NOT NULL,
		parse_method TEXT,
		latency_ms INTEGER NOT NULL,
		tier TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_checkin ON audit_log(checkin_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Load returns the persisted state, or nil when none exists or the
// persisted state has aged past the staleness window. Stale state is
// cleared so the next Save starts history fresh.
func (s *Store) Load(now time.Time, stalenessWindow time.Duration) (*LongitudinalState, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM longitudinal_state WHERE id = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var st LongitudinalState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if st.IsStale(now, stalenessWindow) {
		logging.Get(logging.CategoryStore).Infow("state stale, resetting",
			"last_updated", st.LastUpdated, "window", stalenessWindow)
		if err := s.Reset(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &st, nil
}

// Save persists the state atomically (single upsert in one transaction).
func (s *Store) Save(st LongitudinalState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO longitudinal_state (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), st.LastUpdated.Unix())
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Reset clears the longitudinal state row. The crisis archive and audit
// log are retained.
func (s *Store) Reset() error {
	if _, err := s.db.Exec("DELETE FROM longitudinal_state"); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}

// RecordCrisisEpisode archives a resolved crisis for the rolling
// frequency counter.
func (s *Store) RecordCrisisEpisode(id string, started, ended time.Time, escalated bool) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO crisis_episodes (id, started_at, ended_at, escalated)
		VALUES (?, ?, ?, ?)`,
		id, started.Unix(), ended.Unix(), boolInt(escalated))
	if err != nil {
		return fmt.Errorf("record crisis episode: %w", err)
	}
	return nil
}

// CrisisCountSince returns how many episodes ended within the window
// before now.
func (s *Store) CrisisCountSince(now time.Time, window time.Duration) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM crisis_episodes WHERE ended_at >= ?",
		now.Add(-window).Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count crisis episodes: %w", err)
	}
	return n, nil
}

// AuditEntry records the provenance of one task invocation.
type AuditEntry struct {
	CheckInID   string
	Task        string
	UsedModel   bool
	ParseMethod string
	Latency     time.Duration
	Tier        string
}

// AppendAudit writes one provenance record.
func (s *Store) AppendAudit(e AuditEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_log (checkin_id, task, used_model, parse_method, latency_ms, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.CheckInID, e.Task, boolInt(e.UsedModel), e.ParseMethod,
		e.Latency.Milliseconds(), e.Tier, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// AuditCount returns how many audit rows exist for a check-in.
func (s *Store) AuditCount(checkInID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE checkin_id = ?", checkInID).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
