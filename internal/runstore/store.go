package runstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fintorai/agentforge/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run history persistence
type Store struct {
	db *sql.DB
}

// Record is one persisted run.
type Record struct {
	ID            string
	Branch        string
	Status        string
	ExitCode      int
	Error         string
	PRNumber      int
	PRURL         string
	ArtifactCount int
	NoChanges     int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists one finished run from its state and report.
func (s *Store) SaveRun(state *domain.RunState, rep *domain.RunReport) error {
	status := "completed"
	if rep.ExitCode != 0 {
		status = "failed"
	}
	var prNumber sql.NullInt64
	var prURL sql.NullString
	if rep.PullRequest != nil {
		prNumber = sql.NullInt64{Int64: int64(rep.PullRequest.Number), Valid: true}
		prURL = sql.NullString{String: rep.PullRequest.URL, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, branch, status, exit_code, error, pr_number, pr_url, artifact_count, no_changes_retries, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		state.RunID,
		state.Branch,
		status,
		rep.ExitCode,
		rep.Error,
		prNumber,
		prURL,
		len(rep.CodeWrites),
		state.NoChanges,
		state.StartedAt,
		state.FinishedAt,
	)
	return err
}

// ListRecent returns the most recent runs, newest first.
func (s *Store) ListRecent(limit int) ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT id, branch, status, exit_code, error, pr_number, pr_url, artifact_count, no_changes_retries, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var errMsg sql.NullString
		var prNumber sql.NullInt64
		var prURL sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Branch, &rec.Status, &rec.ExitCode, &errMsg,
			&prNumber, &prURL, &rec.ArtifactCount, &rec.NoChanges, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		if prNumber.Valid {
			rec.PRNumber = int(prNumber.Int64)
		}
		if prURL.Valid {
			rec.PRURL = prURL.String
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}
