// Package storage persists analysis history in a local SQLite database.
// History is best-effort convenience data: a write failure is logged
// and surfaced, but callers treat it as non-fatal.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"finsight/internal/errors"
	"finsight/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id            TEXT PRIMARY KEY,
	fingerprint   TEXT NOT NULL,
	archetype     TEXT NOT NULL,
	top_deviation TEXT NOT NULL DEFAULT '',
	report_json   TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at DESC);
`

// AnalysisRecord is one stored analysis run.
type AnalysisRecord struct {
	ID           string    `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	Archetype    string    `json:"archetype"`
	TopDeviation string    `json:"topDeviation,omitempty"`
	ReportJSON   string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store wraps the history database.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// Open creates or opens the history database at path, applying the
// schema if needed.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.New(errors.StoreUnavailable,
				fmt.Sprintf("cannot create history directory %s", dir), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.StoreUnavailable,
			fmt.Sprintf("cannot open history database %s", path), err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.New(errors.StoreUnavailable, "cannot apply history schema", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// SaveAnalysis inserts one analysis record.
func (s *Store) SaveAnalysis(ctx context.Context, rec AnalysisRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, fingerprint, archetype, top_deviation, report_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Fingerprint, rec.Archetype, rec.TopDeviation, rec.ReportJSON, rec.CreatedAt.Unix())
	if err != nil {
		s.logger.Warn("Failed to record analysis history", map[string]interface{}{
			"id":    rec.ID,
			"error": err.Error(),
		})
		return errors.New(errors.StoreUnavailable, "cannot save analysis record", err)
	}
	return nil
}

// ListAnalyses returns the most recent records, newest first.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fingerprint, archetype, top_deviation, report_json, created_at
		 FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.New(errors.StoreUnavailable, "cannot query analysis history", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.Archetype,
			&rec.TopDeviation, &rec.ReportJSON, &createdAt); err != nil {
			return nil, errors.New(errors.StoreUnavailable, "cannot scan analysis record", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.StoreUnavailable, "history query aborted", err)
	}

	return records, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
