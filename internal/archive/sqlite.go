package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/logging"
)

// DefaultCacheSize is used when the configured cache size is not positive.
const DefaultCacheSize = 128

// maxExportLimit is the maximum number of reports to export at once.
const maxExportLimit = 1000000

const selectColumns = `SELECT id, session_id, request_id, drug, risk_label, result_count, body, created_at FROM reports`

// SQLiteStore implements Store using SQLite, with an LRU cache in front of Get.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	cache  *lru.Cache[string, Report]
	logger *logrus.Logger
}

// NewSQLiteStore opens or creates the archive at dbPath and migrates its schema.
func NewSQLiteStore(dbPath string, cacheSize int, logger *logrus.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := migrateUp(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}

	store, err := newStore(db, cacheSize, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.dbPath = dbPath
	return store, nil
}

func newStore(db *sql.DB, cacheSize int, logger *logrus.Logger) (*SQLiteStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, Report](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create report cache: %w", err)
	}
	return &SQLiteStore{db: db, cache: cache, logger: logger}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (*Report, error) {
	r := &Report{}
	var body string
	var createdAt int64

	err := s.Scan(&r.ID, &r.SessionID, &r.RequestID, &r.Drug, &r.RiskLabel, &r.ResultCount, &body, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Body = json.RawMessage(body)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}

// Save inserts report.
func (s *SQLiteStore) Save(ctx context.Context, report *Report) error {
	if !json.Valid(report.Body) {
		return fmt.Errorf("report body is not valid JSON")
	}
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, session_id, request_id, drug, risk_label, result_count, body, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.SessionID,
		report.RequestID,
		report.Drug,
		report.RiskLabel,
		report.ResultCount,
		string(report.Body),
		report.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	s.cache.Add(report.ID, *report)
	s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"drug":      report.Drug,
	}).Debug("Report archived")
	return nil
}

// Record archives a succeeded state. It satisfies domain.Recorder.
func (s *SQLiteStore) Record(ctx context.Context, sessionID string, state domain.RequestState) error {
	report, err := NewReport(sessionID, state)
	if err != nil {
		return err
	}
	return s.Save(ctx, report)
}

// Get returns the report with id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Report, error) {
	if cached, ok := s.cache.Get(id); ok {
		return &cached, nil
	}

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	s.cache.Add(report.ID, *report)
	return report, nil
}

// List returns reports newest first with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var result []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, report)
	}
	return result, rows.Err()
}

// Count returns the number of archived reports.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// Delete removes a report. Deleting an unknown id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	s.cache.Remove(id)
	return nil
}

// ExportJSON exports every report to writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if all == nil {
		all = []*Report{}
	}

	export := &ReportExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Reports:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
