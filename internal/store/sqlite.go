package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/ailab/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets report reads proceed while a completion writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS reports (
		session_id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		title TEXT NOT NULL,
		student_name TEXT NOT NULL,
		filename TEXT NOT NULL,
		path TEXT,
		feedback TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		saved INTEGER NOT NULL DEFAULT 0,
		markdown TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_experiment ON reports(experiment_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveReport creates or replaces the report index row.
func (s *SQLiteStore) SaveReport(ctx context.Context, rec *domain.ReportRecord) error {
	query := `
	INSERT INTO reports (session_id, experiment_id, title, student_name, filename, path,
		feedback, message_count, saved, markdown, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		experiment_id = excluded.experiment_id,
		title = excluded.title,
		student_name = excluded.student_name,
		filename = excluded.filename,
		path = excluded.path,
		feedback = excluded.feedback,
		message_count = excluded.message_count,
		saved = excluded.saved,
		markdown = excluded.markdown`

	var path any
	if rec.Path != "" {
		path = rec.Path
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.SessionID, rec.ScenarioID, rec.Title, rec.StudentName, rec.Filename, path,
		rec.Feedback, rec.MessageCount, rec.Saved, rec.Markdown, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return classify("upsert report", err)
	}
	return nil
}

const reportColumns = `session_id, experiment_id, title, student_name, filename, path,
	feedback, message_count, saved, markdown, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.ReportRecord, error) {
	var rec domain.ReportRecord
	var path sql.NullString
	var createdAt int64

	if err := row.Scan(
		&rec.SessionID, &rec.ScenarioID, &rec.Title, &rec.StudentName, &rec.Filename, &path,
		&rec.Feedback, &rec.MessageCount, &rec.Saved, &rec.Markdown, &createdAt,
	); err != nil {
		return nil, err
	}
	rec.Path = path.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

// GetReport retrieves the report of a session.
func (s *SQLiteStore) GetReport(ctx context.Context, sessionID string) (*domain.ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE session_id = ?`, sessionID)
	rec, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("scan report row", err)
	}
	return rec, nil
}

// ListReports returns the most recent reports, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]*domain.ReportRecord, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query reports", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close report rows", "error", closeErr)
		}
	}()

	var out []*domain.ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, classify("scan report row", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate reports", err)
	}
	return out, nil
}

// DeleteReport removes a session's report index row.
func (s *SQLiteStore) DeleteReport(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE session_id = ?`, sessionID)
	if err != nil {
		return classify("delete report", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("DeleteReport affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

var _ Repository = (*SQLiteStore)(nil)
