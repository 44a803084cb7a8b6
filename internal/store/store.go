// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/ashureev/ailab/internal/domain"
)

// ErrBusy marks SQLite concurrency errors (SQLITE_BUSY or "database is locked").
var ErrBusy = errors.New("database busy")

// Repository defines the interface for persisting the lab report index.
type Repository interface {
	// SaveReport creates or replaces the index row for a session's report.
	SaveReport(ctx context.Context, rec *domain.ReportRecord) error

	// GetReport retrieves the report of a session. It returns nil, nil when
	// no report exists.
	GetReport(ctx context.Context, sessionID string) (*domain.ReportRecord, error)

	// ListReports returns the most recent reports, newest first. A limit of
	// zero or less returns every report.
	ListReports(ctx context.Context, limit int) ([]*domain.ReportRecord, error)

	// DeleteReport removes a session's report index row.
	DeleteReport(ctx context.Context, sessionID string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// IsConflict reports whether err is a SQLite concurrency error.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func classify(op string, err error) error {
	if IsConflict(err) {
		return errors.Join(ErrBusy, wrap(op, err))
	}
	return wrap(op, err)
}
