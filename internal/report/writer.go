package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/store"
)

// ErrNotFound is returned when no report exists for a session.
var ErrNotFound = errors.New("report not found")

// Result describes the outcome of a save. Failures are reported here instead
// of being returned, so that completing a session never fails on storage.
type Result struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	Saved    bool   `json:"saved"`
	Indexed  bool   `json:"indexed"`
	Error    string `json:"error,omitempty"`
}

// Writer stores rendered reports as files under dir and indexes them in repo.
// Either may be absent.
type Writer struct {
	dir    string
	repo   store.Repository
	logger *slog.Logger
}

// NewWriter creates a report writer.
func NewWriter(dir string, repo store.Repository, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, repo: repo, logger: logger}
}

// Dir returns the reports directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Save writes doc to disk and upserts its index row.
func (w *Writer) Save(ctx context.Context, doc Document) Result {
	res := Result{Filename: doc.Filename}
	var errs []error

	if w.dir != "" {
		path, err := writeFile(w.dir, doc.Filename, []byte(doc.Markdown))
		if err != nil {
			w.logger.Warn("failed to write report file", "session_id", doc.SessionID, "error", err)
			errs = append(errs, err)
		} else {
			res.Path = path
			res.Saved = true
		}
	}

	if w.repo != nil {
		rec := &domain.ReportRecord{
			SessionID:    doc.SessionID,
			ScenarioID:   doc.ScenarioID,
			Title:        doc.Title,
			StudentName:  doc.StudentName,
			Filename:     doc.Filename,
			Path:         res.Path,
			Feedback:     doc.Feedback,
			MessageCount: doc.MessageCount,
			Saved:        res.Saved,
			Markdown:     doc.Markdown,
			CreatedAt:    doc.GeneratedAt,
		}
		if err := w.repo.SaveReport(ctx, rec); err != nil {
			w.logger.Warn("failed to index report",
				"session_id", doc.SessionID,
				"busy", store.IsConflict(err),
				"error", err,
			)
			errs = append(errs, err)
		} else {
			res.Indexed = true
		}
	}

	if err := errors.Join(errs...); err != nil {
		res.Error = err.Error()
	}
	return res
}

// writeFile writes data atomically through a temp file and rename.
func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}

// Get returns the index row and markdown of a session's report. The file on
// disk is preferred; the indexed copy is used when the file is missing.
func (w *Writer) Get(ctx context.Context, sessionID string) (*domain.ReportRecord, string, error) {
	if w.repo == nil {
		return nil, "", ErrNotFound
	}
	rec, err := w.repo.GetReport(ctx, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("get report: %w", err)
	}
	if rec == nil {
		return nil, "", ErrNotFound
	}
	if rec.Path != "" {
		data, err := os.ReadFile(rec.Path)
		if err == nil {
			return rec, string(data), nil
		}
		w.logger.Warn("report file unreadable, serving indexed copy", "session_id", sessionID, "error", err)
	}
	return rec, rec.Markdown, nil
}

// List returns indexed reports, newest first.
func (w *Writer) List(ctx context.Context, limit int) ([]*domain.ReportRecord, error) {
	if w.repo == nil {
		return nil, nil
	}
	recs, err := w.repo.ListReports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return recs, nil
}
