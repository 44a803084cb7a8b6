package domain

import "time"

// ReportRecord indexes a rendered lab report.
type ReportRecord struct {
	SessionID    string    `json:"session_id"`
	ScenarioID   string    `json:"experiment_id"`
	Title        string    `json:"title"`
	StudentName  string    `json:"student_name"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Feedback     string    `json:"evaluator_feedback"`
	MessageCount int       `json:"message_count"`
	Saved        bool      `json:"saved"`
	CreatedAt    time.Time `json:"created_at"`
	// Markdown is the rendered document, kept so a report survives a failed file write.
	Markdown string `json:"-"`
}
