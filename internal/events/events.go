// Package events publishes session lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to every event type.
const SubjectPrefix = "ailab.session."

// Event types.
const (
	TypeStarted    = "started"
	TypeInteracted = "interacted"
	TypeCompleted  = "completed"
	TypeEvicted    = "evicted"
)

// Event is a session lifecycle notification.
type Event struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	ScenarioID  string    `json:"experiment_id"`
	StudentName string    `json:"student_name,omitempty"`
	Step        int       `json:"step,omitempty"`
	Progress    float64   `json:"progress,omitempty"`
	Computed    bool      `json:"computed,omitempty"`
	ReportPath  string    `json:"report_path,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Subject returns the NATS subject for the event.
func (e Event) Subject() string {
	return SubjectPrefix + e.Type
}

// Publisher delivers events. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// NATSPublisher publishes JSON-encoded events to NATS core subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewNATS connects to the NATS server at url.
func NewNATS(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("ailab"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	logger.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// Publish sends the event on its subject.
func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(e.Subject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Subject(), err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Close does nothing.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
