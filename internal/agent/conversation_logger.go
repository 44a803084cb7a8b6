package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/ailab/internal/domain"
)

const defaultConversationQueueSize = 256

// ConversationLogEvent is one NDJSON line of a session conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	ScenarioID string         `json:"experiment_id"`
	SessionID  string         `json:"session_id"`
	Seq        int64          `json:"seq,omitempty"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	Sender     string         `json:"sender,omitempty"`
	Role       string         `json:"role,omitempty"`
	Content    string         `json:"content"`
	ContentRaw string         `json:"content_raw"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogConfig configures the NDJSON conversation logger.
type ConversationLogConfig struct {
	Enabled    bool
	Dir        string
	QueueSize  int
	GlobalFile string
}

// ConversationLogger records agent conversations.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

// NewConversationLogger returns a file-backed logger, or a no-op logger when
// logging is disabled.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("conversation log dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultConversationQueueSize
	}

	l := &fileConversationLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

type fileConversationLogger struct {
	cfg    ConversationLogConfig
	logger *slog.Logger
	queue  chan ConversationLogEvent
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// Log enqueues an event. Events are dropped when the queue is full.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}
	select {
	case l.queue <- event:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("conversation log queue full, dropping events", "dropped", n)
		}
	}
}

// Close drains the queue and stops the writer.
func (l *fileConversationLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write conversation log", "session_id", event.SessionID, "error", err)
		}
	}
}

func (l *fileConversationLogger) write(event ConversationLogEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	scenario := safePathSegment(event.ScenarioID, "unknown")
	session := safePathSegment(event.SessionID, "unknown")
	path := filepath.Join(l.cfg.Dir, scenario, session+".ndjson")
	if err := appendLine(path, line); err != nil {
		return err
	}
	if l.cfg.GlobalFile != "" {
		return appendLine(l.cfg.GlobalFile, line)
	}
	return nil
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

func safePathSegment(s, fallback string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return fallback
	}
	return s
}

var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*(\x07|\x1b\\)`)

// cleanForReadability strips terminal escape sequences and control characters.
func cleanForReadability(raw string) string {
	s := ansiSequence.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// LogObserver returns an Observer that records every agent message for the
// given session.
func LogObserver(l ConversationLogger, scenarioID, sessionID string) Observer {
	return func(msg domain.AgentMessage) {
		direction := "inbound"
		eventType := string(msg.Role) + "_message"
		if msg.Role == domain.RoleStudent {
			direction = "outbound"
		}
		l.Log(ConversationLogEvent{
			Timestamp:  msg.Timestamp.Format(time.RFC3339Nano),
			ScenarioID: scenarioID,
			SessionID:  sessionID,
			Seq:        msg.Seq,
			Channel:    "lab_session",
			Direction:  direction,
			EventType:  eventType,
			Sender:     msg.Sender,
			Role:       string(msg.Role),
			ContentRaw: msg.Content,
			Content:    cleanForReadability(msg.Content),
			Meta:       msg.Metadata,
		})
	}
}
