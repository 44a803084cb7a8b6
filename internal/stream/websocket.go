package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const writeTimeout = 5 * time.Second

// SessionLookup reports whether a session id is currently known.
type SessionLookup func(sessionID string) bool

// WebSocketHandler streams a session transcript over a WebSocket.
//
// Clients may pass ?since=<seq> to skip messages they already have. Each
// frame is a JSON envelope; the server answers {"type":"ping"} with
// {"type":"pong"}.
type WebSocketHandler struct {
	hub           *Hub
	lookup        SessionLookup
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, lookup SessionLookup, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		lookup:        lookup,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

type envelope struct {
	Type    string               `json:"type"`
	Message *domain.AgentMessage `json:"message,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" || (h.lookup != nil && !h.lookup(sessionID)) {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, `{"error": "invalid since"}`, http.StatusBadRequest)
			return
		}
		since = n
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	replay, sub := h.hub.Subscribe(sessionID, since)
	defer h.hub.Unsubscribe(sub)
	slog.Info("Transcript stream opened", "session_id", sessionID, "replay", len(replay))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pongs := make(chan struct{}, 1)
	go func() {
		defer cancel()
		h.readLoop(ctx, ws, sessionID, pongs)
	}()

	for i := range replay {
		if err := writeJSON(ctx, ws, envelope{Type: "message", Message: &replay[i]}); err != nil {
			slog.Debug("Replay write failed", "error", err, "session_id", sessionID)
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-pongs:
			if err := writeJSON(ctx, ws, envelope{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		case msg, ok := <-sub.C:
			if !ok {
				_ = writeJSON(ctx, ws, envelope{Type: "closed"})
				return
			}
			if err := writeJSON(ctx, ws, envelope{Type: "message", Message: &msg}); err != nil {
				slog.Debug("Stream write failed", "error", err, "session_id", sessionID)
				return
			}
		}
	}
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string, pongs chan<- struct{}) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}
		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
