// Package stream fans out session transcripts to WebSocket subscribers.
package stream

import (
	"log/slog"
	"sync"

	"github.com/ashureev/ailab/internal/domain"
)

const subscriberBuffer = 64

// Subscription receives live messages for one session. C is closed when the
// session ends or the subscriber falls too far behind.
type Subscription struct {
	ID        int64
	SessionID string
	C         <-chan domain.AgentMessage

	ch   chan domain.AgentMessage
	once sync.Once
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub tracks subscribers per session and keeps a replay buffer.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]*Subscription
	nextID int64
	replay *ReplayQueue
}

// NewHub creates a hub whose replay buffer holds replaySize messages per session.
func NewHub(replaySize int) *Hub {
	return &Hub{
		subs:   make(map[string]map[int64]*Subscription),
		replay: NewReplayQueue(replaySize),
	}
}

// Publish buffers msg and delivers it to the session's subscribers. A
// subscriber whose buffer is full is disconnected.
func (h *Hub) Publish(sessionID string, msg domain.AgentMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.replay.Enqueue(sessionID, msg)
	for id, sub := range h.subs[sessionID] {
		select {
		case sub.ch <- msg:
		default:
			slog.Warn("Stream subscriber too slow, disconnecting", "session_id", sessionID, "subscriber", id)
			sub.close()
			delete(h.subs[sessionID], id)
		}
	}
}

// Observer returns a callback that publishes every message of sessionID.
func (h *Hub) Observer(sessionID string) func(domain.AgentMessage) {
	return func(msg domain.AgentMessage) {
		h.Publish(sessionID, msg)
	}
}

// Subscribe registers a subscriber and returns the buffered messages after
// afterSeq. The replay is taken under the same lock as registration, so no
// message is both missed and unreplayed.
func (h *Hub) Subscribe(sessionID string, afterSeq int64) ([]domain.AgentMessage, *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan domain.AgentMessage, subscriberBuffer)
	sub := &Subscription{ID: h.nextID, SessionID: sessionID, C: ch, ch: ch}

	if _, ok := h.subs[sessionID]; !ok {
		h.subs[sessionID] = make(map[int64]*Subscription)
	}
	h.subs[sessionID][sub.ID] = sub
	slog.Debug("Stream subscriber registered", "session_id", sessionID, "subscriber", sub.ID)

	return h.replay.Since(sessionID, afterSeq), sub
}

// Unsubscribe removes sub.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sub.SessionID]; ok {
		if current, exists := subs[sub.ID]; exists && current == sub {
			delete(subs, sub.ID)
			if len(subs) == 0 {
				delete(h.subs, sub.SessionID)
			}
		}
	}
	sub.close()
}

// CloseSession disconnects every subscriber of sessionID and drops its replay buffer.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	subs := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	h.replay.Prune(sessionID)
}

// Subscribers returns the number of live subscribers for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
