package stream

import (
	"container/list"
	"sync"

	"github.com/ashureev/ailab/internal/domain"
)

const defaultReplaySize = 200

// ReplayQueue buffers recent messages per session so late subscribers can
// catch up. Each session has its own bounded list, so one busy session cannot
// evict another session's messages.
type ReplayQueue struct {
	mu      sync.RWMutex
	queues  map[string]*list.List
	maxSize int
}

// NewReplayQueue creates a per-session replay queue.
func NewReplayQueue(maxSize int) *ReplayQueue {
	if maxSize <= 0 {
		maxSize = defaultReplaySize
	}
	return &ReplayQueue{
		queues:  make(map[string]*list.List),
		maxSize: maxSize,
	}
}

// Enqueue appends msg to the session's queue.
func (q *ReplayQueue) Enqueue(sessionID string, msg domain.AgentMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.queues[sessionID]
	if !ok {
		l = list.New()
		q.queues[sessionID] = l
	}
	l.PushBack(msg)
	for l.Len() > q.maxSize {
		l.Remove(l.Front())
	}
}

// Since returns the buffered messages with Seq greater than afterSeq.
func (q *ReplayQueue) Since(sessionID string, afterSeq int64) []domain.AgentMessage {
	q.mu.RLock()
	defer q.mu.RUnlock()

	l, ok := q.queues[sessionID]
	if !ok {
		return nil
	}
	var out []domain.AgentMessage
	for e := l.Front(); e != nil; e = e.Next() {
		msg := e.Value.(domain.AgentMessage)
		if msg.Seq > afterSeq {
			out = append(out, msg)
		}
	}
	return out
}

// Prune drops the session's queue.
func (q *ReplayQueue) Prune(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, sessionID)
}

// Len returns the number of sessions with buffered messages.
func (q *ReplayQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queues)
}
