package session

import (
	"context"
	"time"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/events"
)

const ttlWorkerInterval = time.Minute

// Retention controls how long sessions stay in memory.
type Retention struct {
	// Idle evicts in-progress sessions with no activity for this long.
	Idle time.Duration
	// Completed evicts completed sessions this long after completion.
	Completed time.Duration
}

// EvictCallback is called for every session removed by Sweep.
type EvictCallback func(info domain.SessionInfo)

// StartTTLWorker runs a background goroutine that periodically sweeps
// expired sessions until ctx is cancelled.
func (m *Manager) StartTTLWorker(ctx context.Context, r Retention, onEvict EvictCallback) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		m.logger.Info("TTL worker started",
			"interval", ttlWorkerInterval,
			"idle_ttl", r.Idle,
			"completed_retention", r.Completed,
		)

		for {
			select {
			case <-ticker.C:
				m.Sweep(ctx, r, onEvict)
			case <-ctx.Done():
				m.logger.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep evicts expired sessions and returns how many were removed. A zero
// duration disables that class of eviction.
func (m *Manager) Sweep(ctx context.Context, r Retention, onEvict EvictCallback) int {
	now := m.now()

	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	var expired []domain.SessionInfo
	for _, s := range candidates {
		if info, ok := s.expire(now, r); ok {
			expired = append(expired, info)
		}
	}

	m.mu.Lock()
	for _, info := range expired {
		delete(m.sessions, info.ID)
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	for _, info := range expired {
		m.logger.Info("TTL worker evicted session",
			"session_id", info.ID,
			"experiment_id", info.ScenarioID,
			"state", info.State,
		)
		if m.stream != nil {
			m.stream.CloseSession(info.ID)
		}
		if m.metrics != nil {
			m.metrics.SessionEvent(info.ScenarioID, events.TypeEvicted)
		}
		m.publish(ctx, events.Event{
			Type:        events.TypeEvicted,
			SessionID:   info.ID,
			ScenarioID:  info.ScenarioID,
			StudentName: info.StudentName,
			Step:        info.CurrentStep,
			Progress:    info.Progress(),
			Computed:    info.Computed,
		})
		if onEvict != nil {
			onEvict(info)
		}
	}

	if m.metrics != nil {
		m.metrics.Evicted(len(expired))
		m.metrics.SetActiveSessions(active)
	}
	m.logger.Info("TTL worker cleanup completed", "evicted", len(expired))
	return len(expired)
}

// expire decides expiry under the session lock and marks the session evicted
// so that an operation already holding a reference sees it as gone.
func (s *Session) expire(now time.Time, r Retention) (domain.SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return domain.SessionInfo{}, false
	}
	info := s.infoLocked()
	limit := r.Idle
	if info.State == domain.SessionCompleted {
		limit = r.Completed
	}
	if limit <= 0 || info.IdleFor(now) < limit {
		return info, false
	}
	s.evicted = true
	return info, true
}
