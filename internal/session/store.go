// Package session owns conversation state between messages: the state store,
// duplicate-action suppression and per-chat inbound rate limiting.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
)

// Store keeps one ConversationState per chat. Load creates a fresh state on
// first contact. Callers receive copies: mutations take effect only on Save.
type Store interface {
	Load(ctx context.Context, chatID string) (*models.ConversationState, error)
	Save(ctx context.Context, state *models.ConversationState) error
}

// MemoryStore is a process-local Store. States idle for longer than ttl are
// evicted by Sweep.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*models.ConversationState
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*models.ConversationState),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (s *MemoryStore) Load(_ context.Context, chatID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[chatID]
	if !ok {
		st = models.NewConversationState(chatID, s.now())
		s.states[chatID] = st
		observability.ActiveSessions.Set(float64(len(s.states)))
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := state.Clone()
	stored.UpdatedAt = s.now().UTC()
	s.states[state.ChatID] = stored
	observability.ActiveSessions.Set(float64(len(s.states)))
	return nil
}

// Sweep evicts idle conversations and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, st := range s.states {
		if st.UpdatedAt.Before(cutoff) {
			delete(s.states, id)
			evicted++
		}
	}
	observability.ActiveSessions.Set(float64(len(s.states)))
	return evicted
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("evicted idle conversations", zap.Int("count", n))
			}
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
