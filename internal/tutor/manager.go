package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/store"
)

// Manager owns the live conversations, keyed by user and tab session.
// Conversations live in memory only.
type Manager struct {
	repo         store.Repository
	defaultLevel domain.Level

	mu     sync.RWMutex
	active map[string]map[string]*Conversation
}

// NewManager creates a manager. repo may be nil, in which case every new
// conversation starts at defaultLevel.
func NewManager(repo store.Repository, defaultLevel domain.Level) (*Manager, error) {
	if !defaultLevel.Valid() {
		return nil, fmt.Errorf("new manager: %w: %q", domain.ErrInvalidLevel, string(defaultLevel))
	}
	return &Manager{
		repo:         repo,
		defaultLevel: defaultLevel,
		active:       make(map[string]map[string]*Conversation),
	}, nil
}

// Get returns the conversation for a user and session, or nil.
func (m *Manager) Get(userID, sessionID string) *Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// GetOrCreate returns the existing conversation or creates one at the user's
// preferred level.
func (m *Manager) GetOrCreate(ctx context.Context, userID, sessionID string) (*Conversation, error) {
	if conv := m.Get(userID, sessionID); conv != nil {
		return conv, nil
	}

	level, err := m.preferredLevel(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*Conversation)
	}
	// Another request may have won the race while the level was loaded.
	if conv, exists := m.active[userID][sessionID]; exists {
		return conv, nil
	}

	conv, err := NewConversation(userID, sessionID, level)
	if err != nil {
		return nil, err
	}
	m.active[userID][sessionID] = conv
	slog.Info("Conversation created",
		"user_id", userID,
		"session_id", sessionID,
		"conversation_id", conv.ID(),
		"level", level)
	return conv, nil
}

func (m *Manager) preferredLevel(ctx context.Context, userID string) (domain.Level, error) {
	if m.repo == nil {
		return m.defaultLevel, nil
	}
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load preferred level: %w", err)
	}
	return user.PreferredLevel(m.defaultLevel), nil
}

// Destroy removes one conversation and reports whether it existed.
func (m *Manager) Destroy(userID, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return false
	}
	_, exists := sessions[sessionID]
	if exists {
		delete(sessions, sessionID)
		slog.Info("Conversation destroyed", "user_id", userID, "session_id", sessionID)
	}
	if len(sessions) == 0 {
		delete(m.active, userID)
	}
	return exists
}

// EvictIdle destroys conversations not used within ttl of now and returns
// how many were removed.
func (m *Manager) EvictIdle(ttl time.Duration, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for userID, sessions := range m.active {
		for sid, conv := range sessions {
			if now.Sub(conv.LastActive()) < ttl {
				continue
			}
			delete(sessions, sid)
			evicted++
			slog.Debug("Idle conversation evicted",
				"user_id", userID,
				"session_id", sid,
				"idle", now.Sub(conv.LastActive()))
		}
		if len(sessions) == 0 {
			delete(m.active, userID)
		}
	}
	return evicted
}

// Len returns the number of live conversations.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}
