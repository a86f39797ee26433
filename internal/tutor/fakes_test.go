package tutor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/llm"
	"github.com/ashureev/ds-tutor/internal/store"
	"github.com/stretchr/testify/require"
)

const tutorReply = "🔰 Beginner: Use pandas. 📚 Intermediate: Use groupby. 🚀 Advanced: Use vectorized ops."

func newTestManager(t *testing.T, repo store.Repository, level domain.Level) *Manager {
	t.Helper()
	mgr, err := NewManager(repo, level)
	require.NoError(t, err)
	return mgr
}

func newTestConversation(t *testing.T, level domain.Level) *Conversation {
	t.Helper()
	conv, err := NewConversation("u1", "s1", level)
	require.NoError(t, err)
	return conv
}

// scriptedModel records prompts and returns reply or err.
type scriptedModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts [][]domain.Turn
}

func (m *scriptedModel) Invoke(_ context.Context, turns []domain.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, turns)
	return m.reply, m.err
}

func (m *scriptedModel) lastPrompt() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return nil
	}
	return m.prompts[len(m.prompts)-1]
}

var _ llm.Model = (*scriptedModel)(nil)

type memRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	getErr   error
	lastSeen map[string]time.Time
	deleted  int
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[string]*domain.User),
		lastSeen: make(map[string]time.Time),
	}
}

func (m *memRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memRepo) UpsertUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *memRepo) UpdateLastSeen(_ context.Context, userID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen[userID] = t
	return nil
}

func (m *memRepo) UpdateLevel(_ context.Context, userID string, level domain.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		u = &domain.User{UserID: userID}
		m.users[userID] = u
	}
	u.Level = level
	return nil
}

func (m *memRepo) DeleteInactiveUsers(context.Context, time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted++
	return 0, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

func (m *memRepo) level(userID string) domain.Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		return u.Level
	}
	return ""
}
