package tutor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/session"
)

// Conversation is one learner's tutoring session: the turn history, the
// current level and the exchanges shown since the last reset.
type Conversation struct {
	userID    string
	sessionID string
	store     *session.Store

	// turnMu serializes Ask and Reset so a reset never lands between the
	// model call and the appends of an in-flight turn.
	turnMu sync.Mutex

	mu         sync.RWMutex
	level      domain.Level
	exchanges  []domain.Exchange
	lastActive time.Time
}

// NewConversation creates an empty conversation at level.
func NewConversation(userID, sessionID string, level domain.Level) (*Conversation, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("new conversation: %w: %q", domain.ErrInvalidLevel, string(level))
	}
	return &Conversation{
		userID:     userID,
		sessionID:  sessionID,
		store:      session.New(),
		level:      level,
		lastActive: time.Now(),
	}, nil
}

// ID returns the identifier of the underlying session store.
func (c *Conversation) ID() string { return c.store.ID() }

// UserID returns the owning user.
func (c *Conversation) UserID() string { return c.userID }

// SessionID returns the browser tab or CLI session.
func (c *Conversation) SessionID() string { return c.sessionID }

// Level returns the level used for the next turn.
func (c *Conversation) Level() domain.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// SetLevel changes the level for subsequent turns. Turns already stored are
// not touched.
func (c *Conversation) SetLevel(level domain.Level) error {
	if !level.Valid() {
		return fmt.Errorf("set level: %w: %q", domain.ErrInvalidLevel, string(level))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
	c.lastActive = time.Now()
	return nil
}

// Turns returns a copy of the stored history.
func (c *Conversation) Turns() []domain.Turn {
	return c.store.Turns()
}

// Exchanges returns a copy of the exchanges since the last reset.
func (c *Conversation) Exchanges() []domain.Exchange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Exchange, len(c.exchanges))
	copy(out, c.exchanges)
	return out
}

// LastActive returns when the conversation was last used.
func (c *Conversation) LastActive() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActive
}

func (c *Conversation) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *Conversation) record(query, answer string) {
	c.store.AppendUser(query)
	c.store.AppendAssistant(answer)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, domain.Exchange{Query: query, Answer: answer})
	c.lastActive = time.Now()
}

func (c *Conversation) clear() {
	c.store.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = nil
	c.lastActive = time.Now()
}
