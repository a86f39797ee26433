// Package session holds the turn history of a single tutoring conversation.
package session

import (
	"sync"

	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/google/uuid"
)

// Store is the canonical, append-only turn history for one conversation.
// Turns are kept in insertion order until Clear removes all of them.
type Store struct {
	id    string
	mu    sync.RWMutex
	turns []domain.Turn
}

// New creates an empty Store with a unique UUIDv7 identifier.
func New() *Store {
	return &Store{
		id: uuid.Must(uuid.NewV7()).String(),
	}
}

// ID returns the store identifier.
func (s *Store) ID() string {
	return s.id
}

// AppendUser adds a user turn. Any text, including "", is stored as-is.
func (s *Store) AppendUser(text string) {
	s.append(domain.NewTurn(domain.RoleUser, text))
}

// AppendAssistant adds an assistant turn.
func (s *Store) AppendAssistant(text string) {
	s.append(domain.NewTurn(domain.RoleAssistant, text))
}

func (s *Store) append(t domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// Turns returns a copy of the history in insertion order.
func (s *Store) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]domain.Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

// Len returns the number of stored turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Clear removes every turn. Calling it on an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}
