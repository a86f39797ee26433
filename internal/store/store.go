// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
)

// Repository persists anonymous learners and their preferred level.
// Conversation turns are never stored here.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when the
	// user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record. An empty Level keeps the
	// stored preference.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// UpdateLevel stores the user's preferred learning level.
	UpdateLevel(ctx context.Context, userID string, level domain.Level) error

	// DeleteInactiveUsers removes users not seen within olderThan.
	DeleteInactiveUsers(ctx context.Context, olderThan time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
