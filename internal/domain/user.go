// Package domain contains core domain types for the tutor.
package domain

import (
	"time"
)

// User represents an anonymous learner and their preferred learning level.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Level      Level     `json:"level"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PreferredLevel returns the stored level, or fallback when none is set.
func (u *User) PreferredLevel(fallback Level) Level {
	if u == nil || !u.Level.Valid() {
		return fallback
	}
	return u.Level
}

// IdleFor returns how long the user has been inactive.
// Returns 0 if LastSeenAt lies in the future.
func (u *User) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(u.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}
