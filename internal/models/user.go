package models

import "time"

// User is a registered account. Email is stored lower-cased.
type User struct {
	ID           string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// Persistence controls how long a signed-in session survives.
type Persistence string

const (
	// PersistenceSession ends with the client session (short-lived token,
	// browser-session cookie).
	PersistenceSession Persistence = "session"
	// PersistenceLocal survives restarts of the client.
	PersistenceLocal Persistence = "local"
)

// Session is an authenticated sign-in issued by the identity service.
type Session struct {
	Token       string
	UserID      string
	Email       string
	Persistence Persistence
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
