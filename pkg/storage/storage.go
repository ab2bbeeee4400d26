// Package storage holds the two registries behind the authentication
// service: registered users and pending authentication sessions.
package storage

import (
	"errors"
	"time"
)

// User is a registered identity and its public values, stored as
// big-endian unsigned integers.
type User struct {
	Identity  string    `json:"identity"`
	Y1        []byte    `json:"y1"`
	Y2        []byte    `json:"y2"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingSession is the state kept between issuing a challenge and
// receiving the response.
type PendingSession struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Challenge []byte    `json:"challenge"`
	R1        []byte    `json:"r1"`
	R2        []byte    `json:"r2"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore is the identity registry.
type UserStore interface {
	// PutUser stores the user, replacing any previous entry for the same
	// identity. CreatedAt of the first registration is preserved.
	PutUser(user *User) error

	// GetUser retrieves a user by identity
	GetUser(identity string) (*User, error)

	// ListUsers returns all users
	ListUsers() ([]User, error)
}

// SessionStore is the pending session registry.
type SessionStore interface {
	// CreateSession inserts a new pending session
	CreateSession(session *PendingSession) error

	// TakeSession removes and returns a pending session. Each session can
	// be taken at most once; expired sessions are reported as not found.
	TakeSession(id string) (*PendingSession, error)

	// CleanupExpiredSessions removes expired sessions and returns how many
	// were removed
	CleanupExpiredSessions() (int, error)

	// PendingSessions returns the number of sessions currently held
	PendingSessions() int
}

// Store combines both registries.
type Store interface {
	UserStore
	SessionStore

	// Close releases resources and stops background work
	Close() error

	// Ping checks if the storage is healthy
	Ping() error
}

var (
	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionNotFound indicates a session is unknown, consumed, expired or evicted
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a session ID collision
	ErrSessionExists = errors.New("session already exists")

	// ErrInvalidUser indicates a user record without identity or public values
	ErrInvalidUser = errors.New("invalid user record")
)

func validateUser(user *User) error {
	if user == nil || user.Identity == "" || len(user.Y1) == 0 || len(user.Y2) == 0 {
		return ErrInvalidUser
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (u *User) clone() *User {
	c := *u
	c.Y1 = cloneBytes(u.Y1)
	c.Y2 = cloneBytes(u.Y2)
	return &c
}

func (s *PendingSession) clone() *PendingSession {
	c := *s
	c.Challenge = cloneBytes(s.Challenge)
	c.R1 = cloneBytes(s.R1)
	c.R2 = cloneBytes(s.R2)
	return &c
}
