package storage

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
)

// MemoryStore keeps users in a map and pending sessions in a
// SessionRegistry. Users are lost on restart.
type MemoryStore struct {
	*SessionRegistry

	mu    sync.RWMutex
	users map[string]*User
	clock clockwork.Clock
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(opts SessionOptions) (*MemoryStore, error) {
	opts.setDefaults()

	sessions, err := NewSessionRegistry(opts)
	if err != nil {
		return nil, err
	}

	return &MemoryStore{
		SessionRegistry: sessions,
		users:           make(map[string]*User),
		clock:           opts.Clock,
	}, nil
}

// PutUser registers or re-registers a user
func (s *MemoryStore) PutUser(user *User) error {
	if err := validateUser(user); err != nil {
		return err
	}

	entry := user.clone()
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.CreatedAt = now
	if prev, exists := s.users[entry.Identity]; exists {
		entry.CreatedAt = prev.CreatedAt
	}
	entry.UpdatedAt = now
	s.users[entry.Identity] = entry

	return nil
}

// GetUser retrieves a user by identity
func (s *MemoryStore) GetUser(identity string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[identity]
	if !exists {
		return nil, ErrUserNotFound
	}

	return user.clone(), nil
}

// ListUsers returns all users sorted by identity
func (s *MemoryStore) ListUsers() ([]User, error) {
	s.mu.RLock()
	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user.clone())
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Identity < users[j].Identity })
	return users, nil
}

// Ping always succeeds for memory storage
func (s *MemoryStore) Ping() error {
	return nil
}

// Close stops the session sweeper
func (s *MemoryStore) Close() error {
	return s.SessionRegistry.Close()
}
