package memory

import (
	"context"
	"sync"

	domain "nailbliss/session/internal/domain/session"
)

// ProfileStore keeps profile rows in memory.
type ProfileStore struct {
	mu   sync.RWMutex
	rows map[string]domain.UserProfile
}

// NewProfileStore returns an empty store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{rows: make(map[string]domain.UserProfile)}
}

var _ domain.ProfileStore = (*ProfileStore)(nil)

// SelectByID returns a copy of the row or domain.ErrProfileNotFound.
func (s *ProfileStore) SelectByID(_ context.Context, id string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &row, nil
}

// Insert adds a row, failing with domain.ErrProfileExists on duplicates.
func (s *ProfileStore) Insert(_ context.Context, profile *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[profile.ID]; exists {
		return domain.ErrProfileExists
	}
	s.rows[profile.ID] = *profile
	return nil
}

// KeyValueStore is a process-local key-value store.
type KeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewKeyValueStore returns an empty store.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{values: make(map[string]string)}
}

var _ domain.KeyValueStore = (*KeyValueStore)(nil)

func (s *KeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *KeyValueStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *KeyValueStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
