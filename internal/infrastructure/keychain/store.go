package keychain

import (
	"context"
	"errors"
	"fmt"

	domain "nailbliss/session/internal/domain/session"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service name entries are stored under.
const DefaultService = "com.nailbliss.app"

// Store persists small values in the operating system keychain.
type Store struct {
	service string
}

// NewStore returns a keychain store scoped to service.
func NewStore(service string) *Store {
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

var _ domain.KeyValueStore = (*Store)(nil)

// Get reads key; a missing entry is reported as ok=false.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	value, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes key.
func (s *Store) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key; removing a missing entry succeeds.
func (s *Store) Remove(_ context.Context, key string) error {
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
