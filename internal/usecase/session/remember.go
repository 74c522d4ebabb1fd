package session

import (
	"context"

	domain "nailbliss/session/internal/domain/session"
)

const rememberMeEnabled = "true"

// RememberMe reads and writes the persisted "stay signed in" opt-in under
// the fixed remember-me key.
type RememberMe struct {
	store domain.KeyValueStore
}

// NewRememberMe wraps a key-value store.
func NewRememberMe(store domain.KeyValueStore) *RememberMe {
	return &RememberMe{store: store}
}

// Enabled reports whether the stored value is exactly "true".
func (r *RememberMe) Enabled(ctx context.Context) (bool, error) {
	value, ok, err := r.store.Get(ctx, domain.RememberMeKey)
	if err != nil {
		return false, err
	}
	return ok && value == rememberMeEnabled, nil
}

// Set persists the flag when enabled and removes it otherwise.
func (r *RememberMe) Set(ctx context.Context, enabled bool) error {
	if !enabled {
		return r.Clear(ctx)
	}
	return r.store.Set(ctx, domain.RememberMeKey, rememberMeEnabled)
}

// Clear removes the flag.
func (r *RememberMe) Clear(ctx context.Context) error {
	return r.store.Remove(ctx, domain.RememberMeKey)
}

func (m *Manager) persistRememberMe(ctx context.Context, enabled bool) {
	if err := m.remember.Set(ctx, enabled); err != nil {
		m.logger.Error("persist remember-me flag: %v", err)
	}
}

func (m *Manager) clearRememberMe(ctx context.Context) {
	if err := m.remember.Clear(ctx); err != nil {
		m.logger.Error("clear remember-me flag: %v", err)
	}
}
