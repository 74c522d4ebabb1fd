package session

import (
	"context"
	"errors"
	"strings"

	domain "nailbliss/session/internal/domain/session"
)

const opFetchProfile = "fetchProfile"

// FetchProfile loads the profile row for userID. A missing row fails with a
// classified error wrapping domain.ErrProfileNotFound. No retry happens here.
func (m *Manager) FetchProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, m.classify(domain.ErrProfileNotFound, opFetchProfile)
	}

	profile, err := m.profiles.SelectByID(ctx, userID)
	if err == nil && profile == nil {
		err = domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, m.classify(err, opFetchProfile)
	}
	return profile, nil
}

// fetchProfileAfterSignUp waits for the backend to provision the profile
// row and retries once, after a fixed delay, when the row is still missing.
func (m *Manager) fetchProfileAfterSignUp(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if err := m.pause(ctx, SignUpProfileGrace); err != nil {
		return nil, err
	}

	profile, err := m.FetchProfile(ctx, userID)
	if err == nil || !errors.Is(err, domain.ErrProfileNotFound) {
		return profile, err
	}

	m.logger.Info("profile for %s not provisioned yet, retrying in %s", userID, ProfileRetryDelay)
	if err := m.pause(ctx, ProfileRetryDelay); err != nil {
		return nil, err
	}
	return m.FetchProfile(ctx, userID)
}
