package session

import (
	"context"

	domain "nailbliss/session/internal/domain/session"
)

// bootstrap reconstructs the state from the persisted remember-me intent
// and any existing backend session. It runs once per Start, never returns
// an error and always ends with loading=false. Failures degrade to a
// signed-out state.
func (m *Manager) bootstrap(ctx context.Context) {
	defer m.setLoading(false)

	if !m.Probe(ctx) {
		m.logger.Info("bootstrap: backend unreachable, starting signed out")
		return
	}
	if !m.Mounted() {
		return
	}

	remember, err := m.remember.Enabled(ctx)
	if err != nil {
		m.logger.Error("bootstrap: read remember-me flag: %v", err)
	}
	if !remember {
		if err := m.backend.SignOut(ctx); err != nil {
			m.logger.Error("bootstrap: sign out without remember-me: %s", m.sanitizer.Sanitize(err.Error()))
		}
		m.setUser(nil)
		return
	}
	if !m.Mounted() {
		return
	}

	sess, err := m.backend.GetSession(ctx)
	if err != nil {
		m.classify(err, "getSession")
		m.clearRememberMe(ctx)
		return
	}
	if !m.Mounted() {
		return
	}

	if !sess.Authenticated() {
		m.clearRememberMe(ctx)
		m.setUser(nil)
		return
	}

	profile, err := m.FetchProfile(ctx, sess.User.ID)
	if err != nil {
		m.logger.Error("bootstrap: profile for %s unavailable, starting signed out", sess.User.ID)
		m.setUser(nil)
		return
	}
	m.update(func(s *domain.AuthState) {
		s.User = profile
	})
}
