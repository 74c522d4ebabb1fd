package session

import (
	"context"
	"fmt"

	domain "nailbliss/session/internal/domain/session"
)

const opAuthEvent = "authStateChange"

// runReactor consumes session-change events one at a time until the
// subscription is closed or the manager is unmounted.
func (m *Manager) runReactor(ctx context.Context, sub domain.Subscription) {
	events := sub.Events()
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !m.Mounted() {
				return
			}
			m.react(ctx, ev)
		}
	}
}

// react applies one backend event to the state. Failures are logged and
// recorded as the last error; nothing is returned since the stream has no
// caller.
func (m *Manager) react(ctx context.Context, ev domain.AuthEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.classify(fmt.Errorf("handling %s event: %v", ev.Type, r), opAuthEvent)
			m.update(func(s *domain.AuthState) {
				s.User = nil
				s.Loading = false
			})
		}
	}()

	m.logger.Debug("auth event %s", ev.Type)

	switch {
	case ev.Type == domain.EventSignedOut:
		m.update(func(s *domain.AuthState) {
			s.User = nil
			s.Loading = false
		})

	case ev.Type == domain.EventPasswordRecovery:
		m.setLoading(false)

	case ev.Session.Authenticated():
		m.setLoading(true)
		userID := ev.Session.User.ID

		var (
			profile *domain.UserProfile
			err     error
		)
		if ev.Type == domain.EventSignedUp {
			profile, err = m.fetchProfileAfterSignUp(ctx, userID)
		} else {
			profile, err = m.FetchProfile(ctx, userID)
		}
		if err != nil {
			m.classify(err, opAuthEvent)
			m.logger.Error("%s: no profile for %s, user cleared", ev.Type, userID)
			profile = nil
		}
		m.update(func(s *domain.AuthState) {
			s.User = profile
			s.Loading = false
		})

	default:
		m.update(func(s *domain.AuthState) {
			s.User = nil
			s.Loading = false
		})
	}
}
