package session

import (
	"context"

	domain "nailbliss/session/internal/domain/session"
)

// Probe checks backend reachability. Any response other than a
// network-class failure proves the backend is up.
func (m *Manager) Probe(ctx context.Context) (ok bool) {
	m.setConnection(domain.StatusChecking)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connection probe failed unexpectedly: %v", r)
			m.setConnection(domain.StatusDisconnected)
			ok = false
		}
	}()

	err := m.backend.Ping(ctx)
	if err != nil && isNetworkError(err) {
		m.logger.Error("backend unreachable: %s", m.sanitizer.Sanitize(err.Error()))
		m.setConnection(domain.StatusDisconnected)
		return false
	}
	if err != nil {
		m.logger.Debug("probe returned a non-network error, backend reachable: %s", m.sanitizer.Sanitize(err.Error()))
	}
	m.setConnection(domain.StatusConnected)
	return true
}
