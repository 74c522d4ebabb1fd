package session

import (
	"context"
	"sync"
	"time"

	domain "nailbliss/session/internal/domain/session"
)

// Fixed waits covering eventual consistency in profile provisioning.
const (
	ProfileInsertDelay = 500 * time.Millisecond
	SignUpProfileGrace = 1000 * time.Millisecond
	ProfileRetryDelay  = 2000 * time.Millisecond
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger overrides the logger used by the manager.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSleeper overrides how the fixed consistency waits are performed.
func WithSleeper(sleep Sleeper) Option {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithOrigin sets the resolver for the current application origin, used to
// build the reset-password redirect target at call time.
func WithOrigin(origin func() string) Option {
	return func(m *Manager) {
		if origin != nil {
			m.origin = origin
		}
	}
}

// WithClock overrides the time source used for profile timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.nowFunc = now
		}
	}
}

// Manager owns the AuthState of one mounted session consumer. All state
// writes pass through update, which discards them once Close has run.
type Manager struct {
	backend   domain.AuthBackend
	profiles  domain.ProfileStore
	remember  *RememberMe
	logger    Logger
	sanitizer *LogSanitizer
	sleep     Sleeper
	origin    func() string
	nowFunc   func() time.Time

	mu          sync.Mutex
	state       domain.AuthState
	mounted     bool
	started     bool
	sub         domain.Subscription
	watchers    map[int]chan domain.AuthState
	nextWatcher int

	done      chan struct{}
	ready     chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager constructs a mounted manager in its initial state: loading,
// connection being checked, no user.
func NewManager(backend domain.AuthBackend, profiles domain.ProfileStore, store domain.KeyValueStore, opts ...Option) *Manager {
	m := &Manager{
		backend:   backend,
		profiles:  profiles,
		remember:  NewRememberMe(store),
		logger:    defLogger{},
		sanitizer: NewLogSanitizer(),
		sleep:     timerSleep,
		origin:    func() string { return "" },
		nowFunc:   time.Now,
		state: domain.AuthState{
			Loading:          true,
			ConnectionStatus: domain.StatusChecking,
		},
		mounted:  true,
		watchers: make(map[int]chan domain.AuthState),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to the backend's session-change stream and runs the
// one-shot bootstrap. Both flows write to the same state; no ordering
// between them is guaranteed. Start is a no-op after the first call or
// after Close.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || !m.mounted {
		m.mu.Unlock()
		return
	}
	m.started = true
	sub := m.backend.Subscribe()
	m.sub = sub
	m.mu.Unlock()

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.runReactor(ctx, sub)
	}()
	go func() {
		defer m.wg.Done()
		defer close(m.ready)
		m.bootstrap(ctx)
	}()
}

// Ready is closed once the bootstrap run by Start has returned.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Close unmounts the manager: later state writes become no-ops and the
// event subscription is cancelled. Backend calls already in flight are not
// cancelled; their results are discarded.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.mounted = false
		close(m.done)
		sub := m.sub
		for id, ch := range m.watchers {
			close(ch)
			delete(m.watchers, id)
		}
		m.mu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
		}
	})
}

// Wait blocks until the bootstrap and reactor goroutines have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Mounted reports whether state writes are still accepted.
func (m *Manager) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Watch returns a channel receiving the current state followed by every
// later change. Slow readers only see the most recent state. The channel
// is closed by cancel or by Close.
func (m *Manager) Watch() (<-chan domain.AuthState, func()) {
	ch := make(chan domain.AuthState, 1)

	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch
	ch <- m.state.Clone()
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.watchers[id]; ok {
			close(existing)
			delete(m.watchers, id)
		}
	}
	return ch, cancel
}

// ClearError dismisses the last classified error.
func (m *Manager) ClearError() {
	m.update(func(s *domain.AuthState) {
		s.LastError = nil
	})
}

// update applies fn to the state if the manager is still mounted and
// notifies watchers. It reports whether the write happened.
func (m *Manager) update(fn func(*domain.AuthState)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return false
	}
	fn(&m.state)

	snapshot := m.state.Clone()
	for _, ch := range m.watchers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
	return true
}

func (m *Manager) setLoading(loading bool) {
	m.update(func(s *domain.AuthState) {
		s.Loading = loading
	})
}

func (m *Manager) setUser(user *domain.UserProfile) {
	m.update(func(s *domain.AuthState) {
		s.User = user
	})
}

func (m *Manager) setConnection(status domain.ConnectionStatus) {
	m.update(func(s *domain.AuthState) {
		s.ConnectionStatus = status
	})
}

// pause waits for d, returning early once the manager is unmounted. It is
// only used on read paths, where an abandoned wait loses nothing.
func (m *Manager) pause(ctx context.Context, d time.Duration) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	return m.sleep(waitCtx, d)
}
