package session

import (
	"context"
	"sync"
	"time"

	domain "nailbliss/session/internal/domain/session"

	"github.com/stretchr/testify/mock"
)

type fakeSubscription struct {
	events chan domain.AuthEvent
	once   sync.Once
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		events: make(chan domain.AuthEvent, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeSubscription) Events() <-chan domain.AuthEvent { return s.events }

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.closed) })
}

func (s *fakeSubscription) unsubscribed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeBackend records calls and returns configured results.
type fakeBackend struct {
	mu sync.Mutex

	pingErr    error
	pingPanic  bool
	session    *domain.Session
	sessionErr error
	signUpUser *domain.Identity
	signUpErr  error
	signInErr  error
	signOutErr error
	resetErr   error
	updateErr  error

	calls      []string
	redirectTo string
	sub        *fakeSubscription
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sub: newFakeSubscription()}
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) called(call string) bool {
	for _, c := range b.Calls() {
		if c == call {
			return true
		}
	}
	return false
}

func (b *fakeBackend) Ping(context.Context) error {
	b.record("ping")
	if b.pingPanic {
		panic("probe exploded")
	}
	return b.pingErr
}

func (b *fakeBackend) GetSession(context.Context) (*domain.Session, error) {
	b.record("getSession")
	return b.session, b.sessionErr
}

func (b *fakeBackend) SignUp(_ context.Context, _, _ string, _ map[string]any) (*domain.Identity, error) {
	b.record("signUp")
	return b.signUpUser, b.signUpErr
}

func (b *fakeBackend) SignInWithPassword(context.Context, string, string) error {
	b.record("signIn")
	return b.signInErr
}

func (b *fakeBackend) SignOut(context.Context) error {
	b.record("signOut")
	return b.signOutErr
}

func (b *fakeBackend) ResetPasswordForEmail(_ context.Context, _ string, redirectTo string) error {
	b.record("resetPassword")
	b.mu.Lock()
	b.redirectTo = redirectTo
	b.mu.Unlock()
	return b.resetErr
}

func (b *fakeBackend) UpdateUser(context.Context, domain.UserAttributes) error {
	b.record("updateUser")
	return b.updateErr
}

func (b *fakeBackend) Subscribe() domain.Subscription {
	b.record("subscribe")
	return b.sub
}

// MockProfiles is a testify mock of domain.ProfileStore.
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) SelectByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	args := m.Called(ctx, id)
	var profile *domain.UserProfile
	if v := args.Get(0); v != nil {
		profile = v.(*domain.UserProfile)
	}
	return profile, args.Error(1)
}

func (m *MockProfiles) Insert(ctx context.Context, profile *domain.UserProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (s *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memoryKV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memoryKV) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *memoryKV) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// recordingSleeper returns immediately and remembers requested durations.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type harness struct {
	backend  *fakeBackend
	profiles *MockProfiles
	store    *memoryKV
	sleeper  *recordingSleeper
	manager  *Manager
}

func newHarness() *harness {
	h := &harness{
		backend:  newFakeBackend(),
		profiles: &MockProfiles{},
		store:    newMemoryKV(),
		sleeper:  &recordingSleeper{},
	}
	h.manager = NewManager(h.backend, h.profiles, h.store,
		WithLogger(testLogger{}),
		WithSleeper(h.sleeper.Sleep),
		WithOrigin(func() string { return "https://book.nailbliss.test/" }),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }),
	)
	return h
}

func sessionFor(id string) *domain.Session {
	return &domain.Session{
		AccessToken: "token-" + id,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        &domain.Identity{ID: id, Email: id + "@example.com"},
	}
}

func profileFor(id string) *domain.UserProfile {
	return &domain.UserProfile{
		ID:       id,
		Email:    id + "@example.com",
		FullName: "Test " + id,
		Role:     domain.RoleCustomer,
	}
}
