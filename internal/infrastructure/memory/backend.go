package memory

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	domain "nailbliss/session/internal/domain/session"
	"nailbliss/session/internal/infrastructure/broadcast"
	"nailbliss/session/internal/infrastructure/token"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = &domain.BackendError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	errEmailNotConfirmed  = &domain.BackendError{Status: http.StatusBadRequest, Code: "email_not_confirmed", Message: "Email not confirmed"}
	errUserExists         = &domain.BackendError{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	errNoSession          = &domain.BackendError{Status: http.StatusUnauthorized, Code: "session_not_found", Message: "Auth session missing!"}
	errRecoveryExpired    = &domain.BackendError{Status: http.StatusForbidden, Code: "otp_expired", Message: "Email link is invalid or has expired"}
)

type account struct {
	identity     domain.Identity
	passwordHash []byte
	confirmed    bool
}

// RecoveryRequest records a password-reset email the backend would have sent.
type RecoveryRequest struct {
	Email      string
	RedirectTo string
	TokenHash  string
	SentAt     time.Time
}

// BackendOption customises the in-memory backend.
type BackendOption func(*Backend)

// WithEmailConfirmation makes sign-up withhold a session until ConfirmEmail is called.
func WithEmailConfirmation() BackendOption {
	return func(b *Backend) {
		b.requireConfirmation = true
	}
}

// Backend is an in-process auth service for local development and tests.
// It speaks the same error codes as the hosted service.
type Backend struct {
	mu                  sync.Mutex
	accounts            map[string]*account
	current             *domain.Session
	reachable           bool
	requireConfirmation bool
	recoveries          []RecoveryRequest

	tokens  *token.JWTManager
	events  *broadcast.Broadcaster
	nowFunc func() time.Time
}

// NewBackend constructs a reachable backend issuing tokens with tokens.
func NewBackend(tokens *token.JWTManager, opts ...BackendOption) *Backend {
	b := &Backend{
		accounts:  make(map[string]*account),
		reachable: true,
		tokens:    tokens,
		events:    broadcast.New(broadcast.LogMissed),
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ domain.AuthBackend = (*Backend)(nil)

// SetReachable simulates the backend going offline or coming back.
func (b *Backend) SetReachable(reachable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reachable = reachable
}

func (b *Backend) checkReachable() error {
	if !b.reachable {
		return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return nil
}

// Ping reports whether the backend is reachable.
func (b *Backend) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkReachable()
}

// GetSession returns the current session, or nil when signed out.
func (b *Backend) GetSession(context.Context) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReachable(); err != nil {
		return nil, err
	}
	return copySession(b.current), nil
}

// SignUp registers an account. Without email confirmation the new session
// starts immediately and a SIGNED_UP event is published.
func (b *Backend) SignUp(_ context.Context, email, password string, metadata map[string]any) (*domain.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReachable(); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, &domain.BackendError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Signup requires a valid password"}
	}
	if _, exists := b.accounts[email]; exists {
		return nil, errUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acct := &account{
		identity: domain.Identity{
			ID:       uuid.NewString(),
			Email:    email,
			Metadata: metadata,
		},
		passwordHash: hashed,
		confirmed:    !b.requireConfirmation,
	}
	b.accounts[email] = acct

	identity := acct.identity
	if !acct.confirmed {
		return &identity, nil
	}
	if err := b.startSession(acct, domain.EventSignedUp); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ConfirmEmail marks an account as confirmed.
func (b *Backend) ConfirmEmail(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[strings.TrimSpace(strings.ToLower(email))]
	if ok {
		acct.confirmed = true
	}
	return ok
}

// SignInWithPassword verifies credentials and starts a session.
func (b *Backend) SignInWithPassword(_ context.Context, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReachable(); err != nil {
		return err
	}

	acct, ok := b.accounts[email]
	if !ok {
		return errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return errInvalidCredentials
	}
	if !acct.confirmed {
		return errEmailNotConfirmed
	}
	return b.startSession(acct, domain.EventSignedIn)
}

// SignOut ends the current session. It succeeds when already signed out.
func (b *Backend) SignOut(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReachable(); err != nil {
		return err
	}
	b.current = nil
	b.events.Publish(domain.AuthEvent{Type: domain.EventSignedOut})
	return nil
}

// ResetPasswordForEmail records a recovery request. Unknown addresses are
// accepted silently so callers cannot probe for accounts.
func (b *Backend) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReachable(); err != nil {
		return err
	}
	if _, ok := b.accounts[email]; !ok {
		return nil
	}
	b.recoveries = append(b.recoveries, RecoveryRequest{
		Email:      email,
		RedirectTo: redirectTo,
		TokenHash:  uuid.NewString(),
		SentAt:     b.nowFunc().UTC(),
	})
	return nil
}

// Recoveries lists the recovery emails sent so far.
func (b *Backend) Recoveries() []RecoveryRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecoveryRequest(nil), b.recoveries...)
}

// VerifyRecovery consumes a recovery token, as following the emailed link
// does, and starts a recovery session.
func (b *Backend) VerifyRecovery(_ context.Context, tokenHash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReachable(); err != nil {
		return err
	}
	for i, req := range b.recoveries {
		if req.TokenHash != tokenHash {
			continue
		}
		b.recoveries = append(b.recoveries[:i], b.recoveries[i+1:]...)
		acct, ok := b.accounts[req.Email]
		if !ok {
			break
		}
		return b.startSession(acct, domain.EventPasswordRecovery)
	}
	return errRecoveryExpired
}

// UpdateUser changes the password of the signed-in account.
func (b *Backend) UpdateUser(_ context.Context, attrs domain.UserAttributes) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReachable(); err != nil {
		return err
	}
	if !b.current.Authenticated() {
		return errNoSession
	}
	acct, ok := b.accounts[b.current.User.Email]
	if !ok {
		return errNoSession
	}
	if attrs.Password != "" {
		if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(attrs.Password)) == nil {
			return &domain.BackendError{Status: http.StatusUnprocessableEntity, Code: "same_password", Message: "New password should be different from the old password."}
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(attrs.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		acct.passwordHash = hashed
	}
	b.events.Publish(domain.AuthEvent{Type: domain.EventUserUpdated, Session: copySession(b.current)})
	return nil
}

// Subscribe returns a subscription whose first event is INITIAL_SESSION.
func (b *Backend) Subscribe() domain.Subscription {
	b.mu.Lock()
	initial := domain.AuthEvent{Type: domain.EventInitialSession, Session: copySession(b.current)}
	b.mu.Unlock()
	return b.events.Subscribe(initial)
}

func (b *Backend) startSession(acct *account, event domain.EventType) error {
	accessToken, expiresAt, err := b.tokens.Generate(acct.identity)
	if err != nil {
		return err
	}
	identity := acct.identity
	b.current = &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    expiresAt,
		User:         &identity,
	}
	b.events.Publish(domain.AuthEvent{Type: event, Session: copySession(b.current)})
	return nil
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return &out
}
