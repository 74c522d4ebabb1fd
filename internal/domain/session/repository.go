package session

import "context"

// RememberMeKey is the fixed key under which the remember-me flag is persisted.
const RememberMeKey = "nailbliss_remember_me"

// UserAttributes carries the fields an authenticated user may update.
type UserAttributes struct {
	Password string
}

// Subscription delivers session-change events until Unsubscribe is called.
// Events is closed by Unsubscribe.
type Subscription interface {
	Events() <-chan AuthEvent
	Unsubscribe()
}

// HealthChecker performs the cheapest available reachability call.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AuthBackend is the authentication service collaborator.
type AuthBackend interface {
	HealthChecker
	GetSession(ctx context.Context) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, attrs UserAttributes) error
	Subscribe() Subscription
}

// RecoveryVerifier is implemented by backends that can redeem a
// password-recovery link into a session.
type RecoveryVerifier interface {
	VerifyRecovery(ctx context.Context, tokenHash string) error
}

// ProfileStore defines persistence operations for profile rows.
type ProfileStore interface {
	SelectByID(ctx context.Context, id string) (*UserProfile, error)
	Insert(ctx context.Context, profile *UserProfile) error
}

// KeyValueStore is a small persistent string store. Get reports ok=false
// when the key is absent.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
