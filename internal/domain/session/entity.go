package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProfileNotFound indicates the profile row for a user does not exist (yet).
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists signals a duplicate profile insert.
	ErrProfileExists = errors.New("profile already exists")
	// ErrServiceUnreachable is raised when the health probe fails before an action.
	ErrServiceUnreachable = errors.New("network error: authentication service unreachable")
	// ErrNoIdentity indicates the backend accepted a sign-up without returning a user.
	ErrNoIdentity = errors.New("sign-up did not return a user")
	// ErrRecoveryUnsupported indicates the backend cannot redeem recovery links.
	ErrRecoveryUnsupported = errors.New("password recovery links are not supported by this backend")
)

// Role identifies the kind of account behind a profile.
type Role string

const (
	// RoleCustomer is the default role assigned at sign-up.
	RoleCustomer Role = "customer"
	// RoleStaff marks salon staff accounts.
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleStaff
}

// UserProfile is the application-level user record, separate from the
// backend identity record.
type UserProfile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	Role          Role      `json:"role"`
	CurrentPoints int       `json:"currentPoints"`
	TotalVisits   int       `json:"totalVisits"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ConnectionStatus is the last known backend reachability.
type ConnectionStatus string

const (
	StatusChecking     ConnectionStatus = "checking"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// ErrorKind is the closed taxonomy of classified failures.
type ErrorKind string

const (
	KindNetworkError       ErrorKind = "network_error"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindEmailNotConfirmed  ErrorKind = "email_not_confirmed"
	KindUserAlreadyExists  ErrorKind = "user_already_exists"
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindServerUnavailable  ErrorKind = "server_unavailable"
	KindUnknown            ErrorKind = "unknown"
)

// ErrorInfo is a classified failure: a taxonomy kind plus a user-facing message.
// Raw holds the original cause for logging only.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Raw     error     `json:"-"`
}

// AuthState is the single state record exposed to UI consumers.
type AuthState struct {
	User                *UserProfile     `json:"user"`
	Loading             bool             `json:"loading"`
	ConnectionStatus    ConnectionStatus `json:"connectionStatus"`
	LastError           *ErrorInfo       `json:"lastError"`
	IsResettingPassword bool             `json:"isResettingPassword"`
	ResetPasswordError  string           `json:"resetPasswordError,omitempty"`
}

// Clone returns a copy that shares no pointers with s.
func (s AuthState) Clone() AuthState {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	return out
}

// Identity is the backend's authenticated identity record.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is a backend session as returned by the auth service.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *Identity `json:"user"`
}

// Authenticated reports whether the session carries an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil && s.User.ID != ""
}

// EventType enumerates backend session-change events.
type EventType string

const (
	EventInitialSession   EventType = "INITIAL_SESSION"
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventSignedUp         EventType = "SIGNED_UP"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
	EventUserUpdated      EventType = "USER_UPDATED"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
)

// AuthEvent is one message on the backend's session-change stream.
type AuthEvent struct {
	Type    EventType
	Session *Session
}

// BackendError is a failure reported by the auth service or profile storage.
// Status is the HTTP status when known, Code the service error code.
type BackendError struct {
	Status  int
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
	case e.Code != "":
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}
