package session

import (
	"context"
	"errors"
	"strings"

	domain "nailbliss/session/internal/domain/session"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	opSignUp         = "signUp"
	opSignIn         = "signIn"
	opSignOut        = "signOut"
	opResetPassword  = "resetPassword"
	opUpdatePassword = "updatePassword"
	opVerifyRecovery = "verifyRecovery"

	resetPasswordPath = "/reset-password"
)

// SignUpInput captures the details required to register a new account.
type SignUpInput struct {
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	FullName   string      `json:"fullName"`
	Role       domain.Role `json:"role"`
	RememberMe bool        `json:"rememberMe"`
}

func (in SignUpInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required),
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Role, validation.Required, validation.By(knownRole)),
	)
}

func knownRole(value any) error {
	if role, _ := value.(domain.Role); !role.Valid() {
		return errors.New("must be customer or staff")
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// beginAction marks an action in flight and clears the previous error.
func (m *Manager) beginAction() {
	m.update(func(s *domain.AuthState) {
		s.Loading = true
		s.LastError = nil
	})
}

// SignUp registers a new account and inserts its profile row with the
// default role, points and visit count. The profile becomes the current
// user once the backend's sign-up event is observed.
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) error {
	m.beginAction()
	defer m.setLoading(false)

	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}
	if err := in.validate(); err != nil {
		return m.classify(err, opSignUp)
	}

	if !m.Probe(ctx) {
		return m.classify(domain.ErrServiceUnreachable, opSignUp)
	}

	identity, err := m.backend.SignUp(ctx, in.Email, in.Password, map[string]any{
		"full_name": in.FullName,
		"role":      string(in.Role),
	})
	if err != nil {
		return m.classify(err, opSignUp)
	}
	if identity == nil || identity.ID == "" {
		return m.classify(domain.ErrNoIdentity, opSignUp)
	}

	// The backend commits the identity asynchronously; inserting the
	// profile immediately can violate its foreign key.
	if err := m.sleep(ctx, ProfileInsertDelay); err != nil {
		return m.classify(err, opSignUp)
	}

	now := m.nowFunc().UTC()
	profile := &domain.UserProfile{
		ID:            identity.ID,
		Email:         in.Email,
		FullName:      in.FullName,
		Role:          in.Role,
		CurrentPoints: 0,
		TotalVisits:   0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.profiles.Insert(ctx, profile); err != nil {
		return m.classify(err, opSignUp)
	}

	m.persistRememberMe(ctx, in.RememberMe)
	m.logger.Info("signed up %s", identity.ID)
	return nil
}

// SignIn authenticates with email and password. The profile is loaded by
// the event reactor when the backend reports the new session.
func (m *Manager) SignIn(ctx context.Context, email, password string, rememberMe bool) error {
	m.beginAction()
	defer m.setLoading(false)

	creds := credentials{Email: normalizeEmail(email), Password: password}
	if err := creds.validate(); err != nil {
		return m.classify(err, opSignIn)
	}

	if !m.Probe(ctx) {
		return m.classify(domain.ErrServiceUnreachable, opSignIn)
	}

	if err := m.backend.SignInWithPassword(ctx, creds.Email, creds.Password); err != nil {
		return m.classify(err, opSignIn)
	}

	m.persistRememberMe(ctx, rememberMe)
	return nil
}

// SignOut ends the backend session. The remember-me flag and the current
// user are cleared even when the backend call fails, so calling it while
// already signed out is harmless.
func (m *Manager) SignOut(ctx context.Context) error {
	m.beginAction()
	defer m.setLoading(false)

	err := m.backend.SignOut(ctx)
	m.clearRememberMe(ctx)
	m.setUser(nil)
	if err != nil {
		return m.classify(err, opSignOut)
	}
	return nil
}

// ResetPassword requests a password-reset email linking back to
// {origin}/reset-password. It drives only the reset sub-state.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	m.update(func(s *domain.AuthState) {
		s.IsResettingPassword = true
		s.ResetPasswordError = ""
	})
	defer m.update(func(s *domain.AuthState) {
		s.IsResettingPassword = false
	})

	fail := func(err error) error {
		classified := m.classify(err, opResetPassword)
		m.update(func(s *domain.AuthState) {
			s.ResetPasswordError = classified.Info.Message
		})
		return classified
	}

	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return fail(validation.Errors{"email": err})
	}

	if !m.Probe(ctx) {
		return fail(domain.ErrServiceUnreachable)
	}

	if err := m.backend.ResetPasswordForEmail(ctx, email, m.RedirectTarget()); err != nil {
		return fail(err)
	}
	return nil
}

// UpdatePassword sets a new password for the signed-in user.
func (m *Manager) UpdatePassword(ctx context.Context, password string) error {
	m.beginAction()
	defer m.setLoading(false)

	if err := validation.Validate(password, validation.Required); err != nil {
		return m.classify(validation.Errors{"password": err}, opUpdatePassword)
	}

	if err := m.backend.UpdateUser(ctx, domain.UserAttributes{Password: password}); err != nil {
		return m.classify(err, opUpdatePassword)
	}
	return nil
}

// VerifyRecovery redeems the token hash from a password-recovery link. On
// success the backend reports a recovery session, after which
// UpdatePassword can set the new password.
func (m *Manager) VerifyRecovery(ctx context.Context, tokenHash string) error {
	verifier, ok := m.backend.(domain.RecoveryVerifier)
	if !ok {
		return domain.ErrRecoveryUnsupported
	}

	m.beginAction()
	defer m.setLoading(false)

	tokenHash = strings.TrimSpace(tokenHash)
	if err := validation.Validate(tokenHash, validation.Required); err != nil {
		return m.classify(validation.Errors{"tokenHash": err}, opVerifyRecovery)
	}

	if err := verifier.VerifyRecovery(ctx, tokenHash); err != nil {
		return m.classify(err, opVerifyRecovery)
	}
	return nil
}

// RedirectTarget is the reset-password link target for the current origin.
func (m *Manager) RedirectTarget() string {
	return strings.TrimRight(m.origin(), "/") + resetPasswordPath
}
