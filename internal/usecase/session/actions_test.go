package session

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "nailbliss/session/internal/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSignUpInsertsDefaultProfileAndRemembers(t *testing.T) {
	h := newHarness()
	h.backend.signUpUser = &domain.Identity{ID: "u9", Email: "jane@example.com"}
	h.profiles.On("Insert", mock.Anything, mock.MatchedBy(func(p *domain.UserProfile) bool {
		return p.ID == "u9" &&
			p.Email == "jane@example.com" &&
			p.FullName == "Jane Doe" &&
			p.Role == domain.RoleCustomer &&
			p.CurrentPoints == 0 &&
			p.TotalVisits == 0
	})).Return(nil).Once()

	err := h.manager.SignUp(context.Background(), SignUpInput{
		Email:      " Jane@Example.com ",
		Password:   "s3cret-pass",
		FullName:   "Jane Doe",
		RememberMe: true,
	})
	require.NoError(t, err)

	h.profiles.AssertExpectations(t)
	assert.Equal(t, []time.Duration{ProfileInsertDelay}, h.sleeper.Waits())
	value, ok := h.store.value(domain.RememberMeKey)
	assert.True(t, ok)
	assert.Equal(t, "true", value)

	state := h.manager.Snapshot()
	assert.False(t, state.Loading)
	assert.Nil(t, state.LastError)
	assert.Equal(t, domain.StatusConnected, state.ConnectionStatus)
}

func TestSignUpHonoursExplicitRole(t *testing.T) {
	h := newHarness()
	h.backend.signUpUser = &domain.Identity{ID: "s1"}
	h.profiles.On("Insert", mock.Anything, mock.MatchedBy(func(p *domain.UserProfile) bool {
		return p.Role == domain.RoleStaff
	})).Return(nil).Once()

	require.NoError(t, h.manager.SignUp(context.Background(), SignUpInput{
		Email: "staff@nailbliss.test", Password: "pw", FullName: "Sam", Role: domain.RoleStaff,
	}))
	h.profiles.AssertExpectations(t)
	_, ok := h.store.value(domain.RememberMeKey)
	assert.False(t, ok)
}

func TestSignUpUnreachableFailsBeforeBackendCall(t *testing.T) {
	h := newHarness()
	h.backend.pingErr = errors.New("Failed to fetch")

	err := h.manager.SignUp(context.Background(), SignUpInput{Email: "a@b.com", Password: "pw", FullName: "Jane"})

	require.Error(t, err)
	assert.Equal(t, domain.KindNetworkError, KindOf(err))
	assert.Equal(t, MessageNetworkError, err.Error())
	assert.Equal(t, []string{"ping"}, h.backend.Calls())

	state := h.manager.Snapshot()
	assert.Equal(t, domain.StatusDisconnected, state.ConnectionStatus)
	assert.False(t, state.Loading)
	require.NotNil(t, state.LastError)
	assert.Equal(t, domain.KindNetworkError, state.LastError.Kind)
}

func TestSignUpRequiresReturnedIdentity(t *testing.T) {
	h := newHarness()

	err := h.manager.SignUp(context.Background(), SignUpInput{Email: "a@b.com", Password: "pw", FullName: "Jane"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoIdentity)
	h.profiles.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	assert.False(t, h.manager.Snapshot().Loading)
}

func TestSignUpDuplicateAccount(t *testing.T) {
	h := newHarness()
	h.backend.signUpErr = &domain.BackendError{Status: 422, Code: "user_already_exists", Message: "User already registered"}

	err := h.manager.SignUp(context.Background(), SignUpInput{Email: "a@b.com", Password: "pw", FullName: "Jane"})

	require.Error(t, err)
	assert.Equal(t, domain.KindUserAlreadyExists, KindOf(err))
	assert.Empty(t, h.sleeper.Waits())
}

func TestSignUpProfileInsertFailure(t *testing.T) {
	h := newHarness()
	h.backend.signUpUser = &domain.Identity{ID: "u9"}
	h.profiles.On("Insert", mock.Anything, mock.Anything).
		Return(&domain.BackendError{Code: "42501", Message: "new row violates row-level security policy"}).Once()

	err := h.manager.SignUp(context.Background(), SignUpInput{Email: "a@b.com", Password: "pw", FullName: "Jane", RememberMe: true})

	require.Error(t, err)
	assert.Equal(t, domain.KindPermissionDenied, KindOf(err))
	_, ok := h.store.value(domain.RememberMeKey)
	assert.False(t, ok, "failed sign-up must not persist remember-me")
	assert.False(t, h.manager.Snapshot().Loading)
}

func TestSignUpValidation(t *testing.T) {
	h := newHarness()

	err := h.manager.SignUp(context.Background(), SignUpInput{Email: "not-an-email", Password: "", FullName: "Jane"})

	require.Error(t, err)
	assert.Equal(t, domain.KindUnknown, KindOf(err))
	assert.Contains(t, err.Error(), "email")
	assert.Empty(t, h.backend.Calls())
	assert.False(t, h.manager.Snapshot().Loading)
}

func TestSignInPersistsOrClearsRememberMe(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.manager.SignIn(context.Background(), "jane@example.com", "pw", true))
	value, ok := h.store.value(domain.RememberMeKey)
	require.True(t, ok)
	assert.Equal(t, "true", value)

	require.NoError(t, h.manager.SignIn(context.Background(), "jane@example.com", "pw", false))
	_, ok = h.store.value(domain.RememberMeKey)
	assert.False(t, ok)

	assert.Equal(t, []string{"ping", "signIn", "ping", "signIn"}, h.backend.Calls())
	assert.False(t, h.manager.Snapshot().Loading)
}

func TestSignInInvalidCredentials(t *testing.T) {
	h := newHarness()
	h.backend.signInErr = &domain.BackendError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}

	err := h.manager.SignIn(context.Background(), "jane@example.com", "wrong", true)

	require.Error(t, err)
	var classified *ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, domain.KindInvalidCredentials, classified.Kind())
	assert.Equal(t, opSignIn, classified.Op)
	assert.Equal(t, MessageInvalidCredentials, err.Error())

	state := h.manager.Snapshot()
	assert.False(t, state.Loading)
	assert.Equal(t, domain.StatusConnected, state.ConnectionStatus)
	_, ok := h.store.value(domain.RememberMeKey)
	assert.False(t, ok)
}

func TestSignInClearsPreviousError(t *testing.T) {
	h := newHarness()
	h.backend.signInErr = errors.New("Email not confirmed")
	require.Error(t, h.manager.SignIn(context.Background(), "jane@example.com", "pw", false))
	require.NotNil(t, h.manager.Snapshot().LastError)

	h.backend.signInErr = nil
	require.NoError(t, h.manager.SignIn(context.Background(), "jane@example.com", "pw", false))
	assert.Nil(t, h.manager.Snapshot().LastError)
}

func TestSignInUnreachable(t *testing.T) {
	h := newHarness()
	h.backend.pingErr = errors.New("network is unreachable")

	err := h.manager.SignIn(context.Background(), "jane@example.com", "pw", false)

	assert.Equal(t, domain.KindNetworkError, KindOf(err))
	assert.False(t, h.backend.called("signIn"))
}

func TestSignInNonNetworkProbeErrorStillProceeds(t *testing.T) {
	h := newHarness()
	h.backend.pingErr = &domain.BackendError{Status: 401, Message: "No API key found in request"}

	require.NoError(t, h.manager.SignIn(context.Background(), "jane@example.com", "pw", false))
	assert.True(t, h.backend.called("signIn"))
	assert.Equal(t, domain.StatusConnected, h.manager.Snapshot().ConnectionStatus)
}

func TestSignOutIsIdempotent(t *testing.T) {
	h := newHarness()
	h.store.values[domain.RememberMeKey] = "true"
	h.manager.setUser(profileFor("u1"))

	require.NoError(t, h.manager.SignOut(context.Background()))
	require.NoError(t, h.manager.SignOut(context.Background()))

	state := h.manager.Snapshot()
	assert.Nil(t, state.User)
	assert.False(t, state.Loading)
	_, ok := h.store.value(domain.RememberMeKey)
	assert.False(t, ok)
	assert.Equal(t, []string{"signOut", "signOut"}, h.backend.Calls())
}

func TestSignOutBackendFailureStillClearsLocalState(t *testing.T) {
	h := newHarness()
	h.store.values[domain.RememberMeKey] = "true"
	h.manager.setUser(profileFor("u1"))
	h.backend.signOutErr = &domain.BackendError{Status: 503, Message: "Service Unavailable"}

	err := h.manager.SignOut(context.Background())

	assert.Equal(t, domain.KindServerUnavailable, KindOf(err))
	state := h.manager.Snapshot()
	assert.Nil(t, state.User)
	assert.False(t, state.Loading)
	_, ok := h.store.value(domain.RememberMeKey)
	assert.False(t, ok)
}

func TestResetPasswordBuildsRedirectFromOrigin(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.manager.ResetPassword(context.Background(), "jane@example.com"))

	assert.Equal(t, "https://book.nailbliss.test/reset-password", h.backend.redirectTo)
	state := h.manager.Snapshot()
	assert.False(t, state.IsResettingPassword)
	assert.Empty(t, state.ResetPasswordError)
}

func TestResetPasswordFailureSetsResetError(t *testing.T) {
	h := newHarness()
	h.backend.resetErr = &domain.BackendError{Status: 500, Message: "Error sending recovery email"}

	err := h.manager.ResetPassword(context.Background(), "jane@example.com")

	require.Error(t, err)
	state := h.manager.Snapshot()
	assert.False(t, state.IsResettingPassword)
	assert.Equal(t, MessageServerUnavailable, state.ResetPasswordError)
	assert.Equal(t, MessageServerUnavailable, err.Error())
}

func TestResetPasswordUnreachable(t *testing.T) {
	h := newHarness()
	h.backend.pingErr = errors.New("Failed to fetch")

	err := h.manager.ResetPassword(context.Background(), "jane@example.com")

	assert.Equal(t, domain.KindNetworkError, KindOf(err))
	assert.False(t, h.backend.called("resetPassword"))
	state := h.manager.Snapshot()
	assert.Equal(t, MessageNetworkError, state.ResetPasswordError)
	assert.False(t, state.IsResettingPassword)
}

func TestUpdatePassword(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.manager.UpdatePassword(context.Background(), "new-secret"))
	assert.Equal(t, []string{"updateUser"}, h.backend.Calls())

	h.backend.updateErr = &domain.BackendError{Status: 422, Code: "same_password", Message: "New password should be different from the old password."}
	err := h.manager.UpdatePassword(context.Background(), "new-secret")
	require.Error(t, err)
	assert.Equal(t, "New password should be different from the old password.", err.Error())
	assert.False(t, h.manager.Snapshot().Loading)

	err = h.manager.UpdatePassword(context.Background(), "")
	require.Error(t, err)
	assert.Len(t, h.backend.Calls(), 2)
}

func TestActionsAfterUnmountDoNotWriteState(t *testing.T) {
	h := newHarness()
	h.manager.Close()
	before := h.manager.Snapshot()

	require.NoError(t, h.manager.SignIn(context.Background(), "jane@example.com", "pw", true))

	assert.Equal(t, before, h.manager.Snapshot())
	assert.True(t, h.backend.called("signIn"), "in-flight work is not cancelled by unmount")
}

func TestSignUpRejectsUnknownRole(t *testing.T) {
	h := newHarness()

	err := h.manager.SignUp(context.Background(), SignUpInput{
		Email: "jane@example.com", Password: "pw", FullName: "Jane", Role: "owner",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "role")
	assert.Empty(t, h.backend.Calls())
}

func TestVerifyRecoveryWithoutCapableBackend(t *testing.T) {
	h := newHarness()
	before := h.manager.Snapshot()

	err := h.manager.VerifyRecovery(context.Background(), "hash")

	assert.ErrorIs(t, err, domain.ErrRecoveryUnsupported)
	assert.Equal(t, before, h.manager.Snapshot())
}
