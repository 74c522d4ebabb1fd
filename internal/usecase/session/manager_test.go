package session

import (
	"context"
	"testing"
	"time"

	domain "nailbliss/session/internal/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewManagerInitialState(t *testing.T) {
	h := newHarness()

	state := h.manager.Snapshot()
	assert.True(t, state.Loading)
	assert.Equal(t, domain.StatusChecking, state.ConnectionStatus)
	assert.Nil(t, state.User)
	assert.Nil(t, state.LastError)
	assert.True(t, h.manager.Mounted())
}

func TestStartFreshInstallEndsSignedOut(t *testing.T) {
	h := newHarness()

	h.manager.Start(context.Background())
	require.Eventually(t, func() bool {
		return !h.manager.Snapshot().Loading
	}, time.Second, 5*time.Millisecond)
	h.manager.Close()
	h.manager.Wait()

	state := h.manager.Snapshot()
	assert.Nil(t, state.User)
	assert.Equal(t, domain.StatusConnected, state.ConnectionStatus)
	assert.False(t, h.backend.called("getSession"))
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness()
	h.manager.Start(context.Background())
	h.manager.Start(context.Background())
	h.manager.Close()
	h.manager.Wait()

	subscribes := 0
	for _, c := range h.backend.Calls() {
		if c == "subscribe" {
			subscribes++
		}
	}
	assert.Equal(t, 1, subscribes)
}

func TestStartAfterCloseDoesNothing(t *testing.T) {
	h := newHarness()
	h.manager.Close()
	h.manager.Start(context.Background())
	h.manager.Wait()

	assert.Empty(t, h.backend.Calls())
}

func TestWatchDeliversCurrentAndLaterStates(t *testing.T) {
	h := newHarness()
	updates, cancel := h.manager.Watch()
	defer cancel()

	first := <-updates
	assert.True(t, first.Loading)

	h.manager.setLoading(false)
	next := <-updates
	assert.False(t, next.Loading)
}

func TestWatchKeepsOnlyLatestForSlowReaders(t *testing.T) {
	h := newHarness()
	updates, cancel := h.manager.Watch()
	defer cancel()

	h.manager.setConnection(domain.StatusConnected)
	h.manager.setConnection(domain.StatusDisconnected)

	latest := <-updates
	assert.Equal(t, domain.StatusDisconnected, latest.ConnectionStatus)
}

func TestCloseClosesWatchers(t *testing.T) {
	h := newHarness()
	updates, _ := h.manager.Watch()
	<-updates

	h.manager.Close()
	_, open := <-updates
	assert.False(t, open)

	late, cancel := h.manager.Watch()
	defer cancel()
	_, open = <-late
	assert.False(t, open)
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness()
	h.manager.setUser(profileFor("u1"))

	snap := h.manager.Snapshot()
	snap.User.FullName = "mutated"

	assert.Equal(t, "Test u1", h.manager.Snapshot().User.FullName)
}

func TestClearError(t *testing.T) {
	h := newHarness()
	h.manager.classify(&domain.BackendError{Status: 400, Code: "invalid_credentials", Message: "x"}, "signIn")
	require.NotNil(t, h.manager.Snapshot().LastError)

	h.manager.ClearError()
	assert.Nil(t, h.manager.Snapshot().LastError)
}

func TestPauseReturnsEarlyOnUnmount(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend, &MockProfiles{}, newMemoryKV(), WithLogger(testLogger{}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.pause(context.Background(), time.Hour)
	}()
	m.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pause did not return after Close")
	}
}

func TestFetchProfileTreatsNilRowAsNotFound(t *testing.T) {
	h := newHarness()
	h.profiles.On("SelectByID", mock.Anything, "ghost").Return(nil, nil).Once()

	_, err := h.manager.FetchProfile(context.Background(), "ghost")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	assert.Equal(t, MessageProfileNotFound, err.Error())
}

func TestRememberMeOnlyAcceptsExactTrue(t *testing.T) {
	store := newMemoryKV()
	remember := NewRememberMe(store)
	ctx := context.Background()

	enabled, err := remember.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	store.values[domain.RememberMeKey] = "TRUE"
	enabled, _ = remember.Enabled(ctx)
	assert.False(t, enabled)

	require.NoError(t, remember.Set(ctx, true))
	enabled, _ = remember.Enabled(ctx)
	assert.True(t, enabled)

	require.NoError(t, remember.Set(ctx, false))
	_, ok := store.value(domain.RememberMeKey)
	assert.False(t, ok)
}
