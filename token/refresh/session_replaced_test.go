package refresh_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/jrsteele09/dashboard-session/sessions"
	fakesessionstore "github.com/jrsteele09/dashboard-session/sessions/repofakes"
	"github.com/jrsteele09/dashboard-session/token"
	"github.com/jrsteele09/dashboard-session/token/refresh"
	"github.com/jrsteele09/dashboard-session/token/refresh/refresherfake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// gatedStore blocks Clear until the gate is closed.
type gatedStore struct {
	*fakesessionstore.FakeSessionStore
	clearing chan struct{}
	gate     chan struct{}
}

func (s *gatedStore) Clear(ctx context.Context) error {
	s.clearing <- struct{}{}
	<-s.gate
	return s.FakeSessionStore.Clear(ctx)
}

type outcome struct {
	creds sessions.Credentials
	err   error
}

func validCredentialsAsync(c *refresh.Coordinator) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		creds, err := c.ValidCredentials(context.Background())
		ch <- outcome{creds: creds, err: err}
	}()
	return ch
}

func TestRefreshStartedDuringLogoutIsDiscarded(t *testing.T) {
	store := &gatedStore{
		FakeSessionStore: fakesessionstore.NewFakeSessionStore(),
		clearing:         make(chan struct{}, 1),
		gate:             make(chan struct{}),
	}
	refresher := refresherfake.NewFakeRefresher(refresherfake.Access(freshToken("u1")))
	terminator := sessions.NewTerminator(store, sessions.WithTerminatorLogger(zerolog.Nop()))
	coord := refresh.NewCoordinator(store, refresher, token.NewEvaluator(token.DefaultMargin), terminator,
		refresh.WithLogger(zerolog.Nop()))
	terminator.Track(coord)

	stale := staleToken("u1")
	exp, err := token.ExpiryOf(stale)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sessions.Credentials{AccessToken: stale, RefreshToken: "R1", AccessExpiresAt: exp}))
	refresher.Hold()

	terminated := make(chan error, 1)
	go func() { terminated <- terminator.Terminate(context.Background(), errors.ErrLoggedOut) }()
	<-store.clearing

	// The session is still readable while Clear is blocked, so this starts a
	// refresh for the session being logged out.
	result := validCredentialsAsync(coord)
	<-refresher.Started()

	close(store.gate)
	require.NoError(t, <-terminated)
	refresher.Release()

	out := <-result
	require.ErrorIs(t, out.err, errors.ErrNoSession)
	require.Nil(t, store.Raw())

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRefreshDoesNotOverwriteNewLogin(t *testing.T) {
	f := setupTestFixture(t, []refresherfake.Result{refresherfake.Rotate(freshToken("u1"), "R-old-2")})
	f.login(t, staleToken("u1"), "R-old")
	f.refresher.Hold()

	result := validCredentialsAsync(f.coord)
	<-f.refresher.Started()

	newAccess := freshToken("u2")
	f.login(t, newAccess, "R-new")
	f.refresher.Release()

	out := <-result
	require.NoError(t, out.err)
	require.Equal(t, newAccess, out.creds.AccessToken)
	require.Equal(t, "R-new", out.creds.RefreshToken)

	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, newAccess, stored.AccessToken)
	require.Equal(t, "R-new", stored.RefreshToken)
	require.Zero(t, f.logoutCount())
}

func TestFailedRefreshDoesNotEndNewLogin(t *testing.T) {
	f := setupTestFixture(t, []refresherfake.Result{refresherfake.Fail(errors.ErrRefreshFailed)})
	f.login(t, staleToken("u1"), "R-old")
	f.refresher.Hold()

	result := validCredentialsAsync(f.coord)
	<-f.refresher.Started()

	newAccess := freshToken("u2")
	f.login(t, newAccess, "R-new")
	f.refresher.Release()

	out := <-result
	require.NoError(t, out.err)
	require.Equal(t, "R-new", out.creds.RefreshToken)

	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "R-new", stored.RefreshToken)
	require.Zero(t, f.logoutCount())
}
