package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/dashboard-session/sessions"
	"github.com/jrsteele09/dashboard-session/token"
	"github.com/jrsteele09/dashboard-session/token/tokenfake"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func TestExpiryOf(t *testing.T) {
	exp := fixedNow.Add(15 * time.Minute)

	got, err := token.ExpiryOf(tokenfake.AccessToken("u1", exp))
	require.NoError(t, err)
	require.True(t, got.Equal(exp))

	_, err = token.ExpiryOf("not.a.jwt")
	require.Error(t, err)

	_, err = token.ExpiryOf("")
	require.Error(t, err)

	_, err = token.ExpiryOf(tokenfake.AccessTokenWithoutExpiry("u1"))
	require.Error(t, err)
}

func TestEvaluator_Margin(t *testing.T) {
	e := token.NewEvaluator(300*time.Second, token.WithNowFunc(func() time.Time { return fixedNow }))

	t.Run("expires within margin", func(t *testing.T) {
		creds := sessions.Credentials{AccessExpiresAt: fixedNow.Add(60 * time.Second)}
		require.False(t, e.IsValid(creds))
		require.Zero(t, e.ExpiresIn(creds))
	})

	t.Run("expires beyond margin", func(t *testing.T) {
		creds := sessions.Credentials{AccessExpiresAt: fixedNow.Add(600 * time.Second)}
		require.True(t, e.IsValid(creds))
		require.Equal(t, 300*time.Second, e.ExpiresIn(creds))
	})

	t.Run("exactly at margin", func(t *testing.T) {
		require.False(t, e.IsValid(sessions.Credentials{AccessExpiresAt: fixedNow.Add(300 * time.Second)}))
	})

	t.Run("decodes when expiry unknown", func(t *testing.T) {
		creds := sessions.Credentials{AccessToken: tokenfake.AccessToken("u1", fixedNow.Add(time.Hour))}
		require.True(t, e.IsValid(creds))
	})

	t.Run("unparsable fails closed", func(t *testing.T) {
		require.False(t, e.IsValid(sessions.Credentials{AccessToken: "garbage"}))
		require.False(t, e.IsValid(sessions.Credentials{AccessToken: tokenfake.AccessTokenWithoutExpiry("u1")}))
	})
}

func TestEvaluator_MarginValue(t *testing.T) {
	require.Equal(t, 2*time.Minute, token.NewEvaluator(2*time.Minute).Margin())
	require.Zero(t, token.NewEvaluator(-time.Second).Margin())
}

func TestEvaluator_NowTimeFunc(t *testing.T) {
	orig := token.NowTimeFunc
	defer func() { token.NowTimeFunc = orig }()
	token.NowTimeFunc = func() time.Time { return fixedNow }

	e := token.NewEvaluator(token.DefaultMargin)
	require.True(t, e.IsValid(sessions.Credentials{AccessExpiresAt: fixedNow.Add(10 * time.Minute)}))
	require.False(t, e.IsValid(sessions.Credentials{AccessExpiresAt: fixedNow.Add(4 * time.Minute)}))
}
