package tokenapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/jrsteele09/dashboard-session/tokenapi"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *tokenapi.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := tokenapi.New(srv.URL + "/api")
	require.NoError(t, err)
	return c
}

func TestNew_InvalidScheme(t *testing.T) {
	_, err := tokenapi.New("ftp://example.com/api/")
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token/", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))

		var req tokenapi.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.PhoneNumber != "0700" || req.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(tokenapi.TokenPair{Access: "A1", Refresh: "R1"})
	})

	pair, err := c.Login(context.Background(), "0700", "pw")
	require.NoError(t, err)
	require.Equal(t, "A1", pair.Access)
	require.Equal(t, "R1", pair.Refresh)

	_, err = c.Login(context.Background(), "0700", "wrong")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	require.Contains(t, err.Error(), "No active account")
}

func TestRefresh(t *testing.T) {
	t.Run("success without rotation", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/token/refresh/", r.URL.Path)
			require.Empty(t, r.Header.Get("Authorization"))
			var req tokenapi.RefreshRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "R1", req.Refresh)
			_, _ = w.Write([]byte(`{"access":"A2"}`))
		})
		resp, err := c.Refresh(context.Background(), "R1")
		require.NoError(t, err)
		require.Equal(t, "A2", resp.Access)
		require.Empty(t, resp.Refresh)
	})

	t.Run("rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
		})
		_, err := c.Refresh(context.Background(), "R1")
		require.ErrorIs(t, err, errors.ErrRefreshFailed)
	})

	t.Run("server error is transient", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.Refresh(context.Background(), "R1")
		require.ErrorIs(t, err, errors.ErrTransientNetwork)
	})

	t.Run("missing access", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		_, err := c.Refresh(context.Background(), "R1")
		require.ErrorIs(t, err, errors.ErrRefreshFailed)
	})

	t.Run("timeout", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.Refresh(ctx, "R1")
		require.ErrorIs(t, err, errors.ErrRefreshFailed)
	})

	t.Run("connection refused is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c, err := tokenapi.New(srv.URL + "/api/")
		require.NoError(t, err)
		_, err = c.Refresh(context.Background(), "R1")
		require.ErrorIs(t, err, errors.ErrTransientNetwork)
	})
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token/verify/", r.URL.Path)
		var req tokenapi.VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Token != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.Verify(context.Background(), "good"))

	err := c.Verify(context.Background(), "bad")
	var se *tokenapi.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/me/", r.URL.Path)
		require.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"7","names":"Jane Doe","phone_number":"0700","user_class":"admin","is_active":true}`))
	})

	p, err := c.Me(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", p.Names)
	require.True(t, p.IsActive)
}
