package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/jrsteele09/dashboard-session/sessions"
	fakesessionstore "github.com/jrsteele09/dashboard-session/sessions/repofakes"
	"github.com/jrsteele09/dashboard-session/token"
	"github.com/jrsteele09/dashboard-session/token/refresh"
	"github.com/jrsteele09/dashboard-session/token/tokenfake"
	"github.com/jrsteele09/dashboard-session/tokenapi"
	"github.com/jrsteele09/dashboard-session/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type clock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

// fakeAPI accepts exactly one access token at a time and rotates it on refresh.
type fakeAPI struct {
	clock *clock

	lock          sync.Mutex
	current       string
	alwaysReject  bool
	rejectRefresh bool
	bodies        []string

	resourceHits atomic.Int32
	refreshCalls atomic.Int32
}

func (a *fakeAPI) setCurrent(access string) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.current = access
}

func (a *fakeAPI) rejectAll() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.alwaysReject = true
}

func (a *fakeAPI) failRefresh() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.rejectRefresh = true
}

func (a *fakeAPI) receivedBodies() []string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]string(nil), a.bodies...)
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/token/refresh/":
		a.refreshCalls.Add(1)
		a.lock.Lock()
		reject := a.rejectRefresh
		a.lock.Unlock()
		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
			return
		}
		access := tokenfake.AccessToken("u1", a.clock.Now().Add(time.Hour))
		a.setCurrent(access)
		_ = json.NewEncoder(w).Encode(tokenapi.RefreshResponse{Access: access})
	default:
		a.resourceHits.Add(1)
		body, _ := io.ReadAll(r.Body)
		a.lock.Lock()
		a.bodies = append(a.bodies, string(body))
		ok := !a.alwaysReject && r.Header.Get("Authorization") == "Bearer "+a.current
		a.lock.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

type testFixture struct {
	clock   *clock
	api     *fakeAPI
	server  *httptest.Server
	store   *fakesessionstore.FakeSessionStore
	coord   *refresh.Coordinator
	client  *http.Client
	logouts atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{clock: &clock{now: time.Now()}}
	f.api = &fakeAPI{clock: f.clock}
	f.server = httptest.NewServer(f.api)
	t.Cleanup(f.server.Close)

	tokens, err := tokenapi.New(f.server.URL + "/api/")
	require.NoError(t, err)

	f.store = fakesessionstore.NewFakeSessionStore()
	terminator := sessions.NewTerminator(f.store, sessions.WithTerminatorLogger(zerolog.Nop()))
	terminator.Subscribe(func(context.Context, sessions.LogoutEvent) { f.logouts.Add(1) })
	evaluator := token.NewEvaluator(token.DefaultMargin, token.WithNowFunc(f.clock.Now))
	f.coord = refresh.NewCoordinator(f.store, tokens, evaluator, terminator,
		refresh.WithLogger(zerolog.Nop()), refresh.WithRateLimit(0, 0))
	terminator.Track(f.coord)

	f.client = transport.NewClient(f.coord, nil, transport.WithLogger(zerolog.Nop()))
	return f
}

func (f *testFixture) login(t *testing.T, access string) {
	t.Helper()
	exp, err := token.ExpiryOf(access)
	require.NoError(t, err)
	require.NoError(t, f.store.Save(context.Background(), sessions.Credentials{
		AccessToken:     access,
		RefreshToken:    "R1",
		IssuedAt:        f.clock.Now(),
		AccessExpiresAt: exp,
	}))
}

func (f *testFixture) get(t *testing.T) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/shops/", nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	if resp != nil {
		t.Cleanup(func() { resp.Body.Close() })
	}
	return resp, err
}

func TestTransport_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	a1 := tokenfake.AccessToken("u1", f.clock.Now().Add(time.Hour))
	f.login(t, a1)
	f.api.setCurrent(a1)

	const callers = 10
	fire := func() {
		var wg sync.WaitGroup
		codes := make(chan int, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/api/shops/", nil)
				resp, err := f.client.Do(req)
				if err != nil {
					codes <- -1
					return
				}
				resp.Body.Close()
				codes <- resp.StatusCode
			}()
		}
		wg.Wait()
		close(codes)
		for code := range codes {
			require.Equal(t, http.StatusOK, code)
		}
	}

	fire()
	require.EqualValues(t, 0, f.api.refreshCalls.Load())

	f.clock.Advance(2 * time.Hour)
	fire()
	require.EqualValues(t, 1, f.api.refreshCalls.Load())
	require.EqualValues(t, 2*callers, f.api.resourceHits.Load())

	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, a1, stored.AccessToken)
	require.Equal(t, "R1", stored.RefreshToken)
}

func TestTransport_RetriesOnceAfterRejection(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, tokenfake.AccessToken("u1", f.clock.Now().Add(time.Hour)))
	f.api.setCurrent("revoked-elsewhere")

	resp, err := f.get(t)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, f.api.resourceHits.Load())
	require.EqualValues(t, 1, f.api.refreshCalls.Load())
}

func TestTransport_SecondRejectionIsReturned(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, tokenfake.AccessToken("u1", f.clock.Now().Add(time.Hour)))
	f.api.rejectAll()

	resp, err := f.get(t)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 2, f.api.resourceHits.Load())
	require.EqualValues(t, 1, f.api.refreshCalls.Load())
	require.Zero(t, f.logouts.Load())
}

func TestTransport_ReplaysBodyOnRetry(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, tokenfake.AccessToken("u1", f.clock.Now().Add(time.Hour)))
	f.api.setCurrent("revoked-elsewhere")

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/sales/", bytes.NewReader([]byte(`{"amount":5}`)))
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{`{"amount":5}`, `{"amount":5}`}, f.api.receivedBodies())
}

func TestTransport_UnrewindableBodyIsNotRetried(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, tokenfake.AccessToken("u1", f.clock.Now().Add(time.Hour)))
	f.api.setCurrent("revoked-elsewhere")

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/sales/", io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	req.GetBody = nil
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 1, f.api.resourceHits.Load())
	require.Zero(t, f.api.refreshCalls.Load())
}

func TestTransport_NoSessionNeverHitsNetwork(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.get(t)
	require.ErrorIs(t, err, errors.ErrNoSession)
	require.Zero(t, f.api.resourceHits.Load())
}

func TestTransport_RefreshRejectedTerminatesSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, tokenfake.AccessToken("u1", f.clock.Now().Add(time.Hour)))
	f.api.setCurrent("revoked-elsewhere")
	f.api.failRefresh()

	_, err := f.get(t)
	require.ErrorIs(t, err, errors.ErrRefreshFailed)
	require.EqualValues(t, 1, f.api.resourceHits.Load())
	require.EqualValues(t, 1, f.logouts.Load())

	_, err = f.get(t)
	require.ErrorIs(t, err, errors.ErrNoSession)
	require.EqualValues(t, 1, f.api.resourceHits.Load())
}

func TestTransport_DoesNotMutateCallerRequest(t *testing.T) {
	f := setupTestFixture(t)
	a1 := tokenfake.AccessToken("u1", f.clock.Now().Add(time.Hour))
	f.login(t, a1)
	f.api.setCurrent(a1)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/shops/", nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, req.Header.Get("Authorization"))
}
