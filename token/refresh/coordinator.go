package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/jrsteele09/dashboard-session/internal/logging"
	"github.com/jrsteele09/dashboard-session/sessions"
	"github.com/jrsteele09/dashboard-session/token"
	"github.com/jrsteele09/dashboard-session/tokenapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single renewal call.
const DefaultTimeout = 30 * time.Second

// Refresher performs the renewal network call.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*tokenapi.RefreshResponse, error)
}

// Terminator ends the session when renewal cannot recover.
type Terminator interface {
	Terminate(ctx context.Context, reason error) error
}

// Coordinator hands out valid credentials and renews them with at most one
// refresh call in flight per process. Callers arriving while a renewal is
// running wait for it and all receive the same outcome.
type Coordinator struct {
	store      sessions.Store
	refresher  Refresher
	evaluator  *token.Evaluator
	terminator Terminator
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     zerolog.Logger

	// mu serialises the Idle/InFlight transition with the store read that
	// decides it and the store write that completes it.
	mu            sync.Mutex
	flight        *flight
	lastTransient bool

	stats counters
}

// flight is one renewal episode. creds and err are written before done is
// closed and only read after.
type flight struct {
	startedAt time.Time
	done      chan struct{}
	cancel    context.CancelFunc
	waiters   int
	finishing bool

	creds sessions.Credentials
	err   error
}

type counters struct {
	episodes  atomic.Int64
	joined    atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// Stats is a snapshot of the coordinator's counters.
type Stats struct {
	Episodes  int64 // Refresh calls issued
	Joined    int64 // Callers that waited on an episode they did not start
	Succeeded int64
	Failed    int64
	InFlight  bool
}

type Option func(*Coordinator)

// WithTimeout bounds each refresh call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps how often refresh episodes may start. Episodes over the
// budget fail with ErrRefreshThrottled instead of reaching the network.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Coordinator) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator. terminator may be nil, in which case
// terminal failures are only reported to the waiting callers.
func NewCoordinator(store sessions.Store, refresher Refresher, evaluator *token.Evaluator, terminator Terminator, opts ...Option) *Coordinator {
	if evaluator == nil {
		evaluator = token.NewEvaluator(token.DefaultMargin)
	}
	c := &Coordinator{
		store:      store,
		refresher:  refresher,
		evaluator:  evaluator,
		terminator: terminator,
		limiter:    rate.NewLimiter(rate.Limit(1), 5),
		timeout:    DefaultTimeout,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidCredentials returns the stored credentials when they are still valid,
// otherwise starts or joins a renewal and returns its outcome.
func (c *Coordinator) ValidCredentials(ctx context.Context) (sessions.Credentials, error) {
	return c.acquire(ctx, func(creds sessions.Credentials) bool {
		return c.evaluator.IsValid(creds)
	})
}

// Renew is called after the server rejected rejectedAccess. When the store
// already holds a different, valid token (another request renewed it) that
// token is returned; otherwise a renewal is started or joined regardless of
// the local expiry view.
func (c *Coordinator) Renew(ctx context.Context, rejectedAccess string) (sessions.Credentials, error) {
	return c.acquire(ctx, func(creds sessions.Credentials) bool {
		return creds.AccessToken != rejectedAccess && c.evaluator.IsValid(creds)
	})
}

func (c *Coordinator) acquire(ctx context.Context, usable func(sessions.Credentials) bool) (sessions.Credentials, error) {
	c.mu.Lock()
	if f := c.flight; f != nil {
		f.waiters++
		c.mu.Unlock()
		c.stats.joined.Add(1)
		return c.wait(ctx, f)
	}

	current, err := c.store.Load(ctx)
	if err != nil {
		c.mu.Unlock()
		return sessions.Credentials{}, fmt.Errorf("[Coordinator] loading session: %w", err)
	}
	if current == nil {
		c.mu.Unlock()
		return sessions.Credentials{}, errors.ErrNoSession
	}
	if usable(*current) {
		c.mu.Unlock()
		return *current, nil
	}

	f, err := c.startLocked(*current)
	c.mu.Unlock()
	if err != nil {
		return sessions.Credentials{}, err
	}
	return c.wait(ctx, f)
}

// startLocked moves Idle -> InFlight. c.mu must be held.
func (c *Coordinator) startLocked(current sessions.Credentials) (*flight, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Warn().Msg("Refresh throttled")
		return nil, errors.ErrRefreshThrottled
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	f := &flight{
		startedAt: time.Now(),
		done:      make(chan struct{}),
		cancel:    cancel,
		waiters:   1,
	}
	c.flight = f
	c.stats.episodes.Add(1)

	c.logger.Debug().
		Str("access", logging.TokenPrefix(current.AccessToken)).
		Msg("Starting token refresh")

	go c.run(ctx, f, current)
	return f, nil
}

func (c *Coordinator) wait(ctx context.Context, f *flight) (sessions.Credentials, error) {
	select {
	case <-f.done:
		if f.err != nil {
			return sessions.Credentials{}, f.err
		}
		return f.creds, nil
	case <-ctx.Done():
		return sessions.Credentials{}, ctx.Err()
	}
}

// run issues the refresh call and resolves the flight exactly once, unless
// Abort resolved it first.
func (c *Coordinator) run(ctx context.Context, f *flight, current sessions.Credentials) {
	defer f.cancel()

	next, err := c.renew(ctx, current)

	c.mu.Lock()
	if c.flight != f {
		c.mu.Unlock()
		return
	}

	// The refresh timeout must not fail the store calls that settle the outcome.
	storeCtx := context.WithoutCancel(ctx)

	// A logout or a new login may have replaced the session while the refresh
	// was running; its outcome then belongs to nobody and must not be saved or
	// end the replacement session.
	stored, lerr := c.store.Load(storeCtx)
	superseded := lerr == nil && (stored == nil || stored.RefreshToken != current.RefreshToken)
	switch {
	case superseded:
	case lerr != nil && err == nil:
		err = fmt.Errorf("[Coordinator] reloading session: %w", lerr)
	case err == nil:
		if serr := c.store.Save(storeCtx, next); serr != nil {
			err = fmt.Errorf("[Coordinator] persisting renewed session: %w", serr)
		}
	}

	terminal := false
	switch {
	case superseded && stored == nil:
		c.lastTransient = false
		err = fmt.Errorf("%w: session ended during refresh", errors.ErrNoSession)
		next = sessions.Credentials{}
	case superseded:
		c.lastTransient = false
		err = nil
		next = *stored
		f.creds = next
	case err == nil:
		c.lastTransient = false
		f.creds = next
	case errors.Is(err, errors.ErrRefreshFailed):
		c.lastTransient = false
		terminal = true
	case errors.Is(err, errors.ErrTransientNetwork):
		if c.lastTransient {
			err = fmt.Errorf("%w: second consecutive transient failure: %w", errors.ErrRefreshFailed, err)
			terminal = true
		}
		c.lastTransient = !terminal
	}
	f.err = err
	f.finishing = true

	elapsed := time.Since(f.startedAt)
	if superseded {
		c.logger.Info().Dur("elapsed", elapsed).Bool("loggedOut", stored == nil).Msg("Session replaced during token refresh, discarding result")
	}
	if err != nil {
		c.stats.failed.Add(1)
		c.logger.Err(err).Dur("elapsed", elapsed).Int("waiters", f.waiters).Bool("terminal", terminal).Msg("Token refresh failed")
	} else if !superseded {
		c.stats.succeeded.Add(1)
		c.logger.Info().Dur("elapsed", elapsed).Int("waiters", f.waiters).Time("expires_at", next.AccessExpiresAt).Msg("Token refreshed")
	}

	if !terminal {
		c.flight = nil
		c.mu.Unlock()
		close(f.done)
		return
	}
	c.mu.Unlock()

	// The flight stays registered while the session is torn down so callers
	// arriving meanwhile share this outcome instead of starting a new episode.
	if c.terminator != nil {
		if terr := c.terminator.Terminate(context.Background(), err); terr != nil {
			c.logger.Err(terr).Msg("Failed to terminate session after refresh failure")
		}
	}

	c.mu.Lock()
	if c.flight == f {
		c.flight = nil
	}
	c.mu.Unlock()
	close(f.done)
}

func (c *Coordinator) renew(ctx context.Context, current sessions.Credentials) (sessions.Credentials, error) {
	resp, err := c.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, errors.ErrRefreshFailed) {
			return sessions.Credentials{}, fmt.Errorf("%w: refresh timed out after %v: %w", errors.ErrRefreshFailed, c.timeout, err)
		}
		return sessions.Credentials{}, err
	}
	exp, err := token.ExpiryOf(resp.Access)
	if err != nil {
		return sessions.Credentials{}, fmt.Errorf("%w: renewed access token unusable: %w", errors.ErrRefreshFailed, err)
	}
	return current.WithAccess(resp.Access, resp.Refresh, exp), nil
}

// Abort resolves an in-flight renewal with reason and returns the coordinator
// to idle. A renewal that is already completing is left to finish.
func (c *Coordinator) Abort(reason error) {
	c.mu.Lock()
	f := c.flight
	if f == nil || f.finishing {
		c.mu.Unlock()
		return
	}
	c.flight = nil
	f.err = reason
	f.cancel()
	waiters := f.waiters
	c.mu.Unlock()

	c.stats.failed.Add(1)
	c.logger.Info().Int("waiters", waiters).AnErr("reason", reason).Msg("Token refresh aborted")
	close(f.done)
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	inFlight := c.flight != nil
	c.mu.Unlock()
	return Stats{
		Episodes:  c.stats.episodes.Load(),
		Joined:    c.stats.joined.Load(),
		Succeeded: c.stats.succeeded.Load(),
		Failed:    c.stats.failed.Load(),
		InFlight:  inFlight,
	}
}

// OAuth2Token converts credentials to the x/oauth2 representation.
func OAuth2Token(creds sessions.Credentials) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.AccessExpiresAt,
	}
}

// TokenSource adapts the coordinator to oauth2.TokenSource for code built on
// golang.org/x/oauth2. Every Token call goes through ValidCredentials.
func (c *Coordinator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, c: c}
}

type tokenSource struct {
	ctx context.Context
	c   *Coordinator
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	creds, err := s.c.ValidCredentials(s.ctx)
	if err != nil {
		return nil, err
	}
	return OAuth2Token(creds), nil
}
