package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/dashboard-session/sessions"
)

// DefaultMargin absorbs clock skew and request latency so tokens are renewed
// before the server starts rejecting them.
const DefaultMargin = 300 * time.Second

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var errNoExpiry = errors.New("token has no exp claim")

// ExpiryOf reads the exp claim of an access token. The signature is not
// verified: only the server can do that, the client needs the expiry.
func ExpiryOf(accessToken string) (time.Time, error) {
	if strings.TrimSpace(accessToken) == "" {
		return time.Time{}, errors.New("empty token")
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Evaluator decides whether stored credentials are still usable.
type Evaluator struct {
	margin  time.Duration
	nowFunc func() time.Time
}

type EvaluatorOption func(*Evaluator)

func WithNowFunc(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.nowFunc = now
	}
}

// NewEvaluator creates an Evaluator. A negative margin is treated as zero.
func NewEvaluator(margin time.Duration, opts ...EvaluatorOption) *Evaluator {
	if margin < 0 {
		margin = 0
	}
	e := &Evaluator{margin: margin}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Margin() time.Duration {
	return e.margin
}

func (e *Evaluator) now() time.Time {
	if e.nowFunc != nil {
		return e.nowFunc()
	}
	return NowTimeFunc()
}

// IsValid reports now < AccessExpiresAt - margin. Credentials persisted
// without an expiry are decoded on the spot; anything unparsable is invalid.
func (e *Evaluator) IsValid(creds sessions.Credentials) bool {
	expiresAt := creds.AccessExpiresAt
	if expiresAt.IsZero() {
		exp, err := ExpiryOf(creds.AccessToken)
		if err != nil {
			return false
		}
		expiresAt = exp
	}
	return e.now().Before(expiresAt.Add(-e.margin))
}

// ExpiresIn is the time left before the credentials become stale, zero when
// already stale.
func (e *Evaluator) ExpiresIn(creds sessions.Credentials) time.Duration {
	expiresAt := creds.AccessExpiresAt
	if expiresAt.IsZero() {
		exp, err := ExpiryOf(creds.AccessToken)
		if err != nil {
			return 0
		}
		expiresAt = exp
	}
	if d := expiresAt.Add(-e.margin).Sub(e.now()); d > 0 {
		return d
	}
	return 0
}
