package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/dashboard-session/sessions"
	"github.com/jrsteele09/dashboard-session/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CredentialSource is the part of the refresh coordinator the pipeline needs.
type CredentialSource interface {
	ValidCredentials(ctx context.Context) (sessions.Credentials, error)
	Renew(ctx context.Context, rejectedAccess string) (sessions.Credentials, error)
}

var _ CredentialSource = (*refresh.Coordinator)(nil)

// state is where a single request is in its authorization lifecycle.
type state int

const (
	stateSent state = iota
	stateRefreshAndRetry
	stateSentRetry
	stateDone
)

// Transport authorizes every outgoing request with the current access token
// and, on a 401, renews the token and resends the request exactly once.
// Credentials are read from the source on every request; no header is cached.
type Transport struct {
	source CredentialSource
	base   http.RoundTripper
	logger zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

type Option func(*Transport)

// WithBase sets the transport that performs the actual round trips.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(source CredentialSource, opts ...Option) *Transport {
	t := &Transport{
		source: source,
		base:   http.DefaultTransport,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewClient returns an http.Client using a Transport over base.
func NewClient(source CredentialSource, base *http.Client, opts ...Option) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	if c.Transport != nil {
		opts = append([]Option{WithBase(c.Transport)}, opts...)
	}
	c.Transport = New(source, opts...)
	return c
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// The RoundTripper contract says the request body is always closed.
	bodyClosed := false
	if req.Body != nil {
		defer func() {
			if !bodyClosed {
				req.Body.Close()
			}
		}()
	}

	ctx := req.Context()
	creds, err := t.source.ValidCredentials(ctx)
	if err != nil {
		return nil, err
	}

	outgoing := authorize(req, creds)
	var resp *http.Response
	st := stateSent
	for st != stateDone {
		switch st {
		case stateSent, stateSentRetry:
			resp, err = t.base.RoundTrip(outgoing)
			bodyClosed = true
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusUnauthorized || st == stateSentRetry || !replayable(req) {
				st = stateDone
				continue
			}
			discard(resp)
			t.logger.Info().Str("method", req.Method).Str("url", req.URL.Redacted()).Msg("Access token rejected, renewing")
			st = stateRefreshAndRetry

		case stateRefreshAndRetry:
			renewed, err := t.source.Renew(ctx, creds.AccessToken)
			if err != nil {
				return nil, err
			}
			creds = renewed
			if outgoing, err = rewind(req, creds); err != nil {
				return nil, err
			}
			st = stateSentRetry
		}
	}
	return resp, nil
}

// authorize clones req with the bearer header set; the caller's request is
// never modified.
func authorize(req *http.Request, creds sessions.Credentials) *http.Request {
	out := req.Clone(req.Context())
	refresh.OAuth2Token(creds).SetAuthHeader(out)
	return out
}

func rewind(req *http.Request, creds sessions.Credentials) (*http.Request, error) {
	out := authorize(req, creds)
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("transport: rewinding request body: %w", err)
	}
	out.Body = body
	return out, nil
}

// replayable reports whether req can be sent a second time.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
