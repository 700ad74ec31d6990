package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/jrsteele09/dashboard-session/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 4 << 10
)

// StatusError is a non-2xx answer other than 401.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d", e.Method, e.Path, e.StatusCode)
}

// Client issues JSON requests against the dashboard API. Every request goes
// through the authorizing transport; the client itself never sees or caches
// a token.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger

	Shops         *Resource[Shop]
	Customers     *Resource[Customer]
	Packages      *Resource[Package]
	Refills       *Resource[Refill]
	Sales         *Resource[Sale]
	Credits       *Resource[Credit]
	Expenses      *Resource[Expense]
	MeterReadings *Resource[MeterReading]
	StockItems    *Resource[StockItem]
	StockLogs     *Resource[StockLog]
	Users         *Resource[User]
	Analytics     *Analytics
	SMS           *SMS
}

type Option func(*options)

type options struct {
	base   *http.Client
	logger zerolog.Logger
}

// WithHTTPClient sets the client whose transport and timeout the authorizing
// transport wraps. Defaults to a client with a 30s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.base = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, source transport.CredentialSource, opts ...Option) (*Client, error) {
	o := options{
		base:   &http.Client{Timeout: 30 * time.Second},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: transport.NewClient(source, o.base, transport.WithLogger(o.logger)),
		logger:     o.logger,
	}
	c.Shops = NewResource[Shop](c, "shops/")
	c.Customers = NewResource[Customer](c, "customers/")
	c.Packages = NewResource[Package](c, "packages/")
	c.Refills = NewResource[Refill](c, "refills/")
	c.Sales = NewResource[Sale](c, "sales/")
	c.Credits = NewResource[Credit](c, "credits/")
	c.Expenses = NewResource[Expense](c, "expenses/")
	c.MeterReadings = NewResource[MeterReading](c, "meter-readings/")
	c.StockItems = NewResource[StockItem](c, "stock-items/")
	c.StockLogs = NewResource[StockLog](c, "stock-logs/")
	c.Users = NewResource[User](c, "users/")
	c.Analytics = &Analytics{client: c}
	c.SMS = &SMS{client: c}
	return c, nil
}

// Do sends in (when non-nil) as JSON to path and decodes the answer into out
// (when non-nil). A 401 that survived the transport's renewal is reported as
// ErrAuthorizationFailure.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("requestID", requestID).Str("method", method).Str("path", path).Msg("Request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("requestID", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Request complete")

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s", errors.ErrAuthorizationFailure, method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s %s response: %w", method, path, err)
	}
	return nil
}
