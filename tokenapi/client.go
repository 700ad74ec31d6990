package tokenapi

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

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/jrsteele09/dashboard-session/sessions"
)

const (
	loginPath   = "token/"
	refreshPath = "token/refresh/"
	verifyPath  = "token/verify/"
	mePath      = "users/me/"

	maxErrorBody = 4 << 10
)

// StatusError is a non-2xx answer from one of the token endpoints.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s returned %d", e.Endpoint, e.StatusCode)
}

// Client talks to the token endpoints. None of its calls carry an
// Authorization header except Me, which is given the token explicitly.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for the API rooted at baseURL (e.g. "https://api.example.com/api/").
func New(baseURL string, opts ...ClientOption) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[tokenapi New] invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("[tokenapi New] URL scheme must be http or https, got: %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login exchanges primary credentials for a token pair.
func (c *Client) Login(ctx context.Context, phoneNumber, password string) (*TokenPair, error) {
	var pair TokenPair
	if err := c.post(ctx, loginPath, LoginRequest{PhoneNumber: phoneNumber, Password: password}, &pair); err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusBadRequest) {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
		}
		return nil, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, fmt.Errorf("%s: response missing access or refresh token", loginPath)
	}
	return &pair, nil
}

// Refresh mints a new access token. Failures are classified for the refresh
// coordinator: a rejection or a timeout wraps ErrRefreshFailed, transport
// trouble and 5xx answers wrap ErrTransientNetwork.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var resp RefreshResponse
	err := c.post(ctx, refreshPath, RefreshRequest{Refresh: refreshToken}, &resp)
	if err != nil {
		return nil, classifyRefreshError(ctx, err)
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("%w: %s response missing access token", errors.ErrRefreshFailed, refreshPath)
	}
	return &resp, nil
}

// Verify asks the server whether token is still accepted. Diagnostics only.
func (c *Client) Verify(ctx context.Context, token string) error {
	return c.post(ctx, verifyPath, VerifyRequest{Token: token}, nil)
}

// Me fetches the profile of the user owning accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*sessions.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(mePath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var profile sessions.UserProfile
	if err := c.do(req, mePath, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) resolve(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil {
			se.Detail = errResp.Detail
		}
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return nil
}

func classifyRefreshError(ctx context.Context, err error) error {
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode >= 500:
		return fmt.Errorf("%w: %v", errors.ErrTransientNetwork, err)
	case errors.As(err, &se):
		return fmt.Errorf("%w: %v", errors.ErrRefreshFailed, err)
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return fmt.Errorf("%w: %v", errors.ErrRefreshFailed, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %v", errors.ErrRefreshFailed, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrTransientNetwork, err)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
