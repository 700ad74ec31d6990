package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/jrsteele09/dashboard-session/internal/logging"
	"github.com/jrsteele09/dashboard-session/sessions"
	"github.com/jrsteele09/dashboard-session/token"
	"github.com/jrsteele09/dashboard-session/tokenapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenAPI is the subset of the remote token endpoints the service calls.
type TokenAPI interface {
	Login(ctx context.Context, phoneNumber, password string) (*tokenapi.TokenPair, error)
	Verify(ctx context.Context, token string) error
	Me(ctx context.Context, accessToken string) (*sessions.UserProfile, error)
}

var _ TokenAPI = (*tokenapi.Client)(nil)

// CredentialSource hands out valid credentials, renewing them when needed.
type CredentialSource interface {
	ValidCredentials(ctx context.Context) (sessions.Credentials, error)
}

type Terminator interface {
	Terminate(ctx context.Context, reason error) error
}

// Repos holds the service's dependencies
type Repos struct {
	API         TokenAPI
	Store       sessions.Store
	Credentials CredentialSource
	Terminator  Terminator
}

// Service is the session entry point used by the dashboard: it logs in,
// resumes a stored session at startup, and logs out.
type Service struct {
	repos     Repos
	evaluator *token.Evaluator
	validator *Validator
	logger    zerolog.Logger
	nowTime   func() time.Time

	background sync.WaitGroup
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service. evaluator decides whether a resumed session
// needs a proactive renewal; it should use the same margin as the coordinator.
func NewService(repos Repos, evaluator *token.Evaluator, options ...ServiceOption) *Service {
	if evaluator == nil {
		evaluator = token.NewEvaluator(token.DefaultMargin)
	}
	s := &Service{
		repos:     repos,
		evaluator: evaluator,
		validator: NewValidator(),
		logger:    log.Logger,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Login exchanges a phone number and password for a token pair and persists
// the new session. The profile is fetched with the new access token; when
// that fails the session is kept without a profile.
func (s *Service) Login(ctx context.Context, identifier, secret string) (*sessions.Credentials, error) {
	phone, err := s.validator.ValidateLogin(identifier, secret)
	if err != nil {
		return nil, err
	}

	pair, err := s.repos.API.Login(ctx, phone, secret)
	if err != nil {
		return nil, errors.Wrapf(err, "[Service.Login] login")
	}

	exp, err := token.ExpiryOf(pair.Access)
	if err != nil {
		return nil, fmt.Errorf("[Service.Login] issued access token: %w: %w", errors.ErrMalformedCredential, err)
	}

	creds := sessions.Credentials{
		AccessToken:     pair.Access,
		RefreshToken:    pair.Refresh,
		IssuedAt:        s.nowTime(),
		AccessExpiresAt: exp,
	}

	profile, err := s.repos.API.Me(ctx, pair.Access)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Fetching user profile failed, continuing without it")
	} else {
		creds.Profile = profile
	}

	if err := s.repos.Store.Save(ctx, creds); err != nil {
		return nil, errors.Wrapf(err, "[Service.Login] saving session")
	}

	s.logger.Info().
		Str("access", logging.TokenPrefix(creds.AccessToken)).
		Time("expires", exp).
		Msg("Logged in")
	return &creds, nil
}

// Logout ends the session. Calling it without a session is not an error.
func (s *Service) Logout(ctx context.Context) error {
	return s.repos.Terminator.Terminate(ctx, errors.ErrLoggedOut)
}

// Resume reports whether a stored session exists. When its access token is
// within the renewal margin a renewal is started in the background and Resume
// returns without waiting for it; a terminal failure of that renewal ends the
// session through the usual logout path.
func (s *Service) Resume(ctx context.Context) (bool, error) {
	creds, err := s.repos.Store.Load(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "[Service.Resume] loading session")
	}
	if creds == nil {
		s.logger.Info().Msg("No stored session")
		return false, nil
	}
	if s.evaluator.IsValid(*creds) {
		return true, nil
	}

	s.logger.Info().Dur("expiresIn", s.evaluator.ExpiresIn(*creds)).Msg("Stored token near expiry, renewing")
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.repos.Credentials.ValidCredentials(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("Startup renewal failed")
		}
	}()
	return true, nil
}

// Wait blocks until background work started by Resume has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Verify asks the server whether the current access token is accepted.
func (s *Service) Verify(ctx context.Context) error {
	creds, err := s.repos.Credentials.ValidCredentials(ctx)
	if err != nil {
		return err
	}
	return s.repos.API.Verify(ctx, creds.AccessToken)
}

// CurrentUser returns the profile stored with the session. The profile is
// nil when it could not be fetched at login.
func (s *Service) CurrentUser(ctx context.Context) (*sessions.UserProfile, error) {
	creds, err := s.repos.Store.Load(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[Service.CurrentUser] loading session")
	}
	if creds == nil {
		return nil, errors.ErrNoSession
	}
	return creds.Profile, nil
}

// IsAuthenticated reports whether a stored access token exists and has not
// yet expired. It never contacts the server.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	creds, err := s.repos.Store.Load(ctx)
	if err != nil || creds == nil {
		return false
	}
	return token.NewEvaluator(0, token.WithNowFunc(s.nowTime)).IsValid(*creds)
}
