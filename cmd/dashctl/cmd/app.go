package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/dashboard-session/apiclient"
	"github.com/jrsteele09/dashboard-session/auth"
	"github.com/jrsteele09/dashboard-session/internal/config"
	"github.com/jrsteele09/dashboard-session/internal/logging"
	"github.com/jrsteele09/dashboard-session/sessions"
	"github.com/jrsteele09/dashboard-session/sessions/boltstore"
	"github.com/jrsteele09/dashboard-session/sessions/redisstore"
	fakesessionstore "github.com/jrsteele09/dashboard-session/sessions/repofakes"
	"github.com/jrsteele09/dashboard-session/token"
	"github.com/jrsteele09/dashboard-session/token/refresh"
	"github.com/jrsteele09/dashboard-session/tokenapi"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

// app is the wired session stack shared by every command.
type app struct {
	cfg        config.Config
	logger     zerolog.Logger
	store      sessions.Store
	evaluator  *token.Evaluator
	terminator *sessions.Terminator
	coord      *refresh.Coordinator
	service    *auth.Service
	api        *apiclient.Client

	closers []func() error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.GetLogLevel()
	if logLevel != "" {
		level = logLevel
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(level, cfg.GetEnv()),
	}

	a.store, err = a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.GetHTTPTimeout()}
	tokens, err := tokenapi.New(cfg.GetAPIBaseURL(), tokenapi.WithHTTPClient(httpClient))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.evaluator = token.NewEvaluator(cfg.GetRefreshMargin())
	a.terminator = sessions.NewTerminator(a.store, sessions.WithTerminatorLogger(a.logger))
	a.terminator.Subscribe(func(_ context.Context, e sessions.LogoutEvent) {
		fmt.Fprintf(os.Stderr, "Session ended (%v). Run 'dashctl login' to sign in again.\n", e.Reason)
	})
	a.coord = refresh.NewCoordinator(a.store, tokens, a.evaluator, a.terminator,
		refresh.WithTimeout(cfg.GetRefreshTimeout()),
		refresh.WithRateLimit(cfg.GetRefreshRate(), cfg.GetRefreshBurst()),
		refresh.WithLogger(a.logger))
	a.terminator.Track(a.coord)

	a.service = auth.NewService(auth.Repos{
		API:         tokens,
		Store:       a.store,
		Credentials: a.coord,
		Terminator:  a.terminator,
	}, a.evaluator, auth.WithLogger(a.logger))

	a.api, err = apiclient.New(cfg.GetAPIBaseURL(), a.coord,
		apiclient.WithHTTPClient(httpClient),
		apiclient.WithLogger(a.logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (sessions.Store, error) {
	key := a.cfg.GetStoreKey()
	switch backend := strings.ToLower(a.cfg.GetStoreBackend()); backend {
	case "memory":
		a.logger.Warn().Msg("Using in-memory session store; the session ends with this process")
		return fakesessionstore.NewFakeSessionStore(), nil
	case "bolt", "":
		path := a.cfg.GetStorePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating session directory: %w", err)
		}
		store, err := boltstore.Open(path, key, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "redis":
		store, err := redisstore.Dial(ctx, a.cfg.GetRedisAddr(), a.cfg.GetRedisPassword(), key)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("Closing session store")
		}
	}
	a.closers = nil
}
