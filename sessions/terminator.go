package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/dashboard-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogoutEvent tells the UI layer to send the user back to the login screen.
type LogoutEvent struct {
	ID     string
	Reason error
	At     time.Time
}

// LogoutHandler consumes logout events. Handlers run synchronously after the
// store has been cleared and must not call Terminate.
type LogoutHandler func(ctx context.Context, event LogoutEvent)

// Aborter is anything holding callers that must be released on logout.
type Aborter interface {
	Abort(reason error)
}

// Terminator clears the session and announces the logout.
type Terminator struct {
	store    Store
	aborters []Aborter
	handlers []LogoutHandler
	logger   zerolog.Logger
	nowFunc  func() time.Time
	lock     sync.Mutex
}

type TerminatorOption func(*Terminator)

func WithTerminatorLogger(logger zerolog.Logger) TerminatorOption {
	return func(t *Terminator) {
		t.logger = logger
	}
}

func WithTerminatorNowFunc(now func() time.Time) TerminatorOption {
	return func(t *Terminator) {
		t.nowFunc = now
	}
}

func NewTerminator(store Store, opts ...TerminatorOption) *Terminator {
	t := &Terminator{
		store:   store,
		logger:  log.Logger,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track registers a to be aborted on every Terminate.
func (t *Terminator) Track(a Aborter) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.aborters = append(t.aborters, a)
}

func (t *Terminator) Subscribe(h LogoutHandler) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.handlers = append(t.handlers, h)
}

// Terminate releases pending refresh waiters, clears the store and publishes a
// LogoutEvent. When no session was stored it still clears the store (there may
// be unreadable data) but publishes nothing, so repeated calls are harmless.
func (t *Terminator) Terminate(ctx context.Context, reason error) error {
	t.lock.Lock()

	abortErr := errors.ErrSessionTerminated
	if reason != nil {
		abortErr = fmt.Errorf("%w: %w", errors.ErrSessionTerminated, reason)
	}
	for _, a := range t.aborters {
		a.Abort(abortErr)
	}

	current, loadErr := t.store.Load(ctx)
	if err := t.store.Clear(ctx); err != nil {
		t.lock.Unlock()
		return errors.Wrapf(errors.Join(err, loadErr), "[Terminator] clearing session")
	}
	if loadErr == nil && current == nil {
		t.lock.Unlock()
		t.logger.Debug().Msg("Terminate: no session, nothing to announce")
		return nil
	}

	event := LogoutEvent{ID: uuid.NewString(), Reason: reason, At: t.nowFunc()}
	handlers := append([]LogoutHandler(nil), t.handlers...)
	t.lock.Unlock()

	t.logger.Info().Str("event_id", event.ID).AnErr("reason", reason).Int("handlers", len(handlers)).Msg("Session terminated")
	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}
