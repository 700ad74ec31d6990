package refresherfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/dashboard-session/token/refresh"
	"github.com/jrsteele09/dashboard-session/tokenapi"
)

var _ refresh.Refresher = (*FakeRefresher)(nil)

// Result is one scripted answer of the fake refresh endpoint.
type Result struct {
	Resp *tokenapi.RefreshResponse
	Err  error
}

// Access scripts a successful refresh without rotation.
func Access(access string) Result {
	return Result{Resp: &tokenapi.RefreshResponse{Access: access}}
}

// Rotate scripts a successful refresh that also rotates the refresh token.
func Rotate(access, refreshToken string) Result {
	return Result{Resp: &tokenapi.RefreshResponse{Access: access, Refresh: refreshToken}}
}

func Fail(err error) Result {
	return Result{Err: err}
}

// FakeRefresher answers with scripted results in order, repeating the last
// one. Hold makes calls block until Release so tests can pile up waiters.
type FakeRefresher struct {
	results       []Result
	calls         int
	refreshTokens []string
	gate          chan struct{}
	started       chan struct{}
	lock          sync.Mutex
}

func NewFakeRefresher(results ...Result) *FakeRefresher {
	return &FakeRefresher{
		results: results,
		started: make(chan struct{}, 64),
	}
}

func (f *FakeRefresher) Refresh(ctx context.Context, refreshToken string) (*tokenapi.RefreshResponse, error) {
	f.lock.Lock()
	f.calls++
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	var res Result
	if len(f.results) > 0 {
		idx := f.calls - 1
		if idx >= len(f.results) {
			idx = len(f.results) - 1
		}
		res = f.results[idx]
	}
	gate := f.gate
	f.lock.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.Resp, res.Err
}

// Hold blocks subsequent calls until Release.
func (f *FakeRefresher) Hold() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.gate = make(chan struct{})
}

func (f *FakeRefresher) Release() {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Started receives once per call as it begins.
func (f *FakeRefresher) Started() <-chan struct{} {
	return f.started
}

func (f *FakeRefresher) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

// RefreshTokens lists the refresh tokens presented, in call order.
func (f *FakeRefresher) RefreshTokens() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.refreshTokens...)
}
