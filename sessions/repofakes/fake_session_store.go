package fakesessionstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/dashboard-session/sessions"
)

var _ sessions.Store = (*FakeSessionStore)(nil)

// FakeSessionStore keeps the persisted bytes in memory, so it exercises the
// same codec as the real backends and can be seeded with corrupt data.
type FakeSessionStore struct {
	data  []byte
	saves int
	lock  sync.RWMutex
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{}
}

func (s *FakeSessionStore) Save(_ context.Context, creds sessions.Credentials) error {
	data, err := sessions.Encode(creds)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.data = data
	s.saves++
	return nil
}

func (s *FakeSessionStore) Load(_ context.Context) (*sessions.Credentials, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return sessions.DecodeOrAbsent(s.data, "memory"), nil
}

func (s *FakeSessionStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.data = nil
	return nil
}

// SetRaw replaces the stored bytes verbatim.
func (s *FakeSessionStore) SetRaw(data []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.data = data
}

// Raw returns the stored bytes, nil when empty.
func (s *FakeSessionStore) Raw() []byte {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.data
}

// Saves counts successful Save calls.
func (s *FakeSessionStore) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}
