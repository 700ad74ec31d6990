// Package redisstore keeps the session in Redis so several dashboard workers
// share one credential pair.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/dashboard-session/sessions"
	"github.com/redis/go-redis/v9"
)

// Store implements sessions.Store on a single Redis key.
type Store struct {
	client redis.UniversalClient
	key    string
}

var _ sessions.Store = (*Store)(nil)

func New(client redis.UniversalClient, key string) *Store {
	if key == "" {
		key = sessions.DefaultKey
	}
	return &Store{client: client, key: key}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password, key string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore Dial] ping %s: %w", addr, err)
	}
	return New(client, key), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Save(ctx context.Context, creds sessions.Credentials) error {
	data, err := sessions.Encode(creds)
	if err != nil {
		return err
	}
	// SET replaces the whole value, so readers see either the old or new record.
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("[redisstore Save] %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (*sessions.Credentials, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[redisstore Load] %w", err)
	}
	return sessions.DecodeOrAbsent(data, "redis"), nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("[redisstore Clear] %w", err)
	}
	return nil
}
