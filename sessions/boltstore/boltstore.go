// Package boltstore keeps the session in a local BBolt file, the device-storage
// equivalent of the dashboard's single storage key.
package boltstore

import (
	"context"
	"fmt"

	"github.com/jrsteele09/dashboard-session/sessions"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("session")

// Store implements sessions.Store backed by a BBolt database.
type Store struct {
	db  *bbolt.DB
	key []byte
}

var _ sessions.Store = (*Store)(nil)

// New returns a Store using db, keeping the session under key.
func New(db *bbolt.DB, key string) *Store {
	if key == "" {
		key = sessions.DefaultKey
	}
	return &Store{db: db, key: []byte(key)}
}

// Open opens (or creates) a BBolt database at path.
func Open(path, key string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return New(db, key), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(_ context.Context, creds sessions.Credentials) error {
	data, err := sessions.Encode(creds)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(s.key, data)
	})
}

func (s *Store) Load(_ context.Context) (*sessions.Credentials, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		// Values are only valid for the life of the transaction.
		if v := b.Get(s.key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	return sessions.DecodeOrAbsent(data, "bolt"), nil
}

func (s *Store) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete(s.key)
	})
}

// putRaw writes bytes verbatim; tests use it to plant corrupt records.
func (s *Store) putRaw(data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(s.key, data)
	})
}
