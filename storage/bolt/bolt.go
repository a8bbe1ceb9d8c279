// Package bolt provides a bbolt-backed storage.KeyValue.
package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/tripmate/authkit/storage"
)

var bucketName = []byte("kv")

// Store implements storage.KeyValue backed by a bbolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.KeyValue = (*Store)(nil)

// NewStore returns a Store backed by the given bbolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating kv bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a bbolt database at the given path and returns a new
// Store.
func NewStoreFromFile(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketName).Get([]byte(key)); data != nil {
			value = string(data)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}
