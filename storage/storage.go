// Package storage defines the general key-value persistence layer used for
// session state, plus the secure adapter that keeps the refresh credential
// out of it.
package storage

import "context"

// KeyValue is a string-keyed persistence layer. An absent key is a normal
// state: GetItem returns ("", nil) when nothing is stored under key.
type KeyValue interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
