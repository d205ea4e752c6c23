// Package storage defines the durable key-value contract the offline queue
// persists through, with SQLite, Redis, and in-memory implementations.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a key with no stored value.
var ErrNotFound = errors.New("key not found")

// Store is the durable persistence collaborator. A Put that returns nil must
// mean the value survives a process restart; the queue treats anything else
// as "not persisted".
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put durably writes value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}
