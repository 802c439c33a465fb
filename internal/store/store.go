package store

import (
	"context"
	"errors"
)

// Namespaces used by groom. Each holds opaque JSON values keyed by
// ticket key.
const (
	NSTickets  = "tickets"
	NSReviews  = "reviews"
	NSComments = "comments"
)

// ErrNotFound is returned when a key is absent from a namespace.
var ErrNotFound = errors.New("not found")

// Store is a namespaced key-value store with atomic per-key writes.
// No multi-key transactions are assumed by callers.
type Store interface {
	Put(ctx context.Context, namespace, key string, value any) error
	Get(ctx context.Context, namespace, key string, out any) error
	List(ctx context.Context, namespace string) ([]string, error)
	Remove(ctx context.Context, namespace, key string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
