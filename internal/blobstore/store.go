// Package blobstore provides the key-value backends the persistence core is
// built on: namespaced blobs keyed by id plus durable string sets.
package blobstore

import "context"

// Store is a namespaced blob map plus durable sets. Single-key operations are
// atomic; nothing spans keys.
type Store interface {
	// Put overwrites the blob stored under namespace/id.
	Put(ctx context.Context, namespace, id string, data []byte) error
	// Get returns ErrNotFound when no blob exists under namespace/id.
	Get(ctx context.Context, namespace, id string) ([]byte, error)
	Exists(ctx context.Context, namespace, id string) (bool, error)
	// Delete reports whether a blob was removed.
	Delete(ctx context.Context, namespace, id string) (bool, error)
	ListIDs(ctx context.Context, namespace string) ([]string, error)

	SetAdd(ctx context.Context, set, member string) error
	SetRemove(ctx context.Context, set, member string) error
	SetMembers(ctx context.Context, set string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
