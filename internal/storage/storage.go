package storage

import "context"

// KV is the generic string-keyed persistence contract the queue and the
// transaction store persist through. Implementations must survive process
// restarts (except MemoryKV, which exists for tests and ephemeral runs).
type KV interface {
	// GetItem returns the stored value and whether the key was present.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
