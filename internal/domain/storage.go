package domain

import "context"

// KVStore is the durable key-value device bookmarks are persisted to.
// Get reports ok=false for a key that was never written.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
