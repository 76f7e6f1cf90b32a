package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/kinomark/internal/domain"
)

// Backend identifies a KV implementation
type Backend string

const (
	BackendBolt   Backend = "bolt"
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	Path    string // bolt/sqlite file, or directory for the file backend
	Redis   RedisOptions
}

// Open constructs the backend named in opts.
func Open(ctx context.Context, opts Options) (domain.KVStore, error) {
	switch Backend(strings.ToLower(string(opts.Backend))) {
	case BackendBolt, "":
		return NewBoltStore(opts.Path)
	case BackendMemory:
		return NewBoltStore("")
	case BackendFile:
		return NewFileStore(opts.Path)
	case BackendSQLite:
		return NewSQLiteStore(opts.Path)
	case BackendRedis:
		return NewRedisStore(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
