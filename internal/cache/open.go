package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// pingTimeout bounds the Redis reachability check.
const pingTimeout = 500 * time.Millisecond

// Options selects and configures a Store.
type Options struct {
	Backend        string
	Dir            string
	RedisAddr      string
	RedisRetention time.Duration
	SQLitePath     string
}

// Open returns the Store for opts. An unreachable Redis falls back to the
// file store so enforcement keeps working.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Dir), nil

	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			logger.Warn("redis unreachable, using file cache",
				zap.String("addr", opts.RedisAddr), zap.Error(err))
			return NewFileStore(opts.Dir), nil
		}
		return NewRedisStore(client, opts.RedisRetention), nil

	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(DefaultDir(), "cache.db")
		}
		return OpenSQLite(ctx, path)

	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
