package history

import (
	"context"
	"fmt"

	"opsflow/internal/config"
	"opsflow/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// Open builds the store selected by the history configuration. The redis
// backend is pinged before it is returned.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.HistoryBackendMemory:
		logging.Debug("HistoryStore", "Using in-memory run history")
		return NewMemoryStore(0), nil
	case config.HistoryBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Protocol: 2,
		})
		store := NewRedisStore(client, cfg.KeyPrefix, cfg.TTL)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logging.Info("HistoryStore", "Using redis run history at %s (prefix %s)", cfg.RedisAddr, cfg.KeyPrefix)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}
