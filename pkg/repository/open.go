package repository

import (
	"fmt"

	"github.com/example/articleshop/pkg/config"
	"go.uber.org/zap"
)

// Open connects the backend selected by cfg.Store.Driver. Persistent backends get the Redis
// user cache in front of them when a Redis address is configured.
func Open(cfg *config.Config, logger *zap.Logger) (Store, error) {
	var store Store
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return NewMemoryRepository(), nil
	case config.DriverMySQL:
		repo, err := NewMySQLRepository(&cfg.MySQL)
		if err != nil {
			return nil, err
		}
		store = repo
	case config.DriverMongo:
		repo, err := NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		store = repo
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Redis.Addr != "" {
		store = WithUserCache(store, NewRedisRepository(&cfg.Redis), logger.Named("user-cache"))
	}
	logger.Info("Store opened", zap.String("driver", cfg.Store.Driver))
	return store, nil
}

// Unwrap returns the backend beneath any caching layer.
func Unwrap(store Store) Store {
	if cached, ok := store.(*cachedStore); ok {
		return cached.Store
	}
	return store
}
