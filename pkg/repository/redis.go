package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func userSubjectKey(subject string) string {
	return fmt.Sprintf("user:subject:%s", subject)
}

func (r *RedisRepository) CacheUser(ctx context.Context, user *models.User) error {
	ttl := r.config.UserTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return r.SetJSON(ctx, userSubjectKey(user.ExternalSubjectID), user, ttl)
}

// GetUserCache returns redis.Nil when the subject is not cached.
func (r *RedisRepository) GetUserCache(ctx context.Context, subject string) (*models.User, error) {
	var user models.User
	if err := r.GetJSON(ctx, userSubjectKey(subject), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *RedisRepository) EvictUser(ctx context.Context, subject string) error {
	return r.Del(ctx, userSubjectKey(subject))
}

// cachedStore serves subject lookups from Redis. Users are never mutated, so the only
// invalidation needed is on delete. Redis failures degrade to the backing store.
type cachedStore struct {
	Store
	cache  *RedisRepository
	logger *zap.Logger
}

func WithUserCache(store Store, cache *RedisRepository, logger *zap.Logger) Store {
	return &cachedStore{Store: store, cache: cache, logger: logger}
}

func (s *cachedStore) FindUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	user, err := s.cache.GetUserCache(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("user cache read failed", zap.String("subject", subject), zap.Error(err))
	}

	user, err = s.Store.FindUserBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheUser(ctx, user); err != nil {
		s.logger.Warn("user cache write failed", zap.String("subject", subject), zap.Error(err))
	}
	return user, nil
}

func (s *cachedStore) DeleteUser(ctx context.Context, id string) error {
	user, err := s.Store.FindUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := s.cache.EvictUser(ctx, user.ExternalSubjectID); err != nil {
		s.logger.Warn("user cache evict failed", zap.String("user_id", id), zap.Error(err))
	}
	return nil
}

func (s *cachedStore) Close(ctx context.Context) error {
	return errors.Join(s.cache.Close(), s.Store.Close(ctx))
}

func (s *cachedStore) Ping(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		s.logger.Warn("Redis connection failed", zap.Error(err))
	}
	return s.Store.Ping(ctx)
}
