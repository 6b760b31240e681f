package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"homework-bot/internal/domain"
)

const keyPrefix = "homework-bot:notified:"

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Once выполняет функцию, если ключ ещё не задан.
// При ошибке fn ключ удаляется, чтобы следующая попытка снова выполнила fn.
// При ttl <= 0 ключ не запоминается и fn выполняется всегда.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	if ttl <= 0 {
		return fn()
	}
	ok, err := c.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrDuplicate
	}
	if err := fn(); err != nil {
		_ = c.client.Del(context.WithoutCancel(ctx), keyPrefix+key).Err()
		return err
	}
	return nil
}
