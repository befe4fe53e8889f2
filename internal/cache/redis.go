// Package cache хранит ключи дедупликации подтверждений в redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/paywall-ledger/internal/config"
)

const keyPrefix = "paywall:confirmation:"

// Cache обёртка над клиентом redis
type Cache struct {
	Db  *redis.Client
	ttl time.Duration
}

// InitServer подключается к redis и проверяет соединение
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db, ttl: cfg.DedupeTTL}, nil
}

// SetIfAbsent помечает ключ как обработанный. Возвращает false, если ключ уже был.
func (c *Cache) SetIfAbsent(ctx context.Context, key string) (bool, error) {
	const op = "cache.SetIfAbsent"
	ok, err := c.Db.SetNX(ctx, keyPrefix+key, time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Invalidate снимает отметку, чтобы повторная доставка была обработана.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.Db.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache.Invalidate: %w", err)
	}
	return nil
}

// Close закрывает соединение.
func (c *Cache) Close() error {
	return c.Db.Close()
}
