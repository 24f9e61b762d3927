package services

import (
	"context"
	"fmt"
	"time"

	"pingpoint/config"

	"github.com/go-redis/redis/v8"
)

func redisOptions(conf *config.ConfigSchema) *redis.Options {
	return &redis.Options{
		Addr:        conf.RedisAddr(),
		Password:    conf.Redis.Password,
		DB:          conf.Redis.DB,
		DialTimeout: 2 * time.Second,
	}
}

// NewRedisClient connects to the configured Redis and checks it answers.
func NewRedisClient(ctx context.Context, conf *config.ConfigSchema) (*redis.Client, error) {
	client := redis.NewClient(redisOptions(conf))

	// Тест соединения
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", conf.RedisAddr(), err)
	}
	return client, nil
}
