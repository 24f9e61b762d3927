package services

import (
	"context"
	"testing"
	"time"

	"pingpoint/config"

	"github.com/stretchr/testify/assert"
)

func TestRedisOptions(t *testing.T) {
	conf := config.Default()
	conf.Redis.Host = "cache.internal"
	conf.Redis.Port = 6380
	conf.Redis.Password = "secret"
	conf.Redis.DB = 3

	opts := redisOptions(conf)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	conf := config.Default()
	conf.Redis.Host = "127.0.0.1"
	conf.Redis.Port = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := NewRedisClient(ctx, conf)
	assert.Error(t, err)
	assert.Nil(t, client)
}
