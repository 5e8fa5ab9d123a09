package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"simulation-service/internal/config"
)

// NewRedisClient connects to Redis. An unreachable cache is logged and
// tolerated: every read path falls back to the durable store.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable at %s, operating without cache: %v", cfg.Address, err)
	}
	return client
}
