package utils

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns a singleton Redis client, or nil when REDIS_HOST is not
// configured. Every caller must tolerate nil: the cache is an optional
// accelerator, never a dependency.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		host := os.Getenv("REDIS_HOST")
		if host == "" {
			return
		}
		port := envInt("REDIS_PORT", 6379)
		redisClient = redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           envInt("REDIS_DB", 0),
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		// Ping to validate; ignore error to allow fallback paths
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = redisClient.Ping(ctx).Err()
	})
	return redisClient
}
