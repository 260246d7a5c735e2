package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 2 * time.Second

var (
	redisMu     sync.Mutex
	redisClient *redis.Client
	redisTried  bool
)

// RedisOptionsFromEnv reads the session cache settings. ok is false unless
// REDIS_ENABLED=true, in which case sessions and rate limits use Redis.
func RedisOptionsFromEnv() (opts redis.Options, ok bool) {
	enabled, _ := strconv.ParseBool(os.Getenv("REDIS_ENABLED"))
	opts.Addr = os.Getenv("REDIS_ADDR")
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	opts.Password = os.Getenv("REDIS_PASSWORD")
	if opts.Password == "" {
		opts.Password = os.Getenv("REDIS_PASS")
	}
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && n >= 0 {
		opts.DB = n
	}
	return opts, enabled
}

// ConnectRedis dials Redis once. It returns a nil client with no error when
// Redis is disabled or APPENV=test.
func ConnectRedis() (*redis.Client, error) {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisTried {
		return redisClient, nil
	}
	redisTried = true

	opts, ok := RedisOptionsFromEnv()
	if !ok || IsTestEnv() {
		return nil, nil
	}

	rdb := redis.NewClient(&opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	redisClient = rdb
	log.Printf("Session cache connected to Redis at %s", opts.Addr)
	return redisClient, nil
}

// GetRedisClient returns the connected client, or nil when sessions live in the database only.
func GetRedisClient() *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	return redisClient
}

// SetRedisClientForTest installs a client such as a redismock one.
func SetRedisClientForTest(client *redis.Client) {
	redisMu.Lock()
	defer redisMu.Unlock()
	redisClient = client
	redisTried = client != nil
}

// ResetRedisClientForTest forgets the client so ConnectRedis dials again.
func ResetRedisClientForTest() {
	SetRedisClientForTest(nil)
}
