package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/repeateval/repeat/internal/pkg/hash"
	"github.com/repeateval/repeat/internal/table"
)

// DefaultKeyPrefix namespaces fragment keys in a shared Redis database.
const DefaultKeyPrefix = "repeat:fragment:"

// Redis shares fragments between processes through a Redis server. Tables
// are stored JSON-encoded with a TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to the server at url.
// Returns error if connection fails.
func NewRedis(url, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *Redis) key(k Key) string {
	return r.prefix + hash.FragmentKey(k.Parts()...)
}

func (r *Redis) Get(ctx context.Context, key Key) (*table.Table, bool) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var t table.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, false
	}
	return &t, true
}

func (r *Redis) Set(ctx context.Context, key Key, t *table.Table) {
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	r.client.Set(ctx, r.key(key), data, r.ttl)
}

// Purge deletes every key under the prefix.
func (r *Redis) Purge(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning fragments: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting fragments: %w", err)
	}
	return nil
}

// Len is unknown for a shared server.
func (r *Redis) Len() int {
	return -1
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
