// Package rediscache provides a cache backend on Redis.
//
// Entries are plain string keys holding little-endian float32 blobs. Expiry is
// left to Redis, so Count and DeletePrefix only ever see live keys.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 500

// Backend stores vectors in Redis.
type Backend struct {
	client *redis.Client
}

// Open connects to a redis:// or rediss:// target and pings it.
func Open(ctx context.Context, target string) (*Backend, error) {
	opts, err := redis.ParseURL(target)
	if err != nil {
		return nil, fmt.Errorf("parsing redis target: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return New(client), nil
}

// New wraps an existing client. The backend owns client.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

func (b *Backend) Get(ctx context.Context, key string) (embeddings.Vector, bool, error) {
	blob, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	v, err := embeddings.Unmarshal(blob)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, vec embeddings.Vector, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, key, embeddings.Marshal(vec), ttl).Err(); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (b *Backend) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var removed int64
	err := b.scan(ctx, prefix, func(keys []string) error {
		n, err := b.client.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("deleting cache entries: %w", err)
		}
		removed += n
		return nil
	})
	return removed, err
}

func (b *Backend) Count(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := b.scan(ctx, prefix, func(keys []string) error {
		n += int64(len(keys))
		return nil
	})
	return n, err
}

func (b *Backend) Close() error {
	return b.client.Close()
}

// scan walks the keyspace with SCAN, calling fn with each non-empty page of
// keys under prefix.
func (b *Backend) scan(ctx context.Context, prefix string, fn func(keys []string) error) error {
	pattern := globEscape(prefix) + "*"

	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scanning cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// globEscape escapes the glob metacharacters MATCH understands.
func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
