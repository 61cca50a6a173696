// Package redis backs cache.SnippetCache with Redis so several server
// instances share one public-snippet cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/snippet-vault/internal/model"
)

const (
	keyPrefix = "snippet:public:"

	// InvalidationChannel carries the id of every snippet whose cached copy
	// was dropped.
	InvalidationChannel = "snippet:invalidate"
)

// Cache wraps go-redis for the public snippet cache.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses a redis:// URL, creates the client and verifies connectivity.
func Connect(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return New(rdb, ttl), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

// Get returns (nil, nil) when the key does not exist.
func (c *Cache) Get(ctx context.Context, id string) (*model.Snippet, error) {
	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}

	var s model.Snippet
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.rdb.Del(ctx, key(id))
		return nil, nil
	}
	return &s, nil
}

func (c *Cache) Set(ctx context.Context, s *model.Snippet) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding snippet %s: %w", s.ID, err)
	}
	return c.rdb.Set(ctx, key(s.ID), raw, c.ttl).Err()
}

// Invalidate deletes the cached copy and announces the id on
// InvalidationChannel.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	return c.rdb.Publish(ctx, InvalidationChannel, id).Err()
}

// Subscribe calls fn with the id of every invalidation published by any
// instance until ctx is cancelled.
func (c *Cache) Subscribe(ctx context.Context, fn func(id string)) error {
	sub := c.rdb.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", InvalidationChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(msg.Payload)
		}
	}
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
