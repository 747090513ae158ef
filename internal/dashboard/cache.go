package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "dashboard:version"
	bumpChannel     = "dashboard.bump"
)

// Cache keeps backend metric payloads in Redis under versioned keys. Bumping
// the version orphans every cached payload at once. A nil Cache or client
// disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// TTL returns how long payloads stay cached.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		// SetNX keeps a concurrent Bump from being overwritten.
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	case err != nil:
		return 0, err
	case ver <= 0:
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return joined + ":v" + strconv.FormatInt(ver, 10), nil
}

// FetchJSON returns the payload cached under key or populates it with
// loader. hit reports whether the payload came from Redis. Redis failures
// degrade to calling loader; only loader errors are returned.
func (c *Cache) FetchJSON(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) (payload []byte, hit bool, err error) {
	if loader == nil {
		return nil, false, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil || key == "" {
		payload, err = loader(ctx)
		return payload, false, err
	}
	payload, err = c.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("dashboard cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	payload, err = loader(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("dashboard cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return payload, false, nil
}

// Bump invalidates the cache by incrementing the version and publishing it.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return 0, err
	}
	return ver, c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bumps published by other
// processes and calls onBump for each. It returns once the subscription is
// established; delivery stops when ctx is done.
func (c *Cache) ListenForInvalidation(ctx context.Context, onBump func(version int64)) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					c.logger.Warn("ignoring malformed cache bump", slog.String("payload", msg.Payload))
					continue
				}
				if onBump != nil {
					onBump(ver)
				}
			}
		}
	}()
	return nil
}
