package cache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// New creates a Redis client and pings it. The client is returned even when
// the ping fails: dashboards fall back to direct fetches until Redis is back.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  pingTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := ping(ctx, client); err != nil {
		return client, err
	}
	return client, nil
}

// Health returns the /healthz check for client.
func Health(client *redis.Client) func(*http.Request) error {
	return func(r *http.Request) error {
		return ping(r.Context(), client)
	}
}

func ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("platform/cache: redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("platform/cache: ping: %w", err)
	}
	return nil
}
