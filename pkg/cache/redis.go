// Package cache connects to the Redis instance holding generation results.
package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/juan-barragan/oraccio/pkg/config"
)

const (
	keyPrefix   = "oraccio"
	dialTimeout = 3 * time.Second
	pingTimeout = 5 * time.Second
)

// NewRedis dials Redis and checks it answers before handing the client out.
// Results are small JSON documents, so a modest pool is enough.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", client.Options().Addr, err)
	}

	return client, nil
}

// Key namespaces parts under the service prefix, e.g. oraccio:result:<id>.
// Empty parts are skipped so a missing ID never yields a shared key.
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts)+1)
	kept = append(kept, keyPrefix)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}
