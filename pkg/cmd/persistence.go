// Package cmd provides shared construction helpers for the service binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/persistence/cache"
	"github.com/mandala/approvals/pkg/persistence/file"
	"github.com/mandala/approvals/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from a database URL. A
// postgres:// or postgresql:// URL selects PostgreSQL; anything else is
// treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	}

	return file.NewPersistence(databaseURL), nil
}

// NewCachedPersistence layers a Redis read-through cache over the store when
// a cache URL is configured. An empty URL returns the store unchanged; a
// malformed URL is fatal misconfiguration.
func NewCachedPersistence(store persistence.Persistence, cacheURL string, logger *slog.Logger) persistence.Persistence {
	if cacheURL == "" {
		return store
	}

	options, err := redis.ParseURL(normalizeRedisURL(cacheURL))
	if err != nil {
		panic("invalid cache URL: " + err.Error())
	}

	return cache.NewPersistence(store, redis.NewClient(options), logger)
}

func normalizeRedisURL(url string) string {
	if strings.Contains(url, "://") {
		return url
	}

	return "redis://" + url
}
