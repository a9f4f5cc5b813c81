package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Open selects a TransactionStore from the connection URL scheme:
// redis:// or rediss:// for Redis, anything else is treated as a SQLite DSN.
func Open(ctx context.Context, url string) (TransactionStore, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		repo := NewRedisRepo(redis.NewClient(opts))
		if err := repo.Ping(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return repo, nil
	}

	repo, err := NewSQLiteRepo(url)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
