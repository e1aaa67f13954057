// Package db opens the Postgres pool backing the document store and the
// Redis client backing tokens, rate limits and cached lookups.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/motorlot/apiserver/config"
	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 2 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// PostgresURL builds the lib/pq connection URL for cfg.Database. The same URL
// feeds golang-migrate's postgres driver.
func PostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port),
		User:     url.UserPassword(cfg.Database.User, cfg.Database.Password),
		Path:     cfg.Database.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// Open returns a pinged Postgres pool sized by cfg.Database.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	pool, err := sql.Open("postgres", PostgresURL(cfg))
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	pool.SetConnMaxIdleTime(connMaxIdleTime)
	pool.SetConnMaxLifetime(connMaxLifetime)

	if err := ping(ctx, pool.PingContext); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}
	return pool, nil
}

// OpenRedis connects to a single Redis node and verifies it with a ping.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := ping(ctx, func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}
