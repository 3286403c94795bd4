// Package redis holds the shared go-redis connection plus the two things the
// services keep there: idempotent HTTP responses and the cron lock.
package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

var errNotInitialized = errors.New("redis client not initialized")

// cmdable is the subset of go-redis the package calls, kept narrow for fakes.
type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Eval(context.Context, string, []string, ...any) *redis.Cmd
}

type Client struct {
	store cmdable
	raw   *redis.Client
}

type Pinger interface {
	Ping(context.Context) error
}

// New connects and pings once so a bad address fails at boot.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"redis_addr": opts.Addr,
			"redis_db":   opts.DB,
		}), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers the URL form; explicit pool and timeout settings
// fill whatever the URL left unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	opts.DB = cmp.Or(opts.DB, cfg.DB)
	opts.PoolSize = cmp.Or(opts.PoolSize, cfg.PoolSize)
	opts.MinIdleConns = cmp.Or(opts.MinIdleConns, cfg.MinIdleConns)
	opts.DialTimeout = cmp.Or(opts.DialTimeout, cfg.DialTimeout)
	opts.ReadTimeout = cmp.Or(opts.ReadTimeout, cfg.ReadTimeout)
	opts.WriteTimeout = cmp.Or(opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
