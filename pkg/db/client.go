// Package db owns the shared GORM connection and the helpers repositories use
// to classify driver errors.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

const memorySQLite = "file::memory:?cache=shared"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Client struct {
	conn *gorm.DB
}

// New opens the configured driver. sqlite serves local runs and tests only.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	configurePool(sqlDB, cfg)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":         driverName(cfg),
			"max_open_conns": cfg.MaxOpenConns,
		}), "database connection established")
	}
	return &Client{conn: conn}, nil
}

// FromConn wraps a connection opened elsewhere, typically by sqlitetest.
func FromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func driverName(cfg config.DBConfig) string {
	if cfg.Driver == "" {
		return config.DriverPostgres
	}
	return cfg.Driver
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case config.DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = memorySQLite
		}
		return sqlite.Open(path), nil
	case config.DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("database DSN is required")
		}
		// simple protocol keeps pgbouncer in transaction mode happy
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func configurePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

// SQL returns the database/sql handle goose migrates through.
func (c *Client) SQL() (*sql.DB, error) {
	return c.conn.DB()
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction bound to ctx. Returning an error or
// panicking rolls it back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
