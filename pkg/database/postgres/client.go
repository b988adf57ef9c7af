package postgres

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client PostgreSQL 客户端
type Client struct {
	master   *pgxpool.Pool
	replicas []*pgxpool.Pool
	cfg      *Config

	replicaIndex atomic.Uint64
}

// New 创建 PostgreSQL 客户端，并对主库做一次连通性检查
func New(cfg *Config) (*Client, error) {
	merged, err := MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := validateConfig(merged); err != nil {
		return nil, err
	}

	master, err := createPool(merged, merged.Master)
	if err != nil {
		return nil, fmt.Errorf("failed to create master pool: %w", err)
	}

	c := &Client{master: master, cfg: merged}
	for i := range merged.Replicas {
		replica, err := createPool(merged, &merged.Replicas[i])
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create replica pool %d: %w", i, err)
		}
		c.replicas = append(c.replicas, replica)
	}
	return c, nil
}

// reader 轮询选择只读副本
func (c *Client) reader() *pgxpool.Pool {
	if len(c.replicas) == 0 {
		return c.master
	}
	idx := c.replicaIndex.Add(1)
	return c.replicas[idx%uint64(len(c.replicas))]
}

// Close 关闭所有连接池，实现 app.Closer
func (c *Client) Close() error {
	if c.master != nil {
		c.master.Close()
	}
	for _, r := range c.replicas {
		r.Close()
	}
	return nil
}

// Ping 检查主库连接
func (c *Client) Ping(ctx context.Context) error {
	if err := c.master.Ping(ctx); err != nil {
		return fmt.Errorf("master ping failed: %w", err)
	}
	return nil
}

// Query 在只读副本上执行查询，调用方负责关闭 rows
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.reader().Query(ctx, sql, args...)
}

// QueryRow 在只读副本上查询单行
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.reader().QueryRow(ctx, sql, args...)
}

// Exec 在主库执行写操作
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := c.applyQueryTimeout(ctx)
	defer cancel()

	n, err := rowsAffected(c.master.Exec(ctx, sql, args...))
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	return n, nil
}

func (c *Client) applyQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.QueryTimeout)
	}
	return ctx, func() {}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if err := validateDBConfig(cfg.Master); err != nil {
		return fmt.Errorf("invalid master config: %w", err)
	}
	for i := range cfg.Replicas {
		if err := validateDBConfig(&cfg.Replicas[i]); err != nil {
			return fmt.Errorf("invalid replica %d config: %w", i, err)
		}
	}
	if cfg.Pool.MaxConns <= 0 {
		return fmt.Errorf("%w: max_conns must be positive", ErrInvalidConfig)
	}
	if cfg.Pool.MinConns < 0 || cfg.Pool.MinConns > cfg.Pool.MaxConns {
		return fmt.Errorf("%w: min_conns must be within [0, max_conns]", ErrInvalidConfig)
	}
	return nil
}

func validateDBConfig(cfg *DBConfig) error {
	switch {
	case cfg == nil:
		return fmt.Errorf("%w: db config is nil", ErrInvalidConfig)
	case cfg.Host == "":
		return fmt.Errorf("%w: host is empty", ErrInvalidConfig)
	case cfg.Port <= 0 || cfg.Port > 65535:
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, cfg.Port)
	case cfg.User == "":
		return fmt.Errorf("%w: user is empty", ErrInvalidConfig)
	case cfg.DBName == "":
		return fmt.Errorf("%w: db_name is empty", ErrInvalidConfig)
	}
	return nil
}

func createPool(cfg *Config, dbCfg *DBConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg, dbCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.Pool.MaxConns
	poolConfig.MinConns = cfg.Pool.MinConns
	poolConfig.MaxConnLifetime = cfg.Pool.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Pool.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.Pool.HealthCheckPeriod

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func buildConnString(cfg *Config, dbCfg *DBConfig) string {
	sslMode := dbCfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.DBName, sslMode,
		int(cfg.ConnectTimeout.Seconds()),
	)
}
