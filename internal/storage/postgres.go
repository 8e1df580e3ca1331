package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lca_wages/internal/logging"
	"lca_wages/internal/metrics"
)

// PostgresConfig holds PostgreSQL connection, pool and timeout settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxConns bounds concurrent connections. Requests that cannot acquire one
	// within AcquireTimeout fail with ErrUnavailable rather than queueing.
	MaxConns       int
	MinConns       int
	AcquireTimeout time.Duration

	// Statement timeouts applied per query.
	SearchTimeout time.Duration
	SampleTimeout time.Duration
	HubTimeout    time.Duration
}

// PostgresDB wraps the PostgreSQL connection pool shared by every query.
type PostgresDB struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	cfg = cfg.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", classify(err))
	}

	return &PostgresDB{pool: pool, cfg: cfg}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Ping checks the database is reachable.
func (d *PostgresDB) Ping(ctx context.Context) error {
	return classify(d.pool.Ping(ctx))
}

// Pool returns the underlying connection pool for advanced operations.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// readTx runs fn inside a read-only transaction whose statement_timeout is set
// transaction-locally, so the setting is gone once the scope ends. Connection
// acquisition is bounded by AcquireTimeout. Errors are classified and the
// latency is recorded for every call. pgx.ErrNoRows passes through untouched
// and is not counted as a failure.
func (d *PostgresDB) readTx(ctx context.Context, op string, timeout time.Duration, fn func(pgx.Tx) error) error {
	start := time.Now()
	err := d.runReadTx(ctx, timeout, fn)
	elapsed := time.Since(start)

	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveQuery(op, elapsed, "")
		return err
	}

	metrics.ObserveQuery(op, elapsed, errorKind(err))
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Str("op", op).
			Dur("latency", elapsed).
			Dur("statement_timeout", timeout).
			Msg("query failed")
	} else if elapsed > timeout/2 {
		logging.Ctx(ctx).Warn().
			Str("op", op).
			Dur("latency", elapsed).
			Msg("slow query")
	}
	return err
}

func (d *PostgresDB) runReadTx(ctx context.Context, timeout time.Duration, fn func(pgx.Tx) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, d.cfg.AcquireTimeout)
	conn, err := d.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		metrics.PoolAcquireFailures.Inc()
		return fmt.Errorf("%w: acquire connection: %w", ErrUnavailable, err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('statement_timeout', $1, true)`, timeoutSetting(timeout)); err != nil {
		return classify(fmt.Errorf("set statement_timeout: %w", err))
	}

	if err := fn(tx); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

// timeoutSetting formats a duration as a Postgres interval string in milliseconds.
func timeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}
