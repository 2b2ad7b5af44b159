// Package database manages the pooled MySQL connection and exposes
// parameterized query execution. Connections are acquired, used and
// released within a single call; no caller ever holds one across two
// logical operations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

// Config holds the pool settings. Immutable after Open.
type Config struct {
	Host     string
	User     string
	Password string
	Name     string
	// ConnLimit bounds the number of live connections.
	ConnLimit int
	// QueryTimeout bounds a single query, pool wait included.
	QueryTimeout time.Duration
}

const (
	defaultConnLimit    = 10
	defaultQueryTimeout = 5 * time.Second
)

// DB wraps a bounded *sql.DB pool.
type DB struct {
	pool         *sql.DB
	queryTimeout time.Duration
	closed       bool
}

// New wraps an existing pool handle. Used where the caller owns the
// *sql.DB lifecycle, tests included.
func New(pool *sql.DB, queryTimeout time.Duration) *DB {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &DB{pool: pool, queryTimeout: queryTimeout}
}

// Open creates the connection pool and verifies connectivity.
func Open(cfg Config) (*DB, error) {
	if cfg.ConnLimit <= 0 {
		cfg.ConnLimit = defaultConnLimit
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}

	mc := mysql.NewConfig()
	mc.Addr = cfg.Host
	mc.Net = "tcp"
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Name
	mc.ParseTime = true

	pool, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql pool: %w", err)
	}
	pool.SetMaxOpenConns(cfg.ConnLimit)
	pool.SetMaxIdleConns(cfg.ConnLimit)
	pool.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	slog.Info("mysql pool opened", "host", cfg.Host, "database", cfg.Name, "conn_limit", cfg.ConnLimit)
	return &DB{pool: pool, queryTimeout: cfg.QueryTimeout}, nil
}

// Result carries the rows and field metadata of one query.
type Result struct {
	Columns []string
	Rows    []RowMap
}

// RowMap is one row keyed by column name.
type RowMap map[string]any

// Query executes a query with no parameters.
func (db *DB) Query(ctx context.Context, query string) (*Result, error) {
	return db.QueryParams(ctx, query)
}

// QueryParams executes a query binding params positionally. A blank query
// fails with an invalid-input error before touching the pool. Driver and
// transport errors propagate as typed database failures; they are never
// swallowed.
func (db *DB) QueryParams(ctx context.Context, query string, params ...any) (*Result, error) {
	if db.closed {
		return nil, apperrors.Database(sql.ErrConnDone)
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.InvalidInput("query must be a non-empty string")
	}

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	rows, err := db.pool.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classify(err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(err)
		}
		row := make(RowMap, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

// Exec executes a statement that returns no rows and reports the number
// of affected rows.
func (db *DB) Exec(ctx context.Context, query string, params ...any) (int64, error) {
	if db.closed {
		return 0, apperrors.Database(sql.ErrConnDone)
	}
	if strings.TrimSpace(query) == "" {
		return 0, apperrors.InvalidInput("query must be a non-empty string")
	}

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	res, err := db.pool.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err)
	}
	return affected, nil
}

// Close releases all pooled connections. It only releases resources;
// process exit belongs to the entry point. The pool must not be reused
// after Close.
func (db *DB) Close() error {
	db.closed = true
	if err := db.pool.Close(); err != nil {
		slog.Error("error closing the pool", "error", err)
		return err
	}
	slog.Info("pool closed")
	return nil
}

// classify maps driver errors onto the failure taxonomy. Deadline
// expiry, which also covers waiting on an exhausted pool, becomes a
// timeout failure so callers can tell it apart from a broken query.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.QueryTimeout(err)
	}
	return apperrors.Database(err)
}

// IsDuplicateEntry reports whether err is a MySQL unique-key violation.
func IsDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
