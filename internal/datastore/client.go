// internal/datastore/client.go
//
// Data-access client for the relational store.
// Responsibilities:
//   - Opening Postgres (hosted, via pgx) or SQLite (local dev/tests, via go-sqlite3).
//   - Bridging gorm's logger into zerolog.
//   - Transactions that hand a tx-scoped *Client to the callback.
//
// Callers never touch gorm directly; they go through From[T] (query.go).

package datastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options selects and tunes the backing database.
type Options struct {
	Driver string // "postgres" | "sqlite"
	DSN    string
	Logger zerolog.Logger
}

// Client wraps a gorm handle. The zero value is not usable; use Open.
type Client struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, opts Options) (*Client, error) {
	dialector, err := dialectorFor(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(opts.Logger),
		NowFunc:                func() time.Time { return time.Now().UTC() },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.Driver == "sqlite" {
		// A single connection keeps SQLite writers from tripping over each other.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	c := &Client{db: db, log: opts.Logger}
	pingCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}
	return c, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		// Simple protocol plays nicely with transaction-mode poolers in front of hosted Postgres.
		return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), nil
	case "sqlite":
		return sqlite.Open(sqliteDSN(dsn)), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// sqliteDSN ensures the parent directory exists for file paths like
// ./data/garden.db and adds busy timeout, WAL and foreign keys. DSNs that
// already carry query parameters are used as given.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return dsn + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Tx runs fn inside a transaction. fn receives a Client bound to the
// transaction; returning an error rolls back.
func (c *Client) Tx(ctx context.Context, fn func(tx *Client) error) error {
	return c.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Client{db: gtx, log: c.log})
	})
}

// ---------------------------- gorm -> zerolog --------------------------------

type gormWriter struct{ log zerolog.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Str("component", "gorm").Msgf(format, args...)
}

func newGormLogger(l zerolog.Logger) logger.Interface {
	return logger.New(gormWriter{log: l}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// ------------------------------- errors --------------------------------------

var (
	// ErrNotFound means no row matched the filters.
	ErrNotFound = errors.New("datastore: not found")
	// ErrConflict means a unique constraint rejected the write.
	ErrConflict = errors.New("datastore: conflict")
	// ErrUnfiltered guards against table-wide updates and deletes.
	ErrUnfiltered = errors.New("datastore: refusing to write without filters")
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505" // unique_violation
	}
	return false
}
