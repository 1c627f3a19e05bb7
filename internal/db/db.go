package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Querier is the subset of *sql.DB and *sql.Tx used by repositories.
// Queries are written with '?' placeholders and rebound per driver.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DB wraps the sql.DB for connection management
type DB struct {
	conn   *sql.DB
	driver string
}

// New opens and pings a connection for the given driver ("sqlite" or "postgres").
func New(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; a single pooled connection queues writers
		// in database/sql instead of failing them with SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &DB{conn: conn, driver: driver}, nil
}

// sqliteDSN makes every sqlite connection enforce foreign keys and wait on
// locks held by other processes instead of returning SQLITE_BUSY.
func sqliteDSN(dsn string) string {
	for _, pragma := range []string{"foreign_keys(1)", "busy_timeout(5000)"} {
		name := pragma[:strings.IndexByte(pragma, '(')]
		if strings.Contains(dsn, name) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=" + pragma
	}
	return dsn
}

// Wrap adopts an existing connection, e.g. one created by sqlmock.
func Wrap(conn *sql.DB, driver string) *DB {
	if driver == "" {
		driver = DriverSQLite
	}
	return &DB{conn: conn, driver: driver}
}

// Close closes the DB connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the configured driver name.
func (db *DB) Driver() string { return db.driver }

// Exec executes a query
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, Rebind(db.driver, query), args...)
}

// QueryRow executes a query that is expected to return at most one row
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, Rebind(db.driver, query), args...)
}

// QueryRows executes a query returning multiple rows. Callers close the rows.
func (db *DB) QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, Rebind(db.driver, query), args...)
}

// GetConn returns the underlying sql.DB
func (db *DB) GetConn() *sql.DB {
	return db.conn
}

// InTx runs fn inside a transaction, committing on nil and rolling back otherwise.
func (db *DB) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&txQuerier{tx: tx, driver: db.driver}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txQuerier struct {
	tx     *sql.Tx
	driver string
}

func (t *txQuerier) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, Rebind(t.driver, query), args...)
}

func (t *txQuerier) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, Rebind(t.driver, query), args...)
}

func (t *txQuerier) QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, Rebind(t.driver, query), args...)
}

// Rebind rewrites '?' placeholders to '$n' for postgres. Quoted literals are left alone.
func Rebind(driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Now returns the current time as unix milliseconds, the timestamp unit of every table.
func Now() int64 {
	return time.Now().UnixMilli()
}
