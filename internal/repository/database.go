package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/hotelpms/server/internal/observability"
)

// Dialect identifies the SQL flavour spoken by a Database
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgresql"
)

// Querier is satisfied by *sql.DB and by the traced wrapper
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Database is a connection pool plus the dialect its queries are written for.
// Repositories write queries with ? placeholders; they are rebound for Postgres.
type Database struct {
	db      *sql.DB
	conn    Querier
	dialect Dialect
}

func newDatabase(db *sql.DB, dialect Dialect) *Database {
	return &Database{db: db, conn: db, dialect: dialect}
}

// Open connects to PostgreSQL when databaseURL is set, SQLite otherwise
func Open(databaseURL, databasePath string) (*Database, error) {
	if databaseURL != "" {
		return NewPostgresDB(databaseURL)
	}
	return NewSQLiteDB(databasePath)
}

// Dialect returns the SQL dialect of the connection
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// SQL returns the underlying connection pool
func (d *Database) SQL() *sql.DB {
	return d.db
}

// Instrument routes all repository queries through the traced wrapper
func (d *Database) Instrument() error {
	traced, err := observability.NewTraceDB(d.db, string(d.dialect))
	if err != nil {
		return err
	}
	d.conn = traced
	return nil
}

// Ping verifies the database is reachable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the connection pool
func (d *Database) Close() error {
	return d.db.Close()
}

// Rebind converts ? placeholders to the dialect's positional form
func (d *Database) Rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (d *Database) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return d.conn.ExecContext(ctx, d.Rebind(query), args...)
}

func (d *Database) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, d.Rebind(query), args...)
}

func (d *Database) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.conn.QueryRowContext(ctx, d.Rebind(query), args...)
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}
