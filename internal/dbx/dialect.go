package dbx

import (
	"context"
	"database/sql"
	"strings"
)

// Dialect names the SQL flavour behind a *sql.DB. Queries in this module are
// written with Postgres-style $N placeholders.
type Dialect string

const (
	DialectPostgres Dialect = "pgx"
	DialectSQLite   Dialect = "sqlite"
)

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// GooseDialect is the dialect name goose expects for migrations.
func (d Dialect) GooseDialect() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "pgx"
}

// Rebind rewrites $N placeholders into the dialect's native form. Postgres
// queries are returned unchanged; SQLite gets ?N, which binds by ordinal.
// Placeholders inside single-quoted literals are left alone.
func Rebind(d Dialect, query string) string {
	if d != DialectSQLite || !strings.Contains(query, "$") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '$' && !inQuote && i+1 < len(query) && isDigit(query[i+1]):
			b.WriteByte('?')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Bind wraps db so every statement passes through Rebind for the dialect.
func Bind(db DBTX, d Dialect) DBTX {
	if d != DialectSQLite {
		return db
	}
	return &boundDB{db: db, dialect: d}
}

type boundDB struct {
	db      DBTX
	dialect Dialect
}

func (b *boundDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, Rebind(b.dialect, query), args...)
}

func (b *boundDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, Rebind(b.dialect, query), args...)
}

func (b *boundDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, Rebind(b.dialect, query), args...)
}
