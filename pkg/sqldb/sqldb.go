// Package sqldb opens the SQL databases backing the cache and vector store.
//
// A target DSN selects the dialect: "sqlite://<path>" (or "sqlite://:memory:")
// opens SQLite through github.com/mattn/go-sqlite3, "postgres://..." and
// "postgresql://..." open PostgreSQL through the pgx stdlib driver.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the SQL flavor behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ErrUnsupportedDSN is returned for targets with an unknown scheme.
var ErrUnsupportedDSN = errors.New("unsupported database target")

// DB is a database handle that knows its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open parses target, opens the database and verifies it is reachable.
func Open(ctx context.Context, target string) (*DB, error) {
	dialect, source, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case SQLite:
		return openSQLite(ctx, source)
	case Postgres:
		return openPostgres(ctx, source)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, target)
	}
}

// ParseTarget splits a target DSN into its dialect and the driver data source.
func ParseTarget(target string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(target, "sqlite://"):
		source := strings.TrimPrefix(target, "sqlite://")
		if source == "" {
			return "", "", fmt.Errorf("%w: sqlite target has no path", ErrUnsupportedDSN)
		}
		return SQLite, source, nil
	case strings.HasPrefix(target, "postgres://"), strings.HasPrefix(target, "postgresql://"):
		return Postgres, target, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDSN, target)
	}
}

// Rebind rewrites "?" placeholders into the dialect's bind style.
func (d *DB) Rebind(query string) string {
	if d.Dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// BlobType is the column type used for binary vector payloads.
func (d *DB) BlobType() string {
	if d.Dialect == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}
