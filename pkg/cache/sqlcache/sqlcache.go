// Package sqlcache provides a cache backend on SQLite or PostgreSQL.
package sqlcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/sqldb"
)

// Backend stores vectors in the embedding_cache table.
type Backend struct {
	db  *sqldb.DB
	now func() time.Time
}

// Open connects to target and prepares the schema.
func Open(ctx context.Context, target string) (*Backend, error) {
	db, err := sqldb.Open(ctx, target)
	if err != nil {
		return nil, err
	}

	b, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// New prepares the schema on an open database. The backend owns db.
func New(ctx context.Context, db *sqldb.DB) (*Backend, error) {
	b := &Backend{db: db, now: time.Now}
	if err := b.migrate(ctx); err != nil {
		return nil, err
	}

	// Entries that expired while no process was running.
	if err := b.Purge(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embedding_cache (
			cache_key  TEXT PRIMARY KEY,
			vector     %s NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0
		)`, b.db.BlobType()),
		`CREATE INDEX IF NOT EXISTS embedding_cache_expires_at ON embedding_cache (expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating cache schema: %w", err)
		}
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (embeddings.Vector, bool, error) {
	var (
		blob      []byte
		expiresAt int64
	)
	err := b.db.QueryRowContext(ctx,
		b.db.Rebind(`SELECT vector, expires_at FROM embedding_cache WHERE cache_key = ?`),
		key,
	).Scan(&blob, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	if expiresAt != 0 && b.now().UnixMilli() > expiresAt {
		if _, err := b.db.ExecContext(ctx,
			b.db.Rebind(`DELETE FROM embedding_cache WHERE cache_key = ? AND expires_at = ?`),
			key, expiresAt,
		); err != nil {
			return nil, false, fmt.Errorf("purging expired cache entry: %w", err)
		}
		return nil, false, nil
	}

	v, err := embeddings.Unmarshal(blob)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, vec embeddings.Vector, ttl time.Duration) error {
	now := b.now()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixMilli()
	}

	_, err := b.db.ExecContext(ctx, b.db.Rebind(`
		INSERT INTO embedding_cache (cache_key, vector, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			vector = excluded.vector,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`),
		key, embeddings.Marshal(vec), now.UnixMilli(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (b *Backend) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := b.db.ExecContext(ctx,
		b.db.Rebind(`DELETE FROM embedding_cache WHERE cache_key LIKE ? ESCAPE '\'`),
		likePrefix(prefix),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting cache entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted cache entries: %w", err)
	}
	return n, nil
}

func (b *Backend) Count(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := b.db.QueryRowContext(ctx,
		b.db.Rebind(`SELECT COUNT(*) FROM embedding_cache
			WHERE cache_key LIKE ? ESCAPE '\' AND (expires_at = 0 OR expires_at >= ?)`),
		likePrefix(prefix), b.now().UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// Purge deletes every expired entry.
func (b *Backend) Purge(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx,
		b.db.Rebind(`DELETE FROM embedding_cache WHERE expires_at <> 0 AND expires_at < ?`),
		b.now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// likePrefix escapes LIKE wildcards in prefix and appends the match-all suffix.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
