// Package sqlstore provides a vector store on SQLite or PostgreSQL.
//
// Owners and vectors live in separate tables so candidate queries can return
// owners that have no vector for the requested tag.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/sqldb"
	"github.com/papercomputeco/callctx/pkg/vector"
)

// Driver implements vector.Store on a SQL database.
type Driver struct {
	db     *sqldb.DB
	logger *slog.Logger
}

// NewDriver connects to target ("sqlite://..." or "postgres://...") and
// prepares the schema.
func NewDriver(ctx context.Context, target string, logger *slog.Logger) (*Driver, error) {
	db, err := sqldb.Open(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	d := &Driver{db: db, logger: logger}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sql vector store initialized", "dialect", db.Dialect)
	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vector_owners (
			owner_id   TEXT PRIMARY KEY,
			scope      TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			summary    TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS vector_owners_scope_created ON vector_owners (scope, created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS owner_vectors (
			owner_id   TEXT NOT NULL,
			tag        TEXT NOT NULL,
			vector     %s NOT NULL,
			dimensions INTEGER NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (owner_id, tag)
		)`, d.db.BlobType()),
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating vector schema: %w", err)
		}
	}
	return nil
}

func (d *Driver) PutOwner(ctx context.Context, owner vector.Owner) error {
	if owner.ID == "" {
		return errors.New("owner ID is required")
	}

	_, err := d.db.ExecContext(ctx, d.db.Rebind(`
		INSERT INTO vector_owners (owner_id, scope, text, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			scope = excluded.scope,
			text = excluded.text,
			summary = excluded.summary,
			created_at = excluded.created_at`),
		owner.ID, owner.Scope, owner.Text, owner.Summary, owner.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing owner %s: %w", owner.ID, err)
	}
	return nil
}

func (d *Driver) StoreVector(ctx context.Context, ownerID string, vec embeddings.Vector, tag vector.Tag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		d.db.Rebind(`SELECT 1 FROM vector_owners WHERE owner_id = ?`), ownerID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: owner %s", vector.ErrNotFound, ownerID)
	}
	if err != nil {
		return fmt.Errorf("checking owner %s: %w", ownerID, err)
	}

	if _, err := tx.ExecContext(ctx, d.db.Rebind(`
		INSERT INTO owner_vectors (owner_id, tag, vector, dimensions, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, tag) DO UPDATE SET
			vector = excluded.vector,
			dimensions = excluded.dimensions,
			updated_at = excluded.updated_at`),
		ownerID, string(tag), embeddings.Marshal(vec), len(vec), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("storing %s vector for %s: %w", tag, ownerID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (d *Driver) FetchVector(ctx context.Context, ownerID string, tag vector.Tag) (embeddings.Vector, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	var blob []byte
	err := d.db.QueryRowContext(ctx,
		d.db.Rebind(`SELECT vector FROM owner_vectors WHERE owner_id = ? AND tag = ?`),
		ownerID, string(tag),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: owner %s tag %s", vector.ErrNotFound, ownerID, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s vector for %s: %w", tag, ownerID, err)
	}
	return embeddings.Unmarshal(blob)
}

func (d *Driver) FetchCandidates(ctx context.Context, scope string, tag vector.Tag, limit int) ([]vector.Candidate, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	query := `
		SELECT o.owner_id, o.scope, o.text, o.summary, o.created_at, v.vector
		FROM vector_owners o
		LEFT JOIN owner_vectors v ON v.owner_id = o.owner_id AND v.tag = ?
		WHERE o.scope = ?
		ORDER BY o.created_at DESC, o.owner_id ASC`
	args := []any{string(tag), scope}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates for %s: %w", scope, err)
	}
	defer rows.Close()

	out := make([]vector.Candidate, 0)
	for rows.Next() {
		var (
			c         vector.Candidate
			createdAt int64
			blob      []byte
		)
		if err := rows.Scan(&c.ID, &c.Scope, &c.Text, &c.Summary, &createdAt, &blob); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()

		if blob != nil {
			v, err := embeddings.Unmarshal(blob)
			if err != nil {
				d.logger.Warn("skipping corrupt vector", "owner_id", c.ID, "tag", tag, "error", err)
			} else {
				c.Vector = v
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return out, nil
}

func (d *Driver) Close() error {
	return d.db.Close()
}
