package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"EarningsTracker/internal/ports"
)

// DefaultTable is the KV table name used when none is configured.
const DefaultTable = "kv_store"

// Schema creates the table expected by PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS %s (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore implements KeyValueStore on a single Postgres table.
// Expired rows are ignored on read and replaced on write.
type PostgresStore struct {
	db    *sqlx.DB
	table string
	psql  sq.StatementBuilderType
	now   func() time.Time
}

var _ ports.KeyValueStore = (*PostgresStore)(nil)

// OpenPostgres connects with lib/pq and returns a ready store.
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPostgresStore(db, table), nil
}

// NewPostgresStore wires an existing sqlx handle.
func NewPostgresStore(db *sqlx.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{
		db:    db,
		table: table,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:   time.Now,
	}
}

// Migrate creates the table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf(Schema, p.table)); err != nil {
		return fmt.Errorf("migrate %s: %w", p.table, err)
	}
	return nil
}

// Get reads a live row.
func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := p.psql.
		Select("value").
		From(p.table).
		Where(sq.Eq{"key": key}).
		Where(p.liveCond()).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build get: %w", err)
	}

	var value []byte
	if err := p.db.GetContext(ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the row.
func (p *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query, args, err := p.psql.
		Insert(p.table).
		Columns("key", "value", "expires_at", "updated_at").
		Values(key, value, p.expiry(ttl), p.now().UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetNX inserts, or replaces only an expired row; one affected row means this call won.
func (p *PostgresStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	query, args, err := p.psql.
		Insert(p.table).
		Columns("key", "value", "expires_at", "updated_at").
		Values(key, value, p.expiry(ttl), p.now().UTC()).
		Suffix(fmt.Sprintf("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at WHERE %s.expires_at IS NOT NULL AND %s.expires_at <= EXCLUDED.updated_at", p.table, p.table)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build setnx: %w", err)
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setnx %s rows: %w", key, err)
	}
	return n == 1, nil
}

// Delete removes the rows.
func (p *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := p.psql.Delete(p.table).Where(sq.Eq{"key": keys}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Keys lists live keys with the prefix.
func (p *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	query, args, err := p.psql.
		Select("key").
		From(p.table).
		Where(sq.Like{"key": escapeLike(prefix) + "%"}).
		Where(p.liveCond()).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build keys: %w", err)
	}
	var keys []string
	if err := p.db.SelectContext(ctx, &keys, query, args...); err != nil {
		return nil, fmt.Errorf("keys %s: %w", prefix, err)
	}
	return keys, nil
}

// Purge deletes expired rows and reports how many were removed.
func (p *PostgresStore) Purge(ctx context.Context) (int64, error) {
	query, args, err := p.psql.
		Delete(p.table).
		Where(sq.And{sq.NotEq{"expires_at": nil}, sq.LtOrEq{"expires_at": p.now().UTC()}}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) liveCond() sq.Sqlizer {
	return sq.Or{sq.Eq{"expires_at": nil}, sq.Gt{"expires_at": p.now().UTC()}}
}

func (p *PostgresStore) expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := p.now().UTC().Add(ttl)
	return &t
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
