// Package pgstore persists sessions in PostgreSQL using pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatuh/shield/clock"
	"github.com/aatuh/shield/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is used when Options.Table is empty.
const DefaultTable = "shield_sessions"

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options configures the store.
type Options struct {
	Table string
	Clock ports.Clock
}

// Store implements ports.SessionStore.
type Store struct {
	db    DB
	table string
	index string
	clock ports.Clock
}

var _ ports.SessionStore = (*Store)(nil)

// New wraps an existing pool or connection.
func New(db DB, opts Options) *Store {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystemClock()
	}
	return &Store{
		db:    db,
		table: pgx.Identifier{opts.Table}.Sanitize(),
		index: pgx.Identifier{opts.Table + "_expires_at_idx"}.Sanitize(),
		clock: opts.Clock,
	}
}

// Open connects a pool and verifies connectivity with a short timeout.
// The caller owns the returned pool.
func Open(ctx context.Context, dsn string, timeout time.Duration, opts Options) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(c); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return New(pool, opts), pool, nil
}

// EnsureSchema creates the session table and its expiry index when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         text PRIMARY KEY,
	data       bytea NOT NULL,
	expires_at timestamptz NOT NULL
)`, s.table))
	if err != nil {
		return fmt.Errorf("pgstore: create table: %w", err)
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (expires_at)`, s.index, s.table))
	if err != nil {
		return fmt.Errorf("pgstore: create index: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = $1 AND expires_at > $2`, s.table),
		id, s.clock.Now(),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: load: %w", err)
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`, s.table),
		id, data, s.clock.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("pgstore: save: %w", err)
	}
	return nil
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	if err != nil {
		return fmt.Errorf("pgstore: destroy: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.table), s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("pgstore: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}
