package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/lectoria/identity/internal/dbx"
	"github.com/lectoria/identity/internal/server/kv/migrations"
)

// uniqueViolation is the PostgreSQL error code raised when two transactions
// insert the same key; the loser of such a race observes a conflict.
const uniqueViolation = "23505"

// PostgresStore persists entries in a single kv_entries table. Versions are
// drawn from a sequence so they are unique across all writes to the store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database and applies embedded migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.runMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return s, nil
}

// NewPostgresStoreFromDB wraps an existing connection without running
// migrations. Used in tests.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, s.db, ".")
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	query := `SELECT value, version FROM kv_entries WHERE key = $1`

	e := Entry{Key: key}
	err := s.db.QueryRowContext(ctx, query, key).Scan(&e.Value, &e.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, nil
		}
		return Entry{}, fmt.Errorf("error performing sql request: %w", err)
	}

	return e, nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	query := `SELECT key, value, version FROM kv_entries
	          WHERE key LIKE $1 ESCAPE '\' ORDER BY key`

	return func(yield func(Entry, error) bool) {
		rows, err := s.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
		if err != nil {
			yield(Entry{}, fmt.Errorf("error performing sql request: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}

func (s *PostgresStore) Atomic() *Atomic {
	return newAtomic(s)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) commit(ctx context.Context, a *Atomic) error {
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx dbx.DBTX) error {
		for _, c := range a.checks {
			// Locks the row for existing keys. Absent keys cannot be locked;
			// racing inserts are caught by the primary key below.
			var current int64
			err := tx.QueryRowContext(ctx,
				`SELECT version FROM kv_entries WHERE key = $1 FOR UPDATE`, c.key).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				current = NoVersion
			} else if err != nil {
				return fmt.Errorf("error performing sql request: %w", err)
			}
			if current != c.version {
				return ErrTxConflict
			}
		}

		for _, m := range a.mutations {
			if m.delete {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM kv_entries WHERE key = $1`, m.key); err != nil {
					return fmt.Errorf("error performing sql request: %w", err)
				}
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO kv_entries (key, value, version)
				 VALUES ($1, $2, nextval('kv_entries_version_seq'))
				 ON CONFLICT (key) DO UPDATE
				 SET value = EXCLUDED.value, version = nextval('kv_entries_version_seq')`,
				m.key, m.value)
			if err != nil {
				return fmt.Errorf("error performing sql request: %w", err)
			}
		}

		return nil
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrTxConflict
	}
	return err
}

// escapeLike escapes LIKE wildcards so a prefix is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
