package record

import (
	"context"
	"errors"
	"fmt"

	"storefront-cart/config"
	"storefront-cart/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const (
	createRecordsTable = `CREATE TABLE IF NOT EXISTS storefront_records (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	payload BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
)`
	selectRecord = `SELECT payload FROM storefront_records WHERE namespace = $1 AND key = $2`
	upsertRecord = `INSERT INTO storefront_records (namespace, key, payload)
VALUES ($1, $2, $3)
ON CONFLICT (namespace, key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`
	deleteRecord = `DELETE FROM storefront_records WHERE namespace = $1 AND key = $2`
)

// PostgresStore keeps visitor records in one table, scoped by namespace
// (typically the visitor id).
type PostgresStore struct {
	db        DBPool
	namespace string
}

func NewPostgresStore(db DBPool, namespace string) *PostgresStore {
	return &PostgresStore{db: db, namespace: namespace}
}

// NewPgxPool creates a new pgx connection pool
func NewPgxPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the records table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, createRecordsTable)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	if err := s.db.QueryRow(ctx, selectRecord, s.namespace, key).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx, upsertRecord, s.namespace, key, value)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, deleteRecord, s.namespace, key)
	return err
}
