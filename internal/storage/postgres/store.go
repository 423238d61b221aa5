package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"airdropScope/internal/model"
	"airdropScope/internal/storage"
)

// Store keeps known keys and failed units in Postgres. Keys are scoped by
// namespace so several key sets can share a database.
type Store struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewStore(ctx context.Context, dsn, namespace string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if namespace == "" {
		namespace = "default"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool, namespace: namespace}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS known_keys (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, key)
	)`,
	`CREATE TABLE IF NOT EXISTS failed_units (
		id BIGSERIAL PRIMARY KEY,
		namespace TEXT NOT NULL,
		batch_index INTEGER NOT NULL,
		error_kind TEXT NOT NULL,
		entry JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// Load returns every key in the namespace, oldest first.
func (s *Store) Load(ctx context.Context) (*storage.KeySet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM known_keys WHERE namespace=$1 ORDER BY added_at, key`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	set, err := storage.NewLoadedKeySet(keys)
	if err != nil {
		return nil, &storage.CorruptStateError{Path: "postgres:known_keys/" + s.namespace, Err: err}
	}
	return set, nil
}

// Flush inserts keys added since the last flush in one transaction.
func (s *Store) Flush(ctx context.Context, set *storage.KeySet) error {
	added := set.Added()
	if len(added) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, key := range added {
		batch.Queue(`
			INSERT INTO known_keys (namespace, key, added_at)
			VALUES ($1, $2, now())
			ON CONFLICT (namespace, key) DO NOTHING
		`, s.namespace, key)
	}

	br := tx.SendBatch(ctx, batch)
	for range added {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert key: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return tx.Commit(ctx)
}

// Append records a failed unit.
func (s *Store) Append(ctx context.Context, entry model.FailureEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal failure entry: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO failed_units (namespace, batch_index, error_kind, entry, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, s.namespace, entry.BatchIndex, entry.ErrorKind, payload)
	if err != nil {
		return fmt.Errorf("insert failed unit: %w", err)
	}
	return nil
}

func (s *Store) Location() string {
	return "postgres:failed_units/" + s.namespace
}

// Failures returns the namespace's ledger in append order.
func (s *Store) Failures(ctx context.Context) ([]model.FailureEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entry FROM failed_units WHERE namespace=$1 ORDER BY id`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("query failed units: %w", err)
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan failed units: %w", err)
	}

	entries := make([]model.FailureEntry, 0, len(payloads))
	for _, payload := range payloads {
		var entry model.FailureEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("decode failed unit: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

var (
	_ storage.KeyStore      = (*Store)(nil)
	_ storage.FailureLedger = (*Store)(nil)
)
