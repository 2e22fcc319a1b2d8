package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
)

// timeLayout is the portable timestamp encoding used in both dialects.
const timeLayout = time.RFC3339Nano

// querier is the common surface of *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a database-backed TxStore. Collections are persisted as JSON rows
// in _collections and the ledger lives in _changesets. Supported drivers
// are sqlite (modernc) and postgres (lib/pq); the caller registers them
// with blank imports.
type DB struct {
	dbStore
	db *sql.DB
}

// dbStore implements Store over either a *sql.DB or a *sql.Tx.
type dbStore struct {
	q      querier
	driver string
}

// Open connects to the store at the given URL. postgres:// and
// postgresql:// URLs use the postgres driver; anything else is treated as
// a sqlite path or DSN. The schema tables are created if missing.
func Open(ctx context.Context, url string) (*DB, error) {
	driver, dsn := "sqlite", url
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, sherr.Wrap(sherr.ErrStoreIO, err, "failed to open store").
			With("driver", driver)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, sherr.Wrap(sherr.ErrStoreIO, err, "store is unreachable").
			With("driver", driver)
	}

	s := &DB{dbStore: dbStore{q: db, driver: driver}, db: db}
	if err := s.ensureTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *DB) Close() error {
	return s.db.Close()
}

// ensureTables bootstraps the collections and ledger tables.
func (s *DB) ensureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _collections (
			id      TEXT PRIMARY KEY,
			name    TEXT NOT NULL UNIQUE,
			data    TEXT NOT NULL,
			updated TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _changesets (
			version BIGINT PRIMARY KEY,
			name    TEXT NOT NULL,
			applied TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return sherr.Wrap(sherr.ErrStoreIO, err, "failed to create store tables")
		}
	}
	return nil
}

// rebind converts ?-style placeholders to the driver's expected style.
func (s *dbStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (s *dbStore) FindCollectionByID(ctx context.Context, id string) (*schema.Collection, error) {
	return s.findCollection(ctx, "id", id)
}

func (s *dbStore) FindCollectionByName(ctx context.Context, name string) (*schema.Collection, error) {
	return s.findCollection(ctx, "name", name)
}

func (s *dbStore) findCollection(ctx context.Context, column, value string) (*schema.Collection, error) {
	var data string
	query := s.rebind("SELECT data FROM _collections WHERE " + column + " = ?")
	err := s.q.QueryRowContext(ctx, query, value).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sherr.New(sherr.ErrNotFound, "collection not found").
			With(column, value)
	}
	if err != nil {
		return nil, sherr.Wrap(sherr.ErrStoreIO, err, "failed to load collection").
			With(column, value)
	}

	var c schema.Collection
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, sherr.Wrap(sherr.ErrStoreIO, err, "stored collection is corrupted").
			With(column, value)
	}
	return &c, nil
}

func (s *dbStore) SaveCollection(ctx context.Context, c *schema.Collection) error {
	old, err := s.FindCollectionByID(ctx, c.ID)
	if err != nil && !sherr.Is(err, sherr.ErrNotFound) {
		return err
	}
	byName, err := s.FindCollectionByName(ctx, c.Name)
	if err != nil && !sherr.Is(err, sherr.ErrNotFound) {
		return err
	}
	if err := validateSave(c, old, byName); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return sherr.Wrap(sherr.ErrStoreIO, err, "failed to encode collection").
			WithCollection(c.Name)
	}

	query := s.rebind(`INSERT INTO _collections (id, name, data, updated) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, data = excluded.data, updated = excluded.updated`)
	now := time.Now().UTC().Format(timeLayout)
	if _, err := s.q.ExecContext(ctx, query, c.ID, c.Name, string(data), now); err != nil {
		return sherr.Wrap(sherr.ErrStoreIO, err, "failed to save collection").
			WithCollection(c.Name)
	}
	return nil
}

func (s *dbStore) DeleteCollection(ctx context.Context, id string) error {
	all, err := s.Collections(ctx)
	if err != nil {
		return err
	}
	if err := checkDeleteRefs(id, all); err != nil {
		return err
	}
	query := s.rebind("DELETE FROM _collections WHERE id = ?")
	if _, err := s.q.ExecContext(ctx, query, id); err != nil {
		return sherr.Wrap(sherr.ErrStoreIO, err, "failed to delete collection").
			With("id", id)
	}
	return nil
}

func (s *dbStore) Collections(ctx context.Context) ([]*schema.Collection, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT data FROM _collections ORDER BY name")
	if err != nil {
		return nil, sherr.Wrap(sherr.ErrStoreIO, err, "failed to list collections")
	}
	defer rows.Close()

	var out []*schema.Collection
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, sherr.Wrap(sherr.ErrStoreIO, err, "failed to scan collection row")
		}
		var c schema.Collection
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, sherr.Wrap(sherr.ErrStoreIO, err, "stored collection is corrupted")
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *dbStore) AppliedVersions(ctx context.Context) ([]LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT version, name, applied FROM _changesets ORDER BY version")
	if err != nil {
		return nil, sherr.Wrap(sherr.ErrLedger, err, "failed to read ledger")
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var applied string
		if err := rows.Scan(&e.Version, &e.Name, &applied); err != nil {
			return nil, sherr.Wrap(sherr.ErrLedger, err, "failed to scan ledger row")
		}
		if t, err := time.Parse(timeLayout, applied); err == nil {
			e.AppliedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *dbStore) RecordApplied(ctx context.Context, entry LedgerEntry) error {
	var exists int
	query := s.rebind("SELECT COUNT(1) FROM _changesets WHERE version = ?")
	if err := s.q.QueryRowContext(ctx, query, entry.Version).Scan(&exists); err != nil {
		return sherr.Wrap(sherr.ErrLedger, err, "failed to check ledger").
			WithVersion(entry.Version)
	}
	if exists > 0 {
		return sherr.New(sherr.ErrConflict, "version already recorded in ledger").
			WithVersion(entry.Version)
	}

	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now().UTC()
	}
	query = s.rebind("INSERT INTO _changesets (version, name, applied) VALUES (?, ?, ?)")
	_, err := s.q.ExecContext(ctx, query, entry.Version, entry.Name, entry.AppliedAt.Format(timeLayout))
	if err != nil {
		return sherr.Wrap(sherr.ErrLedger, err, "failed to record applied changeset").
			WithVersion(entry.Version)
	}
	return nil
}

func (s *dbStore) RecordReverted(ctx context.Context, version int64) error {
	query := s.rebind("DELETE FROM _changesets WHERE version = ?")
	if _, err := s.q.ExecContext(ctx, query, version); err != nil {
		return sherr.Wrap(sherr.ErrLedger, err, "failed to record reverted changeset").
			WithVersion(version)
	}
	return nil
}

// RunInTransaction executes fn against a transaction-scoped store.
// The whole unit commits or rolls back together; the transaction also
// serves as the store-level exclusivity scope for one changeset.
func (s *DB) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sherr.Wrap(sherr.ErrStoreTx, err, "failed to begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(&dbStore{q: tx, driver: s.driver}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return sherr.Wrap(sherr.ErrStoreTx, err, "failed to commit transaction")
	}
	committed = true
	return nil
}
