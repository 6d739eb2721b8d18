// Package store persists bottles and sync metadata in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bottles (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		body BLOB NOT NULL,
		updated_at TEXT NOT NULL -- RFC3339
	)`,
	`CREATE TABLE IF NOT EXISTS sync_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

const (
	keyPendingCount  = "pending_count"
	keyLastSyncedSHA = "last_synced_sha"
	keyLastSyncedAt  = "last_synced_at"
)

var ErrBottleNotFound = errors.New("bottle not found")

// dbBottle is a row of the bottles table. The body is the canonical file content.
type dbBottle struct {
	ID        string `db:"id"`
	Path      string `db:"path"`
	Body      []byte `db:"body"`
	UpdatedAt string `db:"updated_at"`
}

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the store at path. Use db.MemoryPath for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := db.NewSqliteDB(db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(ctx, conn, schema...); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize store schema: %w", err)
	}
	return &Store{db: conn, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func rowFor(b *cellar.Bottle, now time.Time) (*dbBottle, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("bottle %s: %w", b.ID, err)
	}
	body, err := cellar.Serialize(b)
	if err != nil {
		return nil, err
	}
	return &dbBottle{
		ID:        b.ID,
		Path:      cellar.PathFor(b),
		Body:      body,
		UpdatedAt: now.UTC().Format(time.RFC3339),
	}, nil
}

const upsertBottle = `INSERT OR REPLACE INTO bottles (id, path, body, updated_at)
	VALUES (:id, :path, :body, :updated_at)`

// AllBottles returns the local snapshot ordered by path.
func (s *Store) AllBottles(ctx context.Context) ([]*cellar.Bottle, error) {
	var rows []dbBottle
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, path, body, updated_at FROM bottles ORDER BY path"); err != nil {
		return nil, fmt.Errorf("query bottles: %w", err)
	}

	bottles := make([]*cellar.Bottle, 0, len(rows))
	for _, row := range rows {
		b, err := cellar.Deserialize(row.Body)
		if err != nil {
			return nil, fmt.Errorf("decode bottle %s: %w", row.ID, err)
		}
		bottles = append(bottles, b)
	}
	return bottles, nil
}

func (s *Store) GetBottle(ctx context.Context, id string) (*cellar.Bottle, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, "SELECT body FROM bottles WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBottleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query bottle %s: %w", id, err)
	}
	return cellar.Deserialize(body)
}

// PutBottle inserts or replaces one bottle.
func (s *Store) PutBottle(ctx context.Context, b *cellar.Bottle) error {
	if err := b.ValidateQuantities(); err != nil {
		return fmt.Errorf("bottle %s: %w", b.ID, err)
	}
	row, err := rowFor(b, s.now())
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertBottle, row); err != nil {
		return fmt.Errorf("save bottle %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) DeleteBottle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bottles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bottle %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrBottleNotFound, id)
	}
	return nil
}

// ReplaceAll swaps the whole snapshot in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, bottles []*cellar.Bottle) error {
	now := s.now()
	rows := make([]*dbBottle, 0, len(bottles))
	for _, b := range bottles {
		row, err := rowFor(b, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM bottles"); err != nil {
		return fmt.Errorf("clear bottles: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, upsertBottle, row); err != nil {
			return fmt.Errorf("insert bottle %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	slog.Debug("store replaced", "bottles", len(rows))
	return nil
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM sync_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// IncrementPending bumps the pending mutation counter and returns the new value.
func (s *Store) IncrementPending(ctx context.Context) (int, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sync_meta (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1`, keyPendingCount)
	if err != nil {
		return 0, fmt.Errorf("increment pending count: %w", err)
	}
	return s.PendingCount(ctx)
}

func (s *Store) PendingCount(ctx context.Context) (int, error) {
	value, err := s.getMeta(ctx, keyPendingCount)
	if err != nil || value == "" {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse pending count %q: %w", value, err)
	}
	return n, nil
}

func (s *Store) ResetPending(ctx context.Context) error {
	return s.setMeta(ctx, keyPendingCount, "0")
}

// VersionMarker is the remote head of the last successful sync, empty if never synced.
func (s *Store) VersionMarker(ctx context.Context) (string, error) {
	return s.getMeta(ctx, keyLastSyncedSHA)
}

// SetVersionMarker records sha and stamps the sync time.
func (s *Store) SetVersionMarker(ctx context.Context, sha string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := "INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)"
	if _, err := tx.ExecContext(ctx, stmt, keyLastSyncedSHA, sha); err != nil {
		return fmt.Errorf("write %s: %w", keyLastSyncedSHA, err)
	}
	if _, err := tx.ExecContext(ctx, stmt, keyLastSyncedAt, s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write %s: %w", keyLastSyncedAt, err)
	}
	return tx.Commit()
}

func (s *Store) ClearVersionMarker(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sync_meta WHERE key IN (?, ?)", keyLastSyncedSHA, keyLastSyncedAt)
	if err != nil {
		return fmt.Errorf("clear version marker: %w", err)
	}
	return nil
}

// LastSyncedAt returns the time of the last successful sync, or the zero time.
func (s *Store) LastSyncedAt(ctx context.Context) (time.Time, error) {
	value, err := s.getMeta(ctx, keyLastSyncedAt)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}
