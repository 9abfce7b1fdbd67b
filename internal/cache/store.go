package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// StoredEntry is a persisted cache entry as returned by Store.Load.
type StoredEntry struct {
	Value    *agent.Result
	StoredAt time.Time
}

// Store persists cache entries so warm results survive restarts. All
// implementations must be safe for concurrent use. Store failures are
// always non-fatal to the caller.
type Store interface {
	Load(ctx context.Context) (map[string]StoredEntry, error)
	Save(ctx context.Context, key string, value *agent.Result, storedAt time.Time) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// SQLiteStore persists cache entries in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key       TEXT PRIMARY KEY,
	value     BLOB NOT NULL,
	stored_at INTEGER NOT NULL
);
`

// NewSQLiteStore opens (creating if needed) the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads every persisted entry. Rows that fail to decode are skipped
// rather than failing the load.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]StoredEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, stored_at FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("querying cache entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]StoredEntry)
	for rows.Next() {
		var key string
		var blob []byte
		var storedAt int64
		if err := rows.Scan(&key, &blob, &storedAt); err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		var value agent.Result
		if err := json.Unmarshal(blob, &value); err != nil {
			continue
		}
		entries[key] = StoredEntry{
			Value:    &value,
			StoredAt: time.Unix(0, storedAt),
		}
	}
	return entries, rows.Err()
}

// Save upserts one entry.
func (s *SQLiteStore) Save(ctx context.Context, key string, value *agent.Result, storedAt time.Time) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, stored_at=excluded.stored_at`,
		key, blob, storedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Delete removes one entry. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
