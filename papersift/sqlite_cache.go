package papersift

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteCacheSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	cache_key   TEXT PRIMARY KEY,
	dimension   INTEGER NOT NULL,
	vector      BLOB NOT NULL,
	created_at  TEXT NOT NULL
);
`

// SQLiteCache keeps vectors in a single SQLite database file.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens or creates the cache database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteCacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Get returns the vector stored under key.
func (s *SQLiteCache) Get(key string) ([]float32, bool) {
	var blob []byte
	err := s.db.QueryRow(`SELECT vector FROM embeddings WHERE cache_key = ?`, key).Scan(&blob)
	if err != nil {
		return nil, false
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, false
	}
	return vec, true
}

// Put stores vec under key, replacing any earlier value.
func (s *SQLiteCache) Put(key string, vec []float32) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO embeddings (cache_key, dimension, vector, created_at) VALUES (?, ?, ?, ?)`,
		key, len(vec), encodeVector(vec), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// Len reports how many vectors are cached.
func (s *SQLiteCache) Len() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
