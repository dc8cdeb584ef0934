// Package cache persists compiled WebAssembly modules keyed by a hash of
// their source text and selected optimization plan, so an unchanged
// function need not be recompiled. Grounded on the teacher's
// internal/database/db_manager.go, which already opens connections via
// modernc.org/sqlite (the pure-Go, cgo-free driver); that manager's
// generic multi-backend connection pool is narrowed here to a single
// sqlite-backed table purpose-built for one artifact shape.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ModuleInfo describes one cached compiled module.
type ModuleInfo struct {
	Key          string
	FunctionName string
	WatText      string
	Binary       []byte
	SizeBytes    int
	CachedAt     time.Time
}

// Store is a sqlite-backed module cache. A single writer at a time per
// key is enforced by mu, mirroring the profile store's single-writer
// discipline.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or attaches to a sqlite database at path (":memory:" for
// an ephemeral cache) and ensures the modules table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open failed: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ping failed: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	const schema = `
CREATE TABLE IF NOT EXISTS modules (
	key TEXT PRIMARY KEY,
	function_name TEXT NOT NULL,
	wat_text TEXT NOT NULL,
	binary BLOB NOT NULL,
	size_bytes INTEGER NOT NULL,
	cached_at DATETIME NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: schema init failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Key hashes source and the selected optimization plan's string
// representation into the cache lookup key.
func Key(source, functionName string, planSignature string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(functionName))
	h.Write([]byte{0})
	h.Write([]byte(planSignature))
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores or replaces the compiled artifact under key.
func (s *Store) Put(key, functionName, watText string, binary []byte, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO modules(key, function_name, wat_text, binary, size_bytes, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   function_name=excluded.function_name,
		   wat_text=excluded.wat_text,
		   binary=excluded.binary,
		   size_bytes=excluded.size_bytes,
		   cached_at=excluded.cached_at`,
		key, functionName, watText, binary, len(binary), now,
	)
	return err
}

// Get retrieves a cached artifact by key; ok is false on a miss.
func (s *Store) Get(key string) (info ModuleInfo, ok bool, err error) {
	row := s.db.QueryRow(
		`SELECT key, function_name, wat_text, binary, size_bytes, cached_at FROM modules WHERE key = ?`, key)
	err = row.Scan(&info.Key, &info.FunctionName, &info.WatText, &info.Binary, &info.SizeBytes, &info.CachedAt)
	if err == sql.ErrNoRows {
		return ModuleInfo{}, false, nil
	}
	if err != nil {
		return ModuleInfo{}, false, err
	}
	return info, true, nil
}

// GetModuleInfo backs the WASM compiler worker's `getModuleInfo{moduleName}`
// command (spec.md §6): moduleName is treated as a function name, and the
// most recently cached entry for it is returned.
func (s *Store) GetModuleInfo(functionName string) (ModuleInfo, bool, error) {
	row := s.db.QueryRow(
		`SELECT key, function_name, wat_text, binary, size_bytes, cached_at
		 FROM modules WHERE function_name = ? ORDER BY cached_at DESC LIMIT 1`, functionName)
	var info ModuleInfo
	err := row.Scan(&info.Key, &info.FunctionName, &info.WatText, &info.Binary, &info.SizeBytes, &info.CachedAt)
	if err == sql.ErrNoRows {
		return ModuleInfo{}, false, nil
	}
	if err != nil {
		return ModuleInfo{}, false, err
	}
	return info, true, nil
}

// ClearCache backs the WASM compiler worker's `clearCache` command,
// removing every cached module.
func (s *Store) ClearCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM modules`)
	return err
}
