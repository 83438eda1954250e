// Package cache stores compiled programs in SQLite, keyed by a digest of
// their source, so unchanged scripts skip compilation.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/funvibe/alla/internal/vm"
)

// ErrMiss indicates no program is cached for the key
var ErrMiss = errors.New("cache miss")

// Cache is a SQLite-backed store of compiled programs
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  commonlog.Logger
}

// Open opens (creating if needed) the cache database at path
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		key TEXT PRIMARY KEY,
		build_id TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path, log: commonlog.GetLogger("alla.cache")}, nil
}

// Path is the database file backing the cache
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Key is the cache key of source. It changes whenever the bytecode format
// version changes, so stale rows are never decoded.
func Key(source string) string {
	h := sha256.New()
	h.Write([]byte{vm.BundleVersion})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the program cached under key, or ErrMiss
func (c *Cache) Get(key string) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := c.db.QueryRow("SELECT data FROM programs WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.log.Debugf("miss %s", short(key))
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}

	prog, err := vm.DecodeProgram(data)
	if err != nil {
		return nil, fmt.Errorf("cached program %s: %w", short(key), err)
	}
	c.log.Debugf("hit %s", short(key))
	return prog, nil
}

// Put stores prog under key, replacing any previous entry
func (c *Cache) Put(key string, prog *vm.Program) error {
	data, err := vm.EncodeProgram(prog)
	if err != nil {
		return fmt.Errorf("encoding program: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO programs (key, build_id, data, created_at) VALUES (?, ?, ?, ?)",
		key, uuid.New().String(), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving program: %w", err)
	}
	c.log.Debugf("stored %s (%d bytes)", short(key), len(data))
	return nil
}

// Len is the number of cached programs
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM programs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting programs: %w", err)
	}
	return n, nil
}

// Clear removes every cached program
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM programs"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
