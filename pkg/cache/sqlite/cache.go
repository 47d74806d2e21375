// Package sqlite provides a bounded, TTL'd response cache keyed by
// request fingerprint. SQLite serializes concurrent access, so reads and
// writes from parallel requests never observe partial entries.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codelens-ai/codelens/pkg/models"
)

// Cache is an exact-match response cache backed by SQLite.
type Cache struct {
	db       *sql.DB
	ttl      time.Duration
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64

	// now is replaceable in tests to pin expiry boundaries.
	now func() time.Time
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint TEXT PRIMARY KEY,
	response BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL,
	last_used DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_cache_last_used ON cache_entries(last_used);
`

// DefaultCapacity bounds the cache when no capacity is configured.
const DefaultCapacity = 500

// New creates a Cache with the given database path, default TTL, and
// maximum entry count.
func New(dbPath string, ttl time.Duration, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl, capacity: capacity, now: time.Now}, nil
}

// Get retrieves a cached response. Expired entries read as misses and are
// lazily purged. A hit refreshes the entry's LRU position.
func (c *Cache) Get(fingerprint string) ([]byte, bool) {
	var response []byte
	var createdAt time.Time
	var ttlSeconds int64

	err := c.db.QueryRow(
		`SELECT response, created_at, ttl_seconds FROM cache_entries WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&response, &createdAt, &ttlSeconds)

	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	// An entry is dead the instant its TTL elapses, so a lookup at
	// exactly created_at+ttl misses.
	ttl := time.Duration(ttlSeconds) * time.Second
	if c.now().Sub(createdAt) >= ttl {
		_, _ = c.db.Exec(`DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint)
		c.misses.Add(1)
		return nil, false
	}

	_, _ = c.db.Exec(`UPDATE cache_entries SET last_used = ? WHERE fingerprint = ?`,
		time.Now().UTC(), fingerprint)

	c.hits.Add(1)
	return response, true
}

// Put stores a response and evicts least-recently-used entries beyond
// capacity.
func (c *Cache) Put(fingerprint string, response []byte) error {
	now := time.Now().UTC()
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (fingerprint, response, created_at, ttl_seconds, last_used)
		 VALUES (?, ?, ?, ?, ?)`,
		fingerprint, response, now, int64(c.ttl.Seconds()), now,
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	_, err = c.db.Exec(
		`DELETE FROM cache_entries WHERE fingerprint NOT IN
		 (SELECT fingerprint FROM cache_entries ORDER BY last_used DESC, fingerprint LIMIT ?)`,
		c.capacity,
	)
	if err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM cache_entries WHERE (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`
	} else {
		query = `DELETE FROM cache_entries`
	}
	_, err := c.db.Exec(query)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
