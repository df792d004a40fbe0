// Package cache is a sqlite-backed report cache keyed by prompt hash.
// Identical log windows analyzed with the same template and model reuse the
// previous report instead of paying for another generation.
//
// The cache is best-effort: read and write failures are logged and treated
// as misses so a broken cache file never blocks analysis.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crimson-sun/sawmill/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	key        TEXT PRIMARY KEY,
	report     TEXT NOT NULL,
	created_at INTEGER NOT NULL -- unix nanoseconds
);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

// Cache stores serialized reports in a sqlite database.
type Cache struct {
	db  *sql.DB
	ttl time.Duration // 0 = entries never expire
}

// Open opens (creating if needed) the cache database at path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	// modernc sqlite serializes writes; one connection avoids lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the cached report for key, or ok=false on miss, expiry, or
// any storage error.
func (c *Cache) Get(ctx context.Context, key string) (model.Report, bool) {
	var (
		data      string
		createdAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT report, created_at FROM reports WHERE key = ?`, key,
	).Scan(&data, &createdAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("cache read failed", "error", err)
		}
		return model.Report{}, false
	}

	if c.ttl > 0 && time.Since(time.Unix(0, createdAt)) > c.ttl {
		c.delete(ctx, key)
		return model.Report{}, false
	}

	var r model.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		slog.Warn("cache entry corrupt, discarding", "key", key, "error", err)
		c.delete(ctx, key)
		return model.Report{}, false
	}
	return r, true
}

// Put stores a report under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, r model.Report) {
	data, err := json.Marshal(r)
	if err != nil {
		slog.Warn("cache write failed", "error", err)
		return
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO reports (key, report, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET report = excluded.report, created_at = excluded.created_at`,
		key, string(data), time.Now().UnixNano())
	if err != nil {
		slog.Warn("cache write failed", "error", err)
	}
}

// Prune deletes expired entries. No-op when TTL is 0.
func (c *Cache) Prune(ctx context.Context) error {
	if c.ttl == 0 {
		return nil
	}
	cutoff := time.Now().Add(-c.ttl).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM reports WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("cache: prune: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("cache pruned", "removed", n)
	}
	return nil
}

// Len returns the number of stored reports.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) delete(ctx context.Context, key string) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM reports WHERE key = ?`, key); err != nil {
		slog.Warn("cache delete failed", "error", err)
	}
}
