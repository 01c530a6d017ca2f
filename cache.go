package quill

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
)

// Cache stores encoded query results. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Flush()
}

type ttlEntry struct {
	data    []byte
	expires time.Time
}

// TTLCache is an in-memory Cache with per-entry expiration. Expired
// entries are dropped lazily on access.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry
}

// NewTTLCache returns an empty TTLCache.
func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]ttlEntry)}
}

func (c *TTLCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

func (c *TTLCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = ttlEntry{data: value, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *TTLCache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]ttlEntry)
	c.mu.Unlock()
}

// Len returns the number of live entries, counting expired ones that
// have not been collected yet.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cachedResult is the encoded form of a materialized result set.
type cachedResult struct {
	Columns []string
	Rows    [][]any
}

// CacheDriver caches SELECT results of the wrapped driver. Any Exec
// flushes the cache, trading hit rate for correctness on writes.
type CacheDriver struct {
	dialect.Driver
	cache Cache
	ttl   time.Duration
}

// NewCacheDriver wraps drv with result caching.
func NewCacheDriver(drv dialect.Driver, cache Cache, ttl time.Duration) *CacheDriver {
	return &CacheDriver{Driver: drv, cache: cache, ttl: ttl}
}

// Exec flushes the cache before running the statement.
func (d *CacheDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.cache.Flush()
	return d.Driver.Exec(ctx, query, args, v)
}

// Query serves the result from cache when present, and otherwise runs
// the query, materializes the rows and stores them encoded.
func (d *CacheDriver) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*sql.Rows)
	if !ok {
		return d.Driver.Query(ctx, query, args, v)
	}
	key := cacheKey(query, args)
	if data, ok := d.cache.Get(key); ok {
		var res cachedResult
		if err := msgpack.Unmarshal(data, &res); err == nil {
			*vr = sql.Rows{ColumnScanner: &cachedRows{result: &res, pos: -1}}
			return nil
		}
		// Undecodable entry, fall through to the database.
	}
	var rows sql.Rows
	if err := d.Driver.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	res, err := materialize(&rows)
	if err != nil {
		return err
	}
	if data, err := msgpack.Marshal(res); err == nil {
		d.cache.Set(key, data, d.ttl)
	}
	*vr = sql.Rows{ColumnScanner: &cachedRows{result: res, pos: -1}}
	return nil
}

func cacheKey(query string, args any) string {
	return fmt.Sprintf("%s|%v", query, args)
}

// materialize drains rows into a cachedResult and closes them.
func materialize(rows *sql.Rows) (*cachedResult, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &cachedResult{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// cachedRows replays a materialized result set through the
// ColumnScanner interface.
type cachedRows struct {
	result *cachedResult
	pos    int
}

func (r *cachedRows) Close() error { return nil }

func (r *cachedRows) Columns() ([]string, error) { return r.result.Columns, nil }

func (r *cachedRows) Err() error { return nil }

func (r *cachedRows) Next() bool {
	r.pos++
	return r.pos < len(r.result.Rows)
}

func (r *cachedRows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.result.Rows) {
		return io.EOF
	}
	row := r.result.Rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("quill: expected %d destinations, got %d", len(row), len(dest))
	}
	for i, v := range row {
		if b, ok := v.([]byte); ok {
			if sp, ok := dest[i].(*string); ok {
				*sp = string(b)
				continue
			}
		}
		if err := setValue(dest[i], v); err != nil {
			return fmt.Errorf("quill: column %d: %w", i, err)
		}
	}
	return nil
}
