// Package stmtcache caches prepared statements against a *sql.DB, keyed by
// their SQL text. It mirrors the way the manifest package issues the same
// handful of queries over and over, so the driver doesn't reparse and
// replan them on every call.
package stmtcache

import (
	"context"
	"database/sql"
	"sync"

	"github.com/agentuity/kvcache/logger"
)

// Cache maps SQL text to a prepared statement on a single *sql.DB. It holds
// no ownership of the database handle; the caller closes the handle and
// calls CloseAll beforehand.
type Cache struct {
	mu    sync.Mutex
	stmts map[string]*sql.Stmt
	log   logger.Logger
}

// New returns an empty statement cache. log may be nil, in which case
// prepare failures are not logged.
func New(log logger.Logger) *Cache {
	return &Cache{
		stmts: make(map[string]*sql.Stmt),
		log:   log,
	}
}

// Prepare returns a statement ready to be bound and executed for sql. On a
// cache hit the existing *sql.Stmt is returned (safe for reuse; binding new
// arguments on Exec/Query replaces the previous bind). On a miss it
// compiles the statement against db and stores it. Returns nil, err if
// compilation fails; the failure is logged when a logger is configured.
func (c *Cache) Prepare(ctx context.Context, db *sql.DB, query string) (*sql.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stmt, ok := c.stmts[query]; ok {
		return stmt, nil
	}

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		if c.log != nil {
			c.log.Error("stmtcache: prepare failed", "query", query, "error", err)
		}
		return nil, err
	}
	c.stmts[query] = stmt
	return stmt, nil
}

// CloseAll disposes every cached statement. Call exactly once, before
// closing the owning *sql.DB.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for query, stmt := range c.stmts {
		if err := stmt.Close(); err != nil && c.log != nil {
			c.log.Warn("stmtcache: close failed", "query", query, "error", err)
		}
	}
	c.stmts = make(map[string]*sql.Stmt)
}

// Len reports how many statements are currently cached. Mostly useful for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}
