// Package manifest implements the relational side of the disk engine: the
// single `manifest` table that authoritatively lists every stored entry,
// its placement (inline vs file), size, and access timestamps.
//
// Every operation here fails soft: it returns false/zero/empty plus an
// optional log line, never a panic. Bulk operations build their own
// placeholder SQL per call (the key count varies) and intentionally bypass
// the statement cache, which only helps for fixed, repeated query shapes.
package manifest

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/agentuity/kvcache/internal/stmtcache"
	"github.com/agentuity/kvcache/logger"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS manifest(
	key TEXT PRIMARY KEY,
	filename TEXT,
	size INTEGER,
	inline_data BLOB,
	modification_time INTEGER,
	last_access_time INTEGER,
	extended_data BLOB
);`

const indexDDL = `CREATE INDEX IF NOT EXISTS last_access_time_idx ON manifest(last_access_time);`

// Row is one manifest entry. InlineData is nil when the value lives in the
// blob store under Filename.
type Row struct {
	Key               string
	Filename          string
	Size              int
	InlineData        []byte
	ModificationTime  int64
	LastAccessTime    int64
	ExtendedData      []byte
}

// LRUCandidate is one entry returned by GetLRUInfo, the eviction frontier.
type LRUCandidate struct {
	Key      string
	Filename string
	Size     int
}

// maxOpenFailures and minReopenInterval bound the runtime reopen retry
// described in spec §4.2: an operation that finds the handle closed may
// reopen, but only if fewer than maxOpenFailures consecutive failures have
// happened AND at least minReopenInterval has passed since the last one.
const (
	maxOpenFailures   = 8
	minReopenInterval = 2 * time.Second
)

// Manifest wraps the embedded database. It is NOT safe for concurrent use
// (spec §5): callers serialize access, typically via the owning DiskEngine.
type Manifest struct {
	path  string
	log   logger.Logger
	db    *sql.DB
	stmts *stmtcache.Cache

	openFailures int
	lastFailure  time.Time
}

// Open opens (or creates) the sqlite database at path and wraps it. It does
// not create the schema; call Initialize for that.
func Open(path string, log logger.Logger) (*Manifest, error) {
	m := &Manifest{path: path, log: log}
	if err := m.open(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) open() error {
	db, err := sql.Open("sqlite", m.path)
	if err != nil {
		return err
	}
	// single-writer embedded store; avoid SQLITE_BUSY from the driver
	// opening more than one physical connection.
	db.SetMaxOpenConns(1)
	m.db = db
	m.stmts = stmtcache.New(m.log)
	return nil
}

// Initialize creates the manifest table and its last_access_time index,
// and enables WAL journaling with NORMAL synchronous mode. Idempotent.
func (m *Manifest) Initialize(ctx context.Context) bool {
	if _, err := m.db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		m.logErr("initialize: journal_mode", err)
		return false
	}
	if _, err := m.db.ExecContext(ctx, `PRAGMA synchronous=NORMAL;`); err != nil {
		m.logErr("initialize: synchronous", err)
		return false
	}
	if _, err := m.db.ExecContext(ctx, schema); err != nil {
		m.logErr("initialize: schema", err)
		return false
	}
	if _, err := m.db.ExecContext(ctx, indexDDL); err != nil {
		m.logErr("initialize: index", err)
		return false
	}
	return true
}

// Reopen closes the current handle (ignoring errors — the handle may
// already be broken) and opens a fresh one, subject to the bounded-retry
// gate in spec §4.2. Returns false without attempting when the gate is
// closed.
func (m *Manifest) Reopen() bool {
	if m.openFailures >= maxOpenFailures || time.Since(m.lastFailure) < minReopenInterval {
		return false
	}
	if m.db != nil {
		m.stmts.CloseAll()
		_ = m.db.Close()
	}
	if err := m.open(); err != nil {
		m.openFailures++
		m.lastFailure = time.Now()
		m.logErr("reopen", err)
		return false
	}
	m.openFailures = 0
	return true
}

// Close finalizes every cached statement, then closes the database handle,
// retrying the close in a loop while the driver reports the database is
// busy/locked (spec §5 shutdown semantics).
func (m *Manifest) Close() error {
	m.stmts.CloseAll()
	for {
		err := m.db.Close()
		if err == nil {
			return nil
		}
		msg := err.Error()
		if strings.Contains(msg, "busy") || strings.Contains(msg, "locked") {
			continue
		}
		return err
	}
}

// ensureOpen pings the database and, if the ping fails (handle closed or
// broken), attempts a reopen subject to the bounded-retry gate. Called from
// the hot entry points (Save, Get, GetValue) per spec §4.2's "any operation
// that finds the handle closed may reopen" — permissive, not exhaustive.
func (m *Manifest) ensureOpen(ctx context.Context) bool {
	if err := m.db.PingContext(ctx); err == nil {
		return true
	}
	return m.Reopen()
}

// Save inserts or replaces one row. When filename is non-empty, inline_data
// is written as NULL (the value lives in the blob store); otherwise value
// is written to inline_data. size is len(value) regardless of placement.
func (m *Manifest) Save(ctx context.Context, key, filename string, value, extended []byte) bool {
	if !m.ensureOpen(ctx) {
		return false
	}
	now := time.Now().Unix()
	const q = `INSERT INTO manifest (key, filename, size, inline_data, modification_time, last_access_time, extended_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			filename=excluded.filename,
			size=excluded.size,
			inline_data=excluded.inline_data,
			modification_time=excluded.modification_time,
			last_access_time=excluded.last_access_time,
			extended_data=excluded.extended_data`
	stmt, err := m.prepare(ctx, q)
	if err != nil {
		return false
	}
	var inline []byte
	var fn any
	if filename != "" {
		fn = filename
		inline = nil
	} else {
		fn = nil
		inline = value
	}
	if _, err := stmt.ExecContext(ctx, key, fn, len(value), inline, now, now, extended); err != nil {
		m.logErr("save", err)
		return false
	}
	return true
}

// UpdateAccessTime sets last_access_time to now for the given keys.
func (m *Manifest) UpdateAccessTime(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}
	q := `UPDATE manifest SET last_access_time = ? WHERE key IN (` + placeholders(len(keys)) + `)`
	args := make([]any, 0, len(keys)+1)
	args = append(args, time.Now().Unix())
	for _, k := range keys {
		args = append(args, k)
	}
	if _, err := m.db.ExecContext(ctx, q, args...); err != nil {
		m.logErr("update_access_time", err)
		return false
	}
	return true
}

// Delete removes rows for the given keys. Does not touch the blob store.
func (m *Manifest) Delete(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}
	q := `DELETE FROM manifest WHERE key IN (` + placeholders(len(keys)) + `)`
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := m.db.ExecContext(ctx, q, args...); err != nil {
		m.logErr("delete", err)
		return false
	}
	return true
}

// DeleteWhereSizeGreaterThan removes every row whose size exceeds n.
func (m *Manifest) DeleteWhereSizeGreaterThan(ctx context.Context, n int) bool {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM manifest WHERE size > ?`, n); err != nil {
		m.logErr("delete_where_size_gt", err)
		return false
	}
	return true
}

// DeleteWhereAccessLessThan removes every row last accessed before t.
func (m *Manifest) DeleteWhereAccessLessThan(ctx context.Context, t int64) bool {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM manifest WHERE last_access_time < ?`, t); err != nil {
		m.logErr("delete_where_access_lt", err)
		return false
	}
	return true
}

func scanRow(scan func(dest ...any) error, excludeInline bool) (*Row, error) {
	r := &Row{}
	var filename sql.NullString
	var inline []byte
	var extended []byte
	if excludeInline {
		if err := scan(&r.Key, &filename, &r.Size, &r.ModificationTime, &r.LastAccessTime, &extended); err != nil {
			return nil, err
		}
	} else {
		if err := scan(&r.Key, &filename, &r.Size, &inline, &r.ModificationTime, &r.LastAccessTime, &extended); err != nil {
			return nil, err
		}
		r.InlineData = inline
	}
	if filename.Valid {
		r.Filename = filename.String
	}
	r.ExtendedData = extended
	return r, nil
}

// Get returns the row for key, or (nil, false) if absent or on error.
// excludeInline skips fetching inline_data, useful for metadata-only
// lookups (GetLRUInfo-adjacent use, item-info probes).
func (m *Manifest) Get(ctx context.Context, key string, excludeInline bool) (*Row, bool) {
	if !m.ensureOpen(ctx) {
		return nil, false
	}
	var q string
	if excludeInline {
		q = `SELECT key, filename, size, modification_time, last_access_time, extended_data FROM manifest WHERE key = ?`
	} else {
		q = `SELECT key, filename, size, inline_data, modification_time, last_access_time, extended_data FROM manifest WHERE key = ?`
	}
	stmt, err := m.prepare(ctx, q)
	if err != nil {
		return nil, false
	}
	row := stmt.QueryRowContext(ctx, key)
	r, err := scanRow(row.Scan, excludeInline)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		m.logErr("get", err)
		return nil, false
	}
	return r, true
}

// GetMany returns rows for the given keys. Keys with no matching row are
// simply absent from the result; a query-level error returns nil (partial
// results are never returned, per spec §7).
func (m *Manifest) GetMany(ctx context.Context, keys []string, excludeInline bool) []*Row {
	if len(keys) == 0 {
		return nil
	}
	var q string
	if excludeInline {
		q = `SELECT key, filename, size, modification_time, last_access_time, extended_data FROM manifest WHERE key IN (` + placeholders(len(keys)) + `)`
	} else {
		q = `SELECT key, filename, size, inline_data, modification_time, last_access_time, extended_data FROM manifest WHERE key IN (` + placeholders(len(keys)) + `)`
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		m.logErr("get_many", err)
		return nil
	}
	defer rows.Close()
	var out []*Row
	for rows.Next() {
		r, err := scanRow(rows.Scan, excludeInline)
		if err != nil {
			m.logErr("get_many scan", err)
			return nil
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		m.logErr("get_many iterate", err)
		return nil
	}
	return out
}

// GetValue returns only the inline_data column for key.
func (m *Manifest) GetValue(ctx context.Context, key string) ([]byte, bool) {
	if !m.ensureOpen(ctx) {
		return nil, false
	}
	stmt, err := m.prepare(ctx, `SELECT inline_data FROM manifest WHERE key = ?`)
	if err != nil {
		return nil, false
	}
	var data []byte
	if err := stmt.QueryRowContext(ctx, key).Scan(&data); err != nil {
		if err != sql.ErrNoRows {
			m.logErr("get_value", err)
		}
		return nil, false
	}
	return data, true
}

// GetFilename returns the filename column for key, if non-empty.
func (m *Manifest) GetFilename(ctx context.Context, key string) (string, bool) {
	stmt, err := m.prepare(ctx, `SELECT filename FROM manifest WHERE key = ?`)
	if err != nil {
		return "", false
	}
	var filename sql.NullString
	if err := stmt.QueryRowContext(ctx, key).Scan(&filename); err != nil {
		if err != sql.ErrNoRows {
			m.logErr("get_filename", err)
		}
		return "", false
	}
	if !filename.Valid || filename.String == "" {
		return "", false
	}
	return filename.String, true
}

// GetFilenames returns the non-empty filename column for each of keys that
// has one, keyed by the original key.
func (m *Manifest) GetFilenames(ctx context.Context, keys []string) map[string]string {
	if len(keys) == 0 {
		return nil
	}
	q := `SELECT key, filename FROM manifest WHERE key IN (` + placeholders(len(keys)) + `)`
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		m.logErr("get_filenames", err)
		return nil
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var key string
		var filename sql.NullString
		if err := rows.Scan(&key, &filename); err != nil {
			m.logErr("get_filenames scan", err)
			return nil
		}
		if filename.Valid && filename.String != "" {
			out[key] = filename.String
		}
	}
	return out
}

// GetFilenamesWhereSizeGreaterThan returns every non-empty filename whose
// row's size exceeds n. Used to clean up the blob store before a size-based
// bulk delete.
func (m *Manifest) GetFilenamesWhereSizeGreaterThan(ctx context.Context, n int) []string {
	return m.filenamesWhere(ctx, `SELECT filename FROM manifest WHERE size > ? AND filename IS NOT NULL AND filename != ''`, n)
}

// GetFilenamesWhereAccessLessThan returns every non-empty filename last
// accessed before t.
func (m *Manifest) GetFilenamesWhereAccessLessThan(ctx context.Context, t int64) []string {
	return m.filenamesWhere(ctx, `SELECT filename FROM manifest WHERE last_access_time < ? AND filename IS NOT NULL AND filename != ''`, t)
}

func (m *Manifest) filenamesWhere(ctx context.Context, q string, arg any) []string {
	rows, err := m.db.QueryContext(ctx, q, arg)
	if err != nil {
		m.logErr("filenames_where", err)
		return nil
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			m.logErr("filenames_where scan", err)
			return nil
		}
		out = append(out, fn)
	}
	return out
}

// GetLRUInfo returns up to limit (key, filename, size) triples ordered by
// last_access_time ascending — the eviction frontier.
func (m *Manifest) GetLRUInfo(ctx context.Context, limit int) []LRUCandidate {
	stmt, err := m.prepare(ctx, `SELECT key, filename, size FROM manifest ORDER BY last_access_time ASC LIMIT ?`)
	if err != nil {
		return nil
	}
	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		m.logErr("get_lru_info", err)
		return nil
	}
	defer rows.Close()
	var out []LRUCandidate
	for rows.Next() {
		var c LRUCandidate
		var filename sql.NullString
		if err := rows.Scan(&c.Key, &filename, &c.Size); err != nil {
			m.logErr("get_lru_info scan", err)
			return nil
		}
		if filename.Valid {
			c.Filename = filename.String
		}
		out = append(out, c)
	}
	return out
}

// Count returns the total row count, or -1 on failure.
func (m *Manifest) Count(ctx context.Context) int {
	stmt, err := m.prepare(ctx, `SELECT COUNT(*) FROM manifest`)
	if err != nil {
		return -1
	}
	var n int
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		m.logErr("count", err)
		return -1
	}
	return n
}

// SizeSum returns the sum of the size column, or -1 on failure.
func (m *Manifest) SizeSum(ctx context.Context) int64 {
	stmt, err := m.prepare(ctx, `SELECT COALESCE(SUM(size), 0) FROM manifest`)
	if err != nil {
		return -1
	}
	var n int64
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		m.logErr("size_sum", err)
		return -1
	}
	return n
}

// ItemExists is a manifest-only existence probe: it does not update
// last_access_time and reads no column of the row, matching the original YYKVStorage
// itemExistsForKey: semantics this was supplemented from.
func (m *Manifest) ItemExists(ctx context.Context, key string) bool {
	stmt, err := m.prepare(ctx, `SELECT 1 FROM manifest WHERE key = ? LIMIT 1`)
	if err != nil {
		return false
	}
	var one int
	err = stmt.QueryRowContext(ctx, key).Scan(&one)
	return err == nil
}

// Checkpoint requests a WAL merge into the main database file.
func (m *Manifest) Checkpoint(ctx context.Context) bool {
	if _, err := m.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE);`); err != nil {
		m.logErr("checkpoint", err)
		return false
	}
	return true
}

func (m *Manifest) prepare(ctx context.Context, q string) (*sql.Stmt, error) {
	return m.stmts.Prepare(ctx, m.db, q)
}

func (m *Manifest) logErr(op string, err error) {
	if m.log != nil {
		m.log.Error("manifest: operation failed", "op", op, "error", err)
	}
}

func placeholders(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('?')
	}
	return b.String()
}
