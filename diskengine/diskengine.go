// Package diskengine implements the hybrid disk-backed key-value store
// described in spec §4.4: small values live inline in the manifest table,
// large values live as separate files in a data directory, and the
// manifest is the single source of truth for membership, size, and access
// timestamps.
//
// A DiskEngine is NOT safe for concurrent use (spec §5). Callers that need
// sharded concurrency should create multiple engines on disjoint paths.
package diskengine

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/agentuity/kvcache/blobstore"
	"github.com/agentuity/kvcache/errs"
	"github.com/agentuity/kvcache/logger"
	"github.com/agentuity/kvcache/manifest"
)

// StorageType selects how DiskEngine.Save routes values between the
// manifest's inline_data column and the blob store.
type StorageType int

const (
	// File requires every Save to supply a filename; values always land
	// in the blob store.
	File StorageType = iota
	// SQLite stores a value inline when no filename is supplied and never
	// looks up or deletes a previously stored file on inline saves; a Save
	// that does supply a filename still writes to the blob store.
	SQLite
	// Mixed stores a value in the blob store when the caller supplies a
	// filename, inline otherwise.
	Mixed
)

// maxPathOverhead is subtracted from the platform's maximum path length
// when validating the configured root (spec §6: "Path length must not
// exceed the platform maximum minus 64 bytes").
const maxPathOverhead = 64

// platformMaxPath is conservative across Linux/macOS/Windows; it is not
// looked up from the OS because Go has no portable syscall for it.
const platformMaxPath = 4096

const (
	trimBatchSize      = 16
	removeAllBatchSize = 32
)

// Item is a full manifest row plus its value, as returned by GetItem.
type Item struct {
	Key              string
	Value            []byte
	Filename         string
	ModificationTime int64
	LastAccessTime   int64
	ExtendedData     []byte
}

// Engine orchestrates the manifest and blob store for every externally
// visible operation.
type Engine struct {
	root        string
	storageType StorageType
	log         logger.Logger

	m *manifest.Manifest
	b *blobstore.Store
}

// Option configures an Engine at construction time.
type Option func(*options)

type options struct {
	log logger.Logger
}

// WithLogger attaches a logger; operations log failures iff a non-nil
// logger is configured (spec §7's error_logs_enabled, folded into the
// logger's own nil-ness).
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates (or reopens) a disk engine rooted at path. It creates the
// data/trash directories, opens the database, initializes the schema, and
// drains any leftover trash from a previous run.
func New(path string, storageType StorageType, opts ...Option) (*Engine, error) {
	if len(path)+maxPathOverhead > platformMaxPath {
		return nil, errs.New(errs.KindInvalidArgument, "diskengine: path exceeds platform maximum")
	}
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindIOFailure, err, "diskengine: create root")
	}

	e := &Engine{root: path, storageType: storageType, log: cfg.log}

	if err := e.openAndInit(); err != nil {
		// One-shot reset-and-retry recovery (spec §4.2).
		if e.m != nil {
			_ = e.m.Close()
		}
		if e.b != nil {
			e.b.Close()
			e.b = nil
		}
		b, rerr := blobstore.Reset(context.Background(), path, cfg.log)
		if rerr != nil {
			return nil, errs.Wrap(errs.KindCorruptState, rerr, "diskengine: reset after init failure")
		}
		e.b = b
		if err := e.openAndInit(); err != nil {
			return nil, errs.Wrap(errs.KindCorruptState, err, "diskengine: init failed after reset")
		}
	}

	if err := e.b.EmptyTrashAsync(); err != nil && e.log != nil {
		e.log.Warn("diskengine: drain leftover trash failed", "error", err)
	}

	return e, nil
}

func (e *Engine) openAndInit() error {
	m, err := manifest.Open(dbPath(e.root), e.log)
	if err != nil {
		return err
	}
	e.m = m
	if e.b == nil {
		b, err := blobstore.Open(e.root, e.log)
		if err != nil {
			return err
		}
		e.b = b
	}
	if !e.m.Initialize(context.Background()) {
		return errs.New(errs.KindCorruptState, "diskengine: schema initialization failed")
	}
	return nil
}

func dbPath(root string) string {
	return filepath.Join(root, "manifest.sqlite")
}

// Close shuts down the database handle, retrying the close while the
// driver reports busy/locked, then stops the trash-drain worker.
func (e *Engine) Close() error {
	err := e.m.Close()
	e.b.Close()
	return err
}

// defaultFilename derives a stable filename for a key: a plain and a
// salted xxhash64 pass concatenated as hex, giving a 128-bit-equivalent
// fingerprint. Save does not call it; a Save without a filename is stored
// inline (SQLite, Mixed) or rejected (File).
func defaultFilename(key string) string {
	h1 := xxhash.Sum64String(key)
	h2 := xxhash.Sum64String("kvcache-salt-2\x00" + key)
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h1 >> (8 * uint(7-i)))
		buf[8+i] = byte(h2 >> (8 * uint(7-i)))
	}
	return hex.EncodeToString(buf[:])
}

// Save stores value under key. When filename is non-empty, it is written
// to the blob store first and the manifest row is inserted with that
// filename; on a manifest failure the just-written file is removed so no
// orphan is left behind. When filename is empty, routing follows
// storageType: File requires an explicit filename and rejects otherwise;
// SQLite and Mixed store inline, and Mixed additionally deletes any
// filename the key previously owned (the replacement is about to be
// inlined, so the old out-of-line file would otherwise orphan).
func (e *Engine) Save(ctx context.Context, key string, value []byte, filename string, extended []byte) bool {
	if key == "" || len(value) == 0 {
		e.logErr("save", errs.New(errs.KindInvalidArgument, "key and value must be non-empty"))
		return false
	}

	if filename == "" && e.storageType == File {
		e.logErr("save", errs.New(errs.KindInvalidArgument, "file storage requires a filename"))
		return false
	}

	if filename != "" {
		if err := e.b.Write(filename, value); err != nil {
			e.logErr("save: write blob", err)
			return false
		}
		if !e.m.Save(ctx, key, filename, value, extended) {
			_ = e.b.Delete(filename)
			return false
		}
		return true
	}

	if e.storageType != SQLite {
		if old, ok := e.m.GetFilename(ctx, key); ok {
			_ = e.b.Delete(old)
		}
	}
	return e.m.Save(ctx, key, "", value, extended)
}

// Remove deletes key's manifest row and, if it referenced an out-of-line
// file, that file too. Reports whether the key was present.
func (e *Engine) Remove(ctx context.Context, key string) bool {
	if !e.m.ItemExists(ctx, key) {
		return false
	}
	filename, ok := e.m.GetFilename(ctx, key)
	if !e.m.Delete(ctx, key) {
		return false
	}
	if ok && filename != "" {
		_ = e.b.Delete(filename)
	}
	return true
}

// GetValue returns the value stored under key, updating last_access_time
// on success. A file referenced by the manifest that has gone missing
// self-heals: the manifest row is deleted and the call reports a miss.
func (e *Engine) GetValue(ctx context.Context, key string) ([]byte, bool) {
	row, ok := e.m.Get(ctx, key, false)
	if !ok {
		return nil, false
	}
	value, ok := e.resolveValue(ctx, key, row)
	if !ok {
		return nil, false
	}
	e.m.UpdateAccessTime(ctx, key)
	return value, true
}

// GetItem returns the full item (value plus metadata) for key, with the
// same self-healing and access-time-refresh semantics as GetValue.
func (e *Engine) GetItem(ctx context.Context, key string) (*Item, bool) {
	row, ok := e.m.Get(ctx, key, false)
	if !ok {
		return nil, false
	}
	value, ok := e.resolveValue(ctx, key, row)
	if !ok {
		return nil, false
	}
	e.m.UpdateAccessTime(ctx, key)
	return &Item{
		Key:              key,
		Value:            value,
		Filename:         row.Filename,
		ModificationTime: row.ModificationTime,
		LastAccessTime:   time.Now().Unix(),
		ExtendedData:     row.ExtendedData,
	}, true
}

// GetItemInfo returns metadata for key without reading the value payload
// (inline or file) — an inspection-only read that does not refresh
// last_access_time, since nothing was actually "used".
func (e *Engine) GetItemInfo(ctx context.Context, key string) (*Item, bool) {
	row, ok := e.m.Get(ctx, key, true)
	if !ok {
		return nil, false
	}
	return &Item{
		Key:              key,
		Filename:         row.Filename,
		ModificationTime: row.ModificationTime,
		LastAccessTime:   row.LastAccessTime,
		ExtendedData:     row.ExtendedData,
	}, true
}

// ItemExists reports whether key has a manifest row, without touching
// last_access_time or reading any payload.
func (e *Engine) ItemExists(ctx context.Context, key string) bool {
	return e.m.ItemExists(ctx, key)
}

func (e *Engine) resolveValue(ctx context.Context, key string, row *manifest.Row) ([]byte, bool) {
	if row.Filename == "" {
		return row.InlineData, true
	}
	data, err := e.b.Read(row.Filename)
	if err != nil {
		if e.log != nil {
			e.log.Warn("diskengine: referenced file missing, self-healing", "key", key, "filename", row.Filename)
		}
		e.m.Delete(ctx, key)
		return nil, false
	}
	return data, true
}

// Count returns the total number of stored items, or -1 on failure.
func (e *Engine) Count(ctx context.Context) int {
	return e.m.Count(ctx)
}

// SizeSum returns the total size in bytes of all stored items, or -1 on failure.
func (e *Engine) SizeSum(ctx context.Context) int64 {
	return e.m.SizeSum(ctx)
}

// TrimToSize evicts least-recently-used items until the total stored size
// is at most maxSize.
func (e *Engine) TrimToSize(ctx context.Context, maxSize int64) bool {
	total := e.m.SizeSum(ctx)
	if total < 0 {
		return false
	}
	for total > maxSize {
		batch := e.m.GetLRUInfo(ctx, trimBatchSize)
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			if total <= maxSize {
				break
			}
			e.evictOne(ctx, c)
			total -= int64(c.Size)
		}
	}
	e.m.Checkpoint(ctx)
	return true
}

// TrimToCount evicts least-recently-used items until the total item count
// is at most maxCount.
func (e *Engine) TrimToCount(ctx context.Context, maxCount int) bool {
	total := e.m.Count(ctx)
	if total < 0 {
		return false
	}
	for total > maxCount {
		batch := e.m.GetLRUInfo(ctx, trimBatchSize)
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			if total <= maxCount {
				break
			}
			e.evictOne(ctx, c)
			total--
		}
	}
	e.m.Checkpoint(ctx)
	return true
}

// TrimOlderThan evicts every item last accessed before t.
func (e *Engine) TrimOlderThan(ctx context.Context, t int64) bool {
	filenames := e.m.GetFilenamesWhereAccessLessThan(ctx, t)
	for _, fn := range filenames {
		_ = e.b.Delete(fn)
	}
	if !e.m.DeleteWhereAccessLessThan(ctx, t) {
		return false
	}
	e.m.Checkpoint(ctx)
	return true
}

// TrimLargerThan evicts every item whose size exceeds n bytes.
func (e *Engine) TrimLargerThan(ctx context.Context, n int) bool {
	filenames := e.m.GetFilenamesWhereSizeGreaterThan(ctx, n)
	for _, fn := range filenames {
		_ = e.b.Delete(fn)
	}
	if !e.m.DeleteWhereSizeGreaterThan(ctx, n) {
		return false
	}
	e.m.Checkpoint(ctx)
	return true
}

func (e *Engine) evictOne(ctx context.Context, c manifest.LRUCandidate) {
	if c.Filename != "" {
		_ = e.b.Delete(c.Filename)
	}
	e.m.Delete(ctx, c.Key)
}

// RemoveAll discards every stored item. It is the fast path: it closes the
// database, resets it (moving the data directory to trash and dropping the
// sqlite files), reopens, and reinitializes — near-instantaneous
// regardless of how many items were stored, in exchange for not reporting
// progress.
func (e *Engine) RemoveAll(ctx context.Context) bool {
	if err := e.m.Close(); err != nil {
		e.logErr("remove_all: close", err)
	}
	e.b.Close()
	b, err := blobstore.Reset(ctx, e.root, e.log)
	if err != nil {
		e.logErr("remove_all: reset", err)
		return false
	}
	e.b = b
	e.m = nil
	if err := e.openAndInit(); err != nil {
		e.logErr("remove_all: reopen", err)
		return false
	}
	return true
}

// RemoveAllWithProgress is the slower variant: it iterates LRU batches of
// removeAllBatchSize. Within a batch, blob-store file deletions (safe to
// parallelize; they don't touch the manifest) run concurrently via
// errgroup, then the batch's manifest rows are deleted serially, and
// progress is called with the running removed/total counts.
func (e *Engine) RemoveAllWithProgress(ctx context.Context, progress func(removed, total int)) bool {
	total := e.m.Count(ctx)
	if total < 0 {
		return false
	}
	removed := 0
	for {
		batch := e.m.GetLRUInfo(ctx, removeAllBatchSize)
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, c := range batch {
			if c.Filename == "" {
				continue
			}
			filename := c.Filename
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return e.b.Delete(filename)
			})
		}
		if err := g.Wait(); err != nil {
			e.logErr("remove_all_with_progress: blob delete", err)
		}

		for _, c := range batch {
			e.m.Delete(ctx, c.Key)
			removed++
		}
		if progress != nil {
			progress(removed, total)
		}
		// Yield between batches so callers driving this from a UI thread
		// get a chance to process the progress callback.
		runtime.Gosched()
	}
	e.m.Checkpoint(ctx)
	return true
}

func (e *Engine) logErr(op string, err error) {
	if e.log != nil {
		e.log.Error("diskengine: operation failed", "op", op, "error", err)
	}
}

// DefaultFilename exposes the filename-derivation default (spec §9) so
// callers who want file routing without picking their own name can ask
// for it up front, e.g. `e.Save(ctx, key, value, diskengine.DefaultFilename(key), nil)`.
func DefaultFilename(key string) string {
	return defaultFilename(key)
}
