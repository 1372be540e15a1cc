// Package memengine implements the thread-safe in-memory LRU cache
// described in spec §4.6 and §5: count/cost/age limits, periodic
// background trimming, and policy-controlled release of evicted values.
//
// Grounded on the teacher package's in-memory cache
// (cache/inmemory.go — map + mutex + ticker-driven background cleanup),
// extended with the intrusive LRU list from memengine/internal/lrulist and
// the functional-options configuration style from cache/cache.go.
package memengine

import (
	"sync"
	"time"

	"github.com/agentuity/kvcache/memengine/internal/lrulist"
)

// NoLimit disables a count/cost/age limit. It is the zero value's
// companion: callers don't need to import "math" to mean "unbounded".
const NoLimit = 0

// ReleasePolicy takes ownership of an evicted value and disposes of it
// without blocking the caller that triggered the eviction. Some embedded
// objects have destruction affinity to a specific thread (spec §4.6); this
// interface is how that's expressed without the engine itself knowing
// about threads.
type ReleasePolicy interface {
	Release(value any)
}

// InlineRelease drops the value on the caller's goroutine. Equivalent to
// release_async=false in spec terms.
func InlineRelease() ReleasePolicy { return inlineRelease{} }

type inlineRelease struct{}

func (inlineRelease) Release(any) {}

// asyncRelease hands evicted values to a single dedicated worker goroutine,
// so callers never block on whatever a value's finalizer/Close does.
type asyncRelease struct {
	ch chan any
}

// AsyncRelease is the default release policy (spec's release_async=true):
// a dedicated background goroutine drops evicted values so eviction never
// blocks the caller that triggered it.
func AsyncRelease() ReleasePolicy {
	r := &asyncRelease{ch: make(chan any, 256)}
	go func() {
		for range r.ch {
			// Draining is the point: just let the value become
			// unreachable so the GC can reclaim it.
		}
	}()
	return r
}

func (r *asyncRelease) Release(v any) {
	select {
	case r.ch <- v:
	default:
		// Queue full: drop inline rather than block the caller. A
		// saturated release queue means the consumer (GC) is already
		// keeping up; losing the hand-off costs nothing but a few
		// cycles on this goroutine instead of the worker's.
	}
}

// MainThreadRelease posts the release to dispatch, e.g. a UI-thread poster
// supplied by host glue (spec's release_on_main_thread=true). On a
// headless service with no such thread, pass a dispatcher that just calls
// its argument inline.
func MainThreadRelease(dispatch func(func())) ReleasePolicy {
	return mainThreadRelease{dispatch: dispatch}
}

type mainThreadRelease struct {
	dispatch func(func())
}

func (m mainThreadRelease) Release(v any) {
	m.dispatch(func() { _ = v })
}

type config struct {
	countLimit                 uint64
	costLimit                  uint64
	ageLimit                   time.Duration
	autoTrimInterval           time.Duration
	removeAllOnMemoryWarning   bool
	removeAllOnEnterBackground bool
	release                    ReleasePolicy
	onEvict                    func(key string, value any)
}

func defaultConfig() config {
	return config{
		countLimit:                 NoLimit,
		costLimit:                  NoLimit,
		ageLimit:                   NoLimit,
		autoTrimInterval:           5 * time.Second,
		removeAllOnMemoryWarning:   true,
		removeAllOnEnterBackground: true,
		release:                    AsyncRelease(),
	}
}

// Option configures an Engine at construction time.
type Option func(*config)

// WithCountLimit caps the number of live entries. NoLimit (the default)
// disables the cap.
func WithCountLimit(n uint64) Option { return func(c *config) { c.countLimit = n } }

// WithCostLimit caps the sum of entry costs. NoLimit (the default)
// disables the cap.
func WithCostLimit(n uint64) Option { return func(c *config) { c.costLimit = n } }

// WithAgeLimit evicts entries older than d on the next trim pass. NoLimit
// (the default, d<=0) disables the cap.
func WithAgeLimit(d time.Duration) Option { return func(c *config) { c.ageLimit = d } }

// WithAutoTrimInterval sets how often the background trim loop runs.
// Defaults to 5 seconds, matching spec's auto_trim_interval.
func WithAutoTrimInterval(d time.Duration) Option {
	return func(c *config) { c.autoTrimInterval = d }
}

// WithReleasePolicy overrides how evicted values are disposed of. Defaults
// to AsyncRelease().
func WithReleasePolicy(p ReleasePolicy) Option { return func(c *config) { c.release = p } }

// WithRemoveAllOnMemoryWarning controls whether OnMemoryPressure clears the
// cache. Defaults to true.
func WithRemoveAllOnMemoryWarning(b bool) Option {
	return func(c *config) { c.removeAllOnMemoryWarning = b }
}

// WithRemoveAllOnEnterBackground controls whether OnEnterBackground clears
// the cache. Defaults to true.
func WithRemoveAllOnEnterBackground(b bool) Option {
	return func(c *config) { c.removeAllOnEnterBackground = b }
}

// WithEvictCallback registers a hook invoked (outside the lock) for every
// node evicted by a trim pass or Remove, after the release policy has
// taken the value. Useful for host integrations that want to observe
// evictions without a polling loop.
func WithEvictCallback(fn func(key string, value any)) Option {
	return func(c *config) { c.onEvict = fn }
}

// Engine is a thread-safe LRU cache. All public operations acquire a
// single mutex guarding the list and aggregates; the mutex is not held
// across value release, which happens after the structural mutation, per
// spec §5.
type Engine struct {
	mu   sync.Mutex
	list *lrulist.List
	cfg  config

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a memory engine and starts its background trim loop.
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{
		list:   lrulist.New(),
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go e.trimLoop()
	return e
}

// Contains reports whether key is present, without affecting its LRU
// position.
func (e *Engine) Contains(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.list.Lookup(key)
	return ok
}

// Get retrieves key's value, refreshing its timestamp and moving it to the
// head on a hit.
func (e *Engine) Get(key string) (any, bool) {
	e.mu.Lock()
	n, ok := e.list.Lookup(key)
	if !ok {
		e.mu.Unlock()
		return nil, false
	}
	n.Time = time.Now().UnixNano()
	e.list.MoveToHead(n)
	v := n.Value
	e.mu.Unlock()
	return v, true
}

// Set stores value under key with the given cost, creating the entry if
// absent or updating it (value, cost delta, timestamp) and moving it to
// head if present. If the new aggregate exceeds a configured limit, a trim
// from the tail runs asynchronously, so Set itself never blocks on
// eviction release.
func (e *Engine) Set(key string, value any, cost uint64) {
	e.mu.Lock()
	if n, ok := e.list.Lookup(key); ok {
		n.Value = value
		e.list.UpdateCost(n, cost)
		n.Time = time.Now().UnixNano()
		e.list.MoveToHead(n)
	} else {
		e.list.InsertAtHead(key, value, cost, time.Now().UnixNano())
	}
	overCount := e.cfg.countLimit != NoLimit && uint64(e.list.TotalCount()) > e.cfg.countLimit
	overCost := e.cfg.costLimit != NoLimit && e.list.TotalCost() > e.cfg.costLimit
	e.mu.Unlock()

	if overCount || overCost {
		go e.trimLimits()
	}
}

// Remove evicts key, if present, releasing its value per the configured
// policy.
func (e *Engine) Remove(key string) {
	e.mu.Lock()
	n, ok := e.list.Lookup(key)
	if !ok {
		e.mu.Unlock()
		return
	}
	e.list.Remove(n)
	e.mu.Unlock()
	e.release(n)
}

// RemoveAll clears every entry, releasing each value per the configured
// policy.
func (e *Engine) RemoveAll() {
	e.mu.Lock()
	nodes := e.list.Snapshot()
	e.list.RemoveAll()
	e.mu.Unlock()
	for _, n := range nodes {
		e.release(n)
	}
}

// TotalCount returns the current number of live entries.
func (e *Engine) TotalCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list.TotalCount()
}

// TotalCost returns the current sum of entry costs.
func (e *Engine) TotalCost() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list.TotalCost()
}

// TrimToCount evicts from the tail until at most n entries remain.
func (e *Engine) TrimToCount(n uint64) {
	e.trimWhile(func() bool { return uint64(e.list.TotalCount()) > n })
}

// TrimToCost evicts from the tail until the total cost is at most c.
func (e *Engine) TrimToCost(c uint64) {
	e.trimWhile(func() bool { return e.list.TotalCost() > c })
}

// TrimToAge evicts every entry whose age (relative to now) exceeds d, in
// LRU order starting from the tail (older entries cluster there anyway
// under normal access patterns).
func (e *Engine) TrimToAge(d time.Duration) {
	if d <= 0 {
		return
	}
	cutoff := time.Now().Add(-d).UnixNano()
	e.trimWhile(func() bool {
		n := e.list.Tail()
		return n != nil && n.Time < cutoff
	})
}

func (e *Engine) trimLimits() {
	if e.cfg.countLimit != NoLimit {
		e.TrimToCount(e.cfg.countLimit)
	}
	if e.cfg.costLimit != NoLimit {
		e.TrimToCost(e.cfg.costLimit)
	}
}

func (e *Engine) trimWhile(over func() bool) {
	for {
		e.mu.Lock()
		if !over() {
			e.mu.Unlock()
			return
		}
		n := e.list.RemoveTail()
		e.mu.Unlock()
		if n == nil {
			return
		}
		e.release(n)
	}
}

func (e *Engine) release(n *lrulist.Node) {
	e.cfg.release.Release(n.Value)
	if e.cfg.onEvict != nil {
		e.cfg.onEvict(n.Key, n.Value)
	}
}

// trimLoop runs every auto_trim_interval, applying TrimToCount, TrimToCost,
// then TrimToAge in that order, on a dedicated goroutine — never blocking
// Get/Set callers. Grounded on cache/inmemory.go's ticker-driven run().
func (e *Engine) trimLoop() {
	defer close(e.doneCh)
	ticker := time.NewTicker(e.cfg.autoTrimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if e.cfg.countLimit != NoLimit {
				e.TrimToCount(e.cfg.countLimit)
			}
			if e.cfg.costLimit != NoLimit {
				e.TrimToCost(e.cfg.costLimit)
			}
			if e.cfg.ageLimit != NoLimit {
				e.TrimToAge(e.cfg.ageLimit)
			}
		}
	}
}

// OnMemoryPressure is an abstract platform-callback entry point (spec §9):
// host glue invokes it when the OS reports memory pressure. If configured
// (the default), it clears the cache.
func (e *Engine) OnMemoryPressure() {
	if e.cfg.removeAllOnMemoryWarning {
		e.RemoveAll()
	}
}

// OnEnterBackground is an abstract platform-callback entry point (spec
// §9): host glue invokes it when the application moves to the background.
// If configured (the default), it clears the cache.
func (e *Engine) OnEnterBackground() {
	if e.cfg.removeAllOnEnterBackground {
		e.RemoveAll()
	}
}

// Close stops the background trim loop. The engine must not be used
// afterward.
func (e *Engine) Close() {
	close(e.stopCh)
	<-e.doneCh
}
