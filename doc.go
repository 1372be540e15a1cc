// Package kvcache is a two-tier key-value cache: an in-process memory
// engine backed by an intrusive LRU list, and a disk engine that keeps
// small values inline in a SQLite manifest and large values as separate
// files in a data directory.
//
// # Engines
//
// [memengine.Engine] and [diskengine.Engine] are usable on their own — the
// memory engine for a pure in-process LRU, the disk engine for a
// persistent store with no in-memory tier at all. Each is documented in
// its own package.
//
// # Cache façade
//
// The root package composes both engines behind a single [Cache]
// interface, so application code can be written against one API
// regardless of which tier (or both) backs it:
//
//	mem := kvcache.NewMemoryCache(memengine.WithCountLimit(10_000))
//	disk, err := kvcache.NewDiskCache("/var/cache/myapp", diskengine.Mixed, kvcache.MsgpackCodec{})
//	c := kvcache.NewComposite(mem, disk)
//
// [Cache.GetContext] on a composite checks tiers left to right and returns
// the first hit. [Cache.SetContext] writes to every tier. [Cache.RemoveContext]
// removes from every tier. If both engines were already constructed,
// [NewTiered] builds the same composite without re-deriving the adapters.
//
// The memory tier stores values as-is — a direct type assertion recovers
// them. The disk tier only ever holds bytes, so its values are
// round-tripped through a [Codec] ([MsgpackCodec] by default, using
// [github.com/vmihailenco/msgpack/v5]). [GetContext] and [Exec] hide this
// distinction: a hit from either tier comes back as your requested type.
//
//	found, user, err := kvcache.GetContext[User](ctx, c, "user:123")
//
// [Exec] is a cache-aside (read-through) helper that combines lookup and
// population in one call:
//
//	found, user, err := kvcache.Exec(ctx, kvcache.CacheConfig{Key: "user:123"}, c,
//	    func(ctx context.Context) (User, bool, error) {
//	        user, err := queries.GetUser(ctx, id)
//	        if errors.Is(err, sql.ErrNoRows) {
//	            return User{}, false, nil   // not found — won't be cached
//	        }
//	        return user, true, err          // found — will be cached
//	    },
//	)
//
// The [Invoker] function returns (value, found, error). found distinguishes
// "not found" from "found a zero value", preventing the cache from storing
// absent records.
//
// # Error handling
//
// Cache read errors are always propagated: if [Cache.GetContext] returns an
// error, [Exec] returns it immediately without calling the invoker. Write
// errors inside [Exec] are swallowed — if the invoker succeeds but
// [Cache.SetContext] fails, the value is still returned; failing to cache
// it is a degradation, not a failure of the caller's request.
//
// # Serialization
//
// [MsgpackCodec] handles most Go types: primitives, structs (exported
// fields), maps, slices, pointers, and types implementing
// msgpack.CustomEncoder/CustomDecoder. Functions, channels, and complex
// numbers cannot be serialized; storing one through the disk tier returns
// an encode error from [Cache.SetContext].
//
//	type User struct {
//	    Name  string `msgpack:"name"`
//	    Email string `msgpack:"email"`
//	}
package kvcache
