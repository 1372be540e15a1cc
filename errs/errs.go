// Package errs defines the error taxonomy used by diskengine and the root
// kvcache façade.
//
// Disk engine operations return a plain bool/empty result for the common
// "didn't work" case and only log the classified error. The errors
// themselves reach callers from constructors such as diskengine.New and
// from the kvcache façade (e.g. a failed SetContext), where errors.Is
// against these sentinels tells the kinds apart.
package errs

import "github.com/cockroachdb/errors"

// Kind classifies why an operation failed, per spec §7.
type Kind int

const (
	// KindInvalidArgument: empty key/value, oversized path, wrong
	// storage-type for the requested operation, unknown enum value.
	KindInvalidArgument Kind = iota
	// KindIOFailure: file write/read/delete error, manifest query/update
	// error, database open/close error.
	KindIOFailure
	// KindCorruptState: schema initialization failed on a previously
	// working database — triggers the one-shot reset-and-retry recovery.
	KindCorruptState
	// KindMissing: key not present, or present in the manifest but its
	// backing file is gone (self-healed by deleting the row).
	KindMissing
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindIOFailure:
		return "io_failure"
	case KindCorruptState:
		return "corrupt_state"
	case KindMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind, for errors.Is comparisons.
var (
	ErrInvalidArgument = errors.New("kvcache: invalid argument")
	ErrIOFailure       = errors.New("kvcache: io failure")
	ErrCorruptState    = errors.New("kvcache: corrupt state")
	ErrMissing         = errors.New("kvcache: missing")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindIOFailure:
		return ErrIOFailure
	case KindCorruptState:
		return ErrCorruptState
	case KindMissing:
		return ErrMissing
	default:
		return ErrIOFailure
	}
}

// New wraps msg with the sentinel for kind so errors.Is(err, errs.ErrXxx)
// works, while keeping msg as the human-readable text.
func New(kind Kind, msg string) error {
	return errors.Mark(errors.New(msg), sentinelFor(kind))
}

// Wrap marks err with the sentinel for kind, preserving err's message and
// wrapped chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), sentinelFor(kind))
}

// Is reports whether err is (or wraps) the sentinel for kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, sentinelFor(kind))
}
