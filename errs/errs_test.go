package errs

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewMarksSentinelAndKeepsMessage(t *testing.T) {
	err := New(KindMissing, "key not found")
	assert.EqualError(t, err, "key not found")
	assert.True(t, Is(err, KindMissing))
	assert.False(t, Is(err, KindIOFailure))
}

func TestWrapPreservesChainAndMarksSentinel(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindIOFailure, cause, "blobstore: write failed")
	assert.True(t, Is(err, KindIOFailure))
	assert.ErrorContains(t, err, "blobstore: write failed")
	assert.ErrorContains(t, err, "disk full")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(KindIOFailure, nil, "unused"))
}

func TestIsDistinguishesEveryKind(t *testing.T) {
	kinds := []Kind{KindInvalidArgument, KindIOFailure, KindCorruptState, KindMissing}
	for _, k := range kinds {
		err := New(k, "boom")
		for _, other := range kinds {
			if other == k {
				assert.True(t, Is(err, other), "expected Is(%v) to match its own kind", k)
			} else {
				assert.False(t, Is(err, other), "expected Is(%v) not to match kind %v", k, other)
			}
		}
	}
}

func TestKindStringValues(t *testing.T) {
	assert.Equal(t, "invalid_argument", KindInvalidArgument.String())
	assert.Equal(t, "io_failure", KindIOFailure.String())
	assert.Equal(t, "corrupt_state", KindCorruptState.String())
	assert.Equal(t, "missing", KindMissing.String())
}
