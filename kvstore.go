// kvstore.go

package sessionforge

import (
	"context"
	"time"
)

// ScriptOp kinds accepted by KeyValueStore.Exec.
const (
	OpCheckEqual  = "check_equal"  // abort with 0 unless the key's value equals Value
	OpCheckAbsent = "check_absent" // abort with 0 if the key exists
	OpSet         = "set"          // set Key to Value with TTL
	OpDel         = "del"          // delete Key
)

// ScriptOp is one step of an atomic multi-key operation list.
type ScriptOp struct {
	Op    string
	Key   string
	Value string
	TTL   time.Duration
}

// KeyValueStore is a shared, networked key/value cache with TTL-per-key and
// one atomic scripted multi-key primitive. It is the single source of truth
// for session liveness; all mutations are either single-key TTL'd writes or
// one Exec call, keeping the atomicity surface minimal and auditable.
type KeyValueStore interface {
	// Get returns the value for key, or ErrKeyNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime of key, or zero when the key is
	// absent or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Exec runs the operation list as one indivisible unit against the
	// store and returns 1 when the whole list was applied, 0 when a check
	// op aborted it. Check ops must precede mutating ops: ops run in order
	// and a failed check stops execution where it stands.
	Exec(ctx context.Context, ops []ScriptOp) (int64, error)
}
