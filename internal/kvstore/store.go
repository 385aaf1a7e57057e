package kvstore

import (
	"context"
	"encoding/json"
)

// Store is the named-slot persistence abstraction the backup engine reads
// from and writes to. Values are opaque JSON documents; the engine never
// interprets them beyond counting collection elements.
type Store interface {
	// Get returns the value stored under key. The second return value is
	// false when the slot has never been written.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error
}
