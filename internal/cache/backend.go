package cache

import (
	"context"
	"time"
)

// Backend is a raw byte store that a Mirror can use to share completions
// across replicas. It is an expansion beyond the core Cache contract: the
// core Cache (above) is always in-process and is what Router invariants are
// checked against. Backend exists purely so a caller who wants
// eventually-consistent sharing across replicas has somewhere to plug it in
// (spec's Non-goals exclude strong cross-replica consistency as a
// requirement, not a shared tier as a feature).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
