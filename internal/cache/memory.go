package cache

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// heapBackend is a Backend that expires entries via a min-heap ordered by
// expiration, so the background sweep only ever looks at the entry that
// will expire soonest. cmd/gateway uses it as a Mirror's shared Backend
// when no Redis URL is configured.
type heapBackend struct {
	mu sync.Mutex

	data map[string]*heapEntry
	exp  expirationHeap

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

type heapEntry struct {
	value      []byte
	expiration int64 // unix nano
}

type expirationRef struct {
	key        string
	expiration int64
	index      int
}

type expirationHeap []*expirationRef

func (h expirationHeap) Len() int            { return len(h) }
func (h expirationHeap) Less(i, j int) bool  { return h[i].expiration < h[j].expiration }
func (h expirationHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *expirationHeap) Push(x any) {
	ref := x.(*expirationRef)
	ref.index = len(*h)
	*h = append(*h, ref)
}
func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	ref := old[n-1]
	old[n-1] = nil
	ref.index = -1
	*h = old[:n-1]
	return ref
}

// NewInProcessBackend returns a Backend that never leaves this process. It
// gives a single-replica deployment the same Mirror code path a Redis-backed
// deployment uses, without requiring Redis: useful in development or for a
// gateway that only ever runs one instance.
func NewInProcessBackend(cleanupInterval time.Duration) Backend {
	return newHeapBackend(cleanupInterval)
}

// newHeapBackend starts a background sweep goroutine; callers must Close it.
func newHeapBackend(cleanupInterval time.Duration) *heapBackend {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	b := &heapBackend{
		data:        make(map[string]*heapEntry),
		stopCleanup: make(chan struct{}),
	}
	heap.Init(&b.exp)
	b.cleanupTicker = time.NewTicker(cleanupInterval)
	go b.sweepLoop()
	return b
}

func (b *heapBackend) sweepLoop() {
	for {
		select {
		case <-b.cleanupTicker.C:
			b.sweepExpired()
		case <-b.stopCleanup:
			return
		}
	}
}

func (b *heapBackend) sweepExpired() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UnixNano()
	for b.exp.Len() > 0 {
		ref := b.exp[0]
		stored, ok := b.data[ref.key]
		if !ok || stored.expiration != ref.expiration {
			heap.Pop(&b.exp)
			continue
		}
		if ref.expiration > now {
			break
		}
		heap.Pop(&b.exp)
		delete(b.data, ref.key)
	}
}

func (b *heapBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expiration <= time.Now().UnixNano() {
		delete(b.data, key)
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (b *heapBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	expiration := time.Now().Add(ttl).UnixNano()
	stored := make([]byte, len(value))
	copy(stored, value)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = &heapEntry{value: stored, expiration: expiration}
	heap.Push(&b.exp, &expirationRef{key: key, expiration: expiration})
	return nil
}

func (b *heapBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *heapBackend) Close() error {
	b.cleanupTicker.Stop()
	close(b.stopCleanup)
	return nil
}
