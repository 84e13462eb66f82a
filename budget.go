package flipbook

import (
	"log/slog"
	"sync/atomic"

	"github.com/pbnjay/memory"
)

// Budget configuration constants.
const (
	// DefaultCeilingBytes is the cache ceiling used until Configure or
	// SetCeiling is called.
	DefaultCeilingBytes = 512 * 1024 * 1024

	// minCeilingBytes is the floor Configure clamps to. A ceiling below
	// this cannot hold even a handful of review-resolution frames and
	// would turn the cache into pure churn.
	minCeilingBytes = 64 * 1024 * 1024
)

// totalSystemMemory reports installed physical memory. Overridable in tests.
var totalSystemMemory = memory.TotalMemory

// Budget tracks the bytes held by cached frames against a configurable
// ceiling, and owns the epoch counter used to cancel in-flight work.
//
// All operations are atomic and none of them fail: budget exhaustion shows
// up as the cache's eviction loop being unable to free enough space, never
// as an error from here.
//
// Thread safety: safe for concurrent use from any goroutine.
type Budget struct {
	usage   atomic.Int64
	ceiling atomic.Int64
	epoch   atomic.Uint64
}

// NewBudget creates a budget with the default ceiling and epoch 0.
func NewBudget() *Budget {
	b := &Budget{}
	b.ceiling.Store(DefaultCeilingBytes)
	return b
}

// Configure derives the ceiling from installed memory:
//
//	ceiling = (total system memory - reservedBytes) * fraction
//
// clamped to a sane minimum. fraction is clamped to [0.05, 0.95]. The new
// ceiling takes effect on the next insert; resident entries above it are
// evicted lazily by subsequent eviction passes, not here.
func (b *Budget) Configure(fraction float64, reservedBytes uint64) {
	if fraction < 0.05 {
		fraction = 0.05
	}
	if fraction > 0.95 {
		fraction = 0.95
	}

	total := totalSystemMemory()
	avail := int64(0)
	if total > reservedBytes {
		avail = int64(total - reservedBytes)
	}
	ceiling := int64(float64(avail) * fraction)
	if ceiling < minCeilingBytes {
		ceiling = minCeilingBytes
	}

	b.ceiling.Store(ceiling)
	Logger().Info("flipbook: budget configured",
		slog.Int64("ceiling_bytes", ceiling),
		slog.Float64("fraction", fraction))
}

// SetCeiling sets the ceiling to an exact byte count, bypassing the
// system-memory derivation. Values below 1 are clamped to 1.
func (b *Budget) SetCeiling(bytes int64) {
	if bytes < 1 {
		bytes = 1
	}
	b.ceiling.Store(bytes)
}

// Ceiling returns the current ceiling in bytes.
func (b *Budget) Ceiling() int64 {
	return b.ceiling.Load()
}

// Usage returns the bytes currently committed.
func (b *Budget) Usage() int64 {
	return b.usage.Load()
}

// TryReserve reports whether n more bytes would fit under the ceiling.
// It does not mutate usage; the caller commits with Add once its own
// eviction loop has made room, which keeps the two steps from double
// counting.
func (b *Budget) TryReserve(n int64) bool {
	return b.usage.Load()+n <= b.ceiling.Load()
}

// Add commits n bytes of usage.
func (b *Budget) Add(n int64) {
	b.usage.Add(n)
}

// Free releases n bytes of usage, saturating at zero.
func (b *Budget) Free(n int64) {
	for {
		cur := b.usage.Load()
		next := cur - n
		if next < 0 {
			next = 0
		}
		if b.usage.CompareAndSwap(cur, next) {
			return
		}
	}
}

// BumpEpoch advances the epoch and returns the new value. Called exactly
// once per user-visible position or edit change; every job submitted under
// an earlier epoch becomes stale.
func (b *Budget) BumpEpoch() uint64 {
	return b.epoch.Add(1)
}

// Epoch returns the current epoch.
func (b *Budget) Epoch() uint64 {
	return b.epoch.Load()
}
