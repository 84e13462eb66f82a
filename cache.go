package flipbook

import (
	"container/list"
	"log/slog"
	"sync/atomic"
)

// slotKey addresses one frame inside a composition's cache bucket.
type slotKey struct {
	mode  EvalMode
	frame int64
}

// cacheEntry is one cached frame with its LRU bookkeeping. The size is
// captured at insert time so that removal credits exactly what insertion
// debited, even if the frame grows afterwards.
type cacheEntry struct {
	node  NodeID
	slot  slotKey
	frame *Frame
	size  int64
	elem  *list.Element
}

// CacheStats is a snapshot of cache counters for monitoring.
type CacheStats struct {
	// Usage is the current memory accounted to cached frames, in bytes.
	Usage int64
	// Ceiling is the memory budget in bytes.
	Ceiling int64
	// Entries is the number of cached frames.
	Entries int
	// Hits is the number of Get calls that found a frame.
	Hits uint64
	// Misses is the number of Get calls that found nothing.
	Misses uint64
	// HitRate is Hits over Hits+Misses, 0 when no lookups happened.
	HitRate float64
	// Evictions is the number of frames removed, whether by memory
	// pressure or invalidation.
	Evictions uint64
	// OversizeSkips is the number of frames refused because a single
	// frame exceeded the whole budget.
	OversizeSkips uint64
}

// FrameCache holds evaluated frames for every composition, keyed by
// composition, evaluation mode, and frame index. A shared Budget bounds the
// total byte footprint; inserting past the ceiling evicts least recently
// used frames first, regardless of which composition owns them.
//
// The cache is confined to the evaluation goroutine. Decode workers never
// touch it; their results return over the completion channel and the owner
// applies them. Only the statistics counters are atomic, so monitoring can
// read Stats from any goroutine.
type FrameCache struct {
	budget *Budget
	comps  map[NodeID]map[slotKey]*cacheEntry
	lru    *list.List // front = most recently used

	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	oversizeSkips atomic.Uint64
}

// NewFrameCache creates an empty cache accounting against budget.
func NewFrameCache(budget *Budget) *FrameCache {
	if budget == nil {
		budget = NewBudget()
	}
	return &FrameCache{
		budget: budget,
		comps:  make(map[NodeID]map[slotKey]*cacheEntry),
		lru:    list.New(),
	}
}

// Budget returns the budget this cache accounts against.
func (c *FrameCache) Budget() *Budget {
	return c.budget
}

// Get returns the cached frame for the key. A hit moves the entry to the
// front of the LRU order.
func (c *FrameCache) Get(id NodeID, mode EvalMode, frame int64) (*Frame, bool) {
	e := c.lookup(id, mode, frame)
	if e == nil {
		c.misses.Add(1)
		return nil, false
	}
	c.lru.MoveToFront(e.elem)
	c.hits.Add(1)
	return e.frame, true
}

// Peek returns the cached frame without touching LRU order or counters.
// Preload scans and completion delivery use it so they do not distort
// recency or hit statistics.
func (c *FrameCache) Peek(id NodeID, mode EvalMode, frame int64) (*Frame, bool) {
	if e := c.lookup(id, mode, frame); e != nil {
		return e.frame, true
	}
	return nil, false
}

// Contains reports whether a frame is cached for the key. It does not
// update LRU order.
func (c *FrameCache) Contains(id NodeID, mode EvalMode, frame int64) bool {
	return c.lookup(id, mode, frame) != nil
}

func (c *FrameCache) lookup(id NodeID, mode EvalMode, frame int64) *cacheEntry {
	slots, ok := c.comps[id]
	if !ok {
		return nil
	}
	return slots[slotKey{mode: mode, frame: frame}]
}

// Insert stores a frame under the key, replacing any previous entry. It
// first evicts least recently used frames until the budget fits the new
// one. A frame larger than the entire budget is refused without evicting
// anything; Insert reports whether the frame was stored.
func (c *FrameCache) Insert(id NodeID, mode EvalMode, frame int64, f *Frame) bool {
	if f == nil {
		return false
	}
	size := f.ByteSize()

	// Replacement first, so a stale frame never outlives its successor,
	// including when the successor turns out to be oversized.
	if old := c.lookup(id, mode, frame); old != nil {
		c.removeEntry(old, false)
	}

	if size > c.budget.Ceiling() {
		c.oversizeSkips.Add(1)
		Logger().Debug("flipbook: frame exceeds cache budget, not cached",
			slog.String("node", id.String()),
			slog.Int64("frame", frame),
			slog.Int64("bytes", size),
			slog.Int64("ceiling", c.budget.Ceiling()))
		return false
	}

	for !c.budget.TryReserve(size) && c.lru.Len() > 0 {
		back := c.lru.Back()
		c.removeEntry(back.Value.(*cacheEntry), true)
	}

	e := &cacheEntry{
		node:  id,
		slot:  slotKey{mode: mode, frame: frame},
		frame: f,
		size:  size,
	}
	e.elem = c.lru.PushFront(e)
	slots, ok := c.comps[id]
	if !ok {
		slots = make(map[slotKey]*cacheEntry)
		c.comps[id] = slots
	}
	slots[e.slot] = e
	c.budget.Add(size)
	return true
}

// Remove drops the frame for the key and reports whether one was present.
func (c *FrameCache) Remove(id NodeID, mode EvalMode, frame int64) bool {
	e := c.lookup(id, mode, frame)
	if e == nil {
		return false
	}
	c.removeEntry(e, true)
	return true
}

// ClearFor drops every cached frame of one composition, in both evaluation
// modes, and returns the number removed.
func (c *FrameCache) ClearFor(id NodeID) int {
	slots, ok := c.comps[id]
	if !ok {
		return 0
	}
	n := len(slots)
	for _, e := range slots {
		c.lru.Remove(e.elem)
		c.budget.Free(e.size)
	}
	delete(c.comps, id)
	if n > 0 {
		c.evictions.Add(uint64(n))
	}
	return n
}

// ClearMode drops every cached frame of one composition in one evaluation
// mode and returns the number removed.
func (c *FrameCache) ClearMode(id NodeID, mode EvalMode) int {
	slots, ok := c.comps[id]
	if !ok {
		return 0
	}
	n := 0
	for slot, e := range slots {
		if slot.mode != mode {
			continue
		}
		c.removeEntry(e, true)
		n++
	}
	return n
}

// ClearRange drops cached frames of one composition and mode whose index
// lies in the half-open range [start, end), and returns the number removed.
func (c *FrameCache) ClearRange(id NodeID, mode EvalMode, start, end int64) int {
	slots, ok := c.comps[id]
	if !ok {
		return 0
	}
	n := 0
	for slot, e := range slots {
		if slot.mode != mode || slot.frame < start || slot.frame >= end {
			continue
		}
		c.removeEntry(e, true)
		n++
	}
	return n
}

// Clear empties the whole cache.
func (c *FrameCache) Clear() {
	n := c.lru.Len()
	for _, slots := range c.comps {
		for _, e := range slots {
			c.budget.Free(e.size)
		}
	}
	c.comps = make(map[NodeID]map[slotKey]*cacheEntry)
	c.lru.Init()
	if n > 0 {
		c.evictions.Add(uint64(n))
	}
}

// removeEntry unlinks an entry and credits its bytes back to the budget.
// Replacements do not count as evictions.
func (c *FrameCache) removeEntry(e *cacheEntry, evicted bool) {
	c.lru.Remove(e.elem)
	slots := c.comps[e.node]
	delete(slots, e.slot)
	if len(slots) == 0 {
		delete(c.comps, e.node)
	}
	c.budget.Free(e.size)
	if evicted {
		c.evictions.Add(1)
	}
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *FrameCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{
		Usage:         c.budget.Usage(),
		Ceiling:       c.budget.Ceiling(),
		Entries:       c.lru.Len(),
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		Evictions:     c.evictions.Load(),
		OversizeSkips: c.oversizeSkips.Load(),
	}
}

// ResetStats zeroes the hit, miss, eviction, and oversize counters.
func (c *FrameCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.oversizeSkips.Store(0)
}
