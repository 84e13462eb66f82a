package flipbook

import "sync"

// PixmapPool reuses pixmaps of identical dimensions.
//
// Composite evaluation allocates a scratch buffer per transformed layer;
// under playback those allocations repeat at the same few sizes every tick,
// so pooling them keeps GC pressure flat. Buffers handed out by Get are
// cleared to transparent black.
//
// Thread safety: all methods are safe for concurrent use, though in practice
// the pool is only touched from the compute goroutine.
type PixmapPool struct {
	mu      sync.Mutex
	buckets map[poolKey][]*Pixmap
	maxSize int // max pixmaps retained per bucket
}

// poolKey identifies a bucket of identically sized pixmaps.
type poolKey struct {
	width  int
	height int
}

// NewPixmapPool creates a pool retaining at most maxPerBucket pixmaps of
// each size. A maxPerBucket of 0 means unlimited.
func NewPixmapPool(maxPerBucket int) *PixmapPool {
	return &PixmapPool{
		buckets: make(map[poolKey][]*Pixmap),
		maxSize: maxPerBucket,
	}
}

// Get returns a cleared pixmap with the given dimensions, reusing a pooled
// buffer when one is available.
func (p *PixmapPool) Get(width, height int) *Pixmap {
	key := poolKey{width: width, height: height}

	p.mu.Lock()
	bucket := p.buckets[key]
	if n := len(bucket); n > 0 {
		pm := bucket[n-1]
		p.buckets[key] = bucket[:n-1]
		p.mu.Unlock()

		pm.Clear()
		return pm
	}
	p.mu.Unlock()

	return NewPixmap(width, height)
}

// Put returns a pixmap to the pool for reuse. Nil pixmaps and overflow
// beyond the bucket capacity are discarded.
//
// The caller must not keep references to the pixmap after Put: a frame that
// was published to the cache owns its pixels and is never returned here.
func (p *PixmapPool) Put(pm *Pixmap) {
	if pm == nil {
		return
	}

	key := poolKey{width: pm.width, height: pm.height}

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[key]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[key] = append(bucket, pm)
}

// Len returns the total number of pooled pixmaps across all buckets.
func (p *PixmapPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, bucket := range p.buckets {
		total += len(bucket)
	}
	return total
}
