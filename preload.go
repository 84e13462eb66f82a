package flipbook

// PreloadOrder is the traversal order of a preload pass.
type PreloadOrder uint8

const (
	// OrderSpiral alternates outward from the center. Image sequences seek
	// equally well in both directions, so the frames nearest the playhead
	// land first no matter which way playback turns.
	OrderSpiral PreloadOrder = iota

	// OrderForward walks strictly ahead of the center. Backward seeks on
	// streamed video cost a reopen, so frames behind the playhead are not
	// fetched speculatively.
	OrderForward
)

func (o PreloadOrder) String() string {
	switch o {
	case OrderSpiral:
		return "spiral"
	case OrderForward:
		return "forward"
	}
	return "unknown"
}

// preloadOrderFor picks the traversal for a source. Composites carry a zero
// ref and spiral.
func preloadOrderFor(src SourceRef) PreloadOrder {
	if src.Video {
		return OrderForward
	}
	return OrderSpiral
}

// PreloadPolicy bounds how far a preload pass reaches around the playhead.
type PreloadPolicy struct {
	// Radius is the number of frames on each side of the playhead that get
	// full decodes.
	Radius int64

	// HeaderRadius extends past Radius. Footage frames in the extension get
	// header-only probes, enough to report dimensions before pixels are
	// ever needed.
	HeaderRadius int64
}

// DefaultPreloadPolicy covers half a second of playback at film rate, with
// header probes reaching two seconds out.
var DefaultPreloadPolicy = PreloadPolicy{Radius: 12, HeaderRadius: 48}

func (pol PreloadPolicy) normalized() PreloadPolicy {
	if pol.Radius < 0 {
		pol.Radius = 0
	}
	if pol.HeaderRadius < pol.Radius {
		pol.HeaderRadius = pol.Radius
	}
	return pol
}

// spiralOrder lists center, center+1, center-1, center+2, center-2 and so
// on out to radius.
func spiralOrder(center, radius int64) []int64 {
	out := make([]int64, 0, 2*radius+1)
	out = append(out, center)
	for d := int64(1); d <= radius; d++ {
		out = append(out, center+d, center-d)
	}
	return out
}

// forwardOrder lists center through center+radius.
func forwardOrder(center, radius int64) []int64 {
	out := make([]int64, 0, radius+1)
	for d := int64(0); d <= radius; d++ {
		out = append(out, center+d)
	}
	return out
}

// PreloadAround warms the cache around a playhead position. Frames within
// the decode radius are evaluated, scheduling background decodes wherever
// pixels are missing; for footage nodes the ring beyond it gets header-only
// probes. Video sources traverse forward, everything else spirals. The
// return value counts the frames the pass requested work for.
//
// Runs on the owning goroutine, after the playhead frame itself has been
// served. Jobs carry the context's epoch snapshot, so a seek or edit after
// the trigger strands everything this pass queued.
func (n *Node) PreloadAround(ctx *EvalContext, mode EvalMode, center int64, pol PreloadPolicy) int {
	if n == nil {
		return 0
	}
	pol = pol.normalized()

	var idxs []int64
	var decodeSpan int
	// The generators grow outward, so a traversal out to HeaderRadius has
	// the decode-radius traversal as its prefix; everything past that
	// prefix is the probe ring.
	switch preloadOrderFor(n.src) {
	case OrderForward:
		idxs = forwardOrder(center, pol.HeaderRadius)
		decodeSpan = int(pol.Radius + 1)
	default:
		idxs = spiralOrder(center, pol.HeaderRadius)
		decodeSpan = int(2*pol.Radius + 1)
	}

	// Whether this request resolves to footage. Probing is pointless for
	// composites; their ring frames wait for a real evaluation.
	leaf := !n.src.IsZero() && (mode == EvalSource || len(n.layers) == 0)

	requested := 0
	for i, idx := range idxs {
		if !n.InRange(idx) {
			continue
		}
		if i >= decodeSpan {
			if leaf && n.probeHeader(ctx, idx) {
				requested++
			}
			continue
		}
		if !n.attrs.IsDirty() {
			if f, ok := ctx.Cache.Peek(n.id, mode, idx); ok && f.Status() == StatusLoaded {
				continue
			}
		}
		if n.Evaluate(ctx, mode, idx) != nil {
			requested++
		}
	}
	return requested
}

// probeHeader schedules a header-only decode for a footage frame with no
// cache entry yet. The placeholder goes in unclaimed: if playback reaches
// it before the probe lands, evaluation claims it in place and the late
// probe result is ignored. Probes are a pool-side optimization; synchronous
// players skip them.
func (n *Node) probeHeader(ctx *EvalContext, frame int64) bool {
	if ctx.Pool == nil {
		return false
	}
	if _, ok := ctx.Cache.Peek(n.id, EvalSource, frame); ok {
		return false
	}
	f := NewFrame(n.src, n.localIndex(frame))
	if !ctx.Cache.Insert(n.id, EvalSource, frame, f) {
		return false
	}
	ctx.Pool.submit(decodeJob{
		key:        frameKey{node: n.id, mode: EvalSource, frame: frame},
		frame:      f,
		src:        n.src,
		local:      n.localIndex(frame),
		epoch:      ctx.Epoch,
		headerOnly: true,
	})
	return true
}
