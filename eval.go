package flipbook

import (
	"errors"
	"log/slog"

	"github.com/gogpu/flipbook/internal/blend"
)

// ErrNoDecoder is reported on frames evaluated synchronously when neither a
// worker pool nor a decoder is configured.
var ErrNoDecoder = errors.New("flipbook: no decoder configured")

// FrameStore is the cache capability evaluation and preloading depend on.
// FrameCache satisfies it; tests substitute doubles to observe decisions.
// Peek exists for the preloader, which must not disturb recency order while
// scanning for frames worth warming.
type FrameStore interface {
	Get(id NodeID, mode EvalMode, frame int64) (*Frame, bool)
	Peek(id NodeID, mode EvalMode, frame int64) (*Frame, bool)
	Insert(id NodeID, mode EvalMode, frame int64, f *Frame) bool
	ClearFor(id NodeID) int
}

// EvalContext carries the collaborators of one evaluation pass. Project and
// Cache are required. With a Pool, decodes run on workers and evaluation
// returns whatever is available immediately; without one, Decoder runs
// inline and evaluation blocks until pixels exist.
//
// A context belongs to the owning goroutine, like the cache itself. Epoch
// is the budget epoch snapshot taken at the start of the tick; jobs it
// submits are tagged with it.
type EvalContext struct {
	Project *Project
	Cache   FrameStore
	Pool    *DecodePool
	Decoder Decoder
	Scratch *PixmapPool
	Epoch   uint64

	visited map[NodeID]struct{}
}

// scratchGet hands out a cleared pixmap, pooled when possible. Ownership
// moves to the caller; buffers that end up inside published frames are
// simply never donated back.
func (ctx *EvalContext) scratchGet(width, height int) *Pixmap {
	if ctx.Scratch != nil {
		return ctx.Scratch.Get(width, height)
	}
	return NewPixmap(width, height)
}

// Evaluate resolves this node at one frame and returns the best available
// result without blocking on decode work. The returned frame may be in any
// status; callers poll it across ticks. A nil return means the frame is
// outside the node's range and has no output at all.
//
// Dirty state is honored here: a dirty node has all of its cached entries
// dropped before recomputation, so one flag invalidates every frame while
// recomputation stays lazy, one frame per request.
func (n *Node) Evaluate(ctx *EvalContext, mode EvalMode, frame int64) *Frame {
	if n == nil {
		return nil
	}
	if !n.InRange(frame) {
		return nil
	}

	// Runtime cycle guard. Edits reject cycles up front; this catches a
	// graph that got corrupted anyway and keeps recursion bounded.
	if ctx.visited == nil {
		ctx.visited = make(map[NodeID]struct{})
	}
	if _, ok := ctx.visited[n.id]; ok {
		Logger().Debug("flipbook: evaluation hit a reference cycle",
			slog.String("node", n.id.String()),
			slog.String("name", n.name))
		return newPlaceholder()
	}
	ctx.visited[n.id] = struct{}{}
	defer delete(ctx.visited, n.id)

	// One dirty node means every cached frame of it is suspect, in both
	// modes. Dropping them up front turns the flag into plain cache
	// misses; frames recompute lazily as they are requested.
	if n.attrs.IsDirty() {
		ctx.Cache.ClearFor(n.id)
	}

	switch {
	case mode == EvalSource && !n.src.IsZero():
		return n.evaluateLeaf(ctx, frame)
	case mode == EvalSource:
		// A composition consumed as footage serves its composite.
		return n.evaluateComposite(ctx, frame)
	case len(n.layers) == 0 && !n.src.IsZero():
		// A plain leaf asked for its composite has only its footage.
		return n.evaluateLeaf(ctx, frame)
	default:
		return n.evaluateComposite(ctx, frame)
	}
}

// localIndex maps a node-space frame to the source-local index handed to
// the decoder.
func (n *Node) localIndex(frame int64) int64 {
	start, _ := n.Range()
	return (frame - start) + n.attrs.Int(AttrTrim, 0)
}

// evaluateLeaf serves one footage frame, claiming and scheduling a decode
// when pixels are missing. Results cache under the EvalSource key.
func (n *Node) evaluateLeaf(ctx *EvalContext, frame int64) *Frame {
	cur, ok := ctx.Cache.Get(n.id, EvalSource, frame)
	if ok {
		switch cur.Status() {
		case StatusLoaded:
			return cur
		case StatusError:
			// Failed frames stay failed until an edit invalidates them.
			return cur
		case StatusLoading:
			if cur.ClaimEpoch() == ctx.Epoch {
				return cur
			}
			// The claim belongs to an abandoned epoch; its result will
			// be discarded wherever it surfaces. Supersede it.
		case StatusPlaceholder, StatusHeaderKnown:
			// Probed ahead but never claimed. Claim it now and keep the
			// frame object so the known header survives.
			if cur.TryClaimLoading(ctx.Epoch) {
				n.submitDecode(ctx, frame, cur)
			}
			return cur
		}
	}

	f := NewFrame(n.src, n.localIndex(frame))
	f.TryClaimLoading(ctx.Epoch)
	ctx.Cache.Insert(n.id, EvalSource, frame, f)
	n.submitDecode(ctx, frame, f)
	n.attrs.clearDirty()
	return f
}

// submitDecode schedules pixels for a claimed frame, or decodes inline
// when no pool is configured.
func (n *Node) submitDecode(ctx *EvalContext, frame int64, f *Frame) {
	local := n.localIndex(frame)
	if ctx.Pool != nil {
		ctx.Pool.submit(decodeJob{
			key:   frameKey{node: n.id, mode: EvalSource, frame: frame},
			frame: f,
			src:   n.src,
			local: local,
			epoch: ctx.Epoch,
		})
		return
	}
	if ctx.Decoder == nil {
		f.MarkError(ErrNoDecoder)
		return
	}
	pix, err := ctx.Decoder.Decode(n.src, local)
	if err != nil {
		f.MarkError(err)
		return
	}
	f.MarkLoaded(pix)
	// Reinsert so the budget sees the real pixel size.
	ctx.Cache.Insert(n.id, EvalSource, frame, f)
}

// evaluateComposite blends the node's layer stack at one frame. Results
// cache under the EvalComposite key.
func (n *Node) evaluateComposite(ctx *EvalContext, frame int64) *Frame {
	cur, ok := ctx.Cache.Get(n.id, EvalComposite, frame)
	if ok && cur.Status() == StatusLoaded && !n.layersDirtyAt(ctx, frame) {
		return cur
	}

	// Recompute. The backdrop is the node's own footage when it has one,
	// then each in-window layer blends on top in paint order. Decode gaps
	// contribute nothing this pass; the composite stays Loading so later
	// ticks re-blend once the pixels land.
	width, height := n.width, n.height
	allLoaded := true

	var bottom *Pixmap
	if !n.src.IsZero() {
		switch bf := n.evaluateLeaf(ctx, frame); {
		case bf == nil:
		case bf.Status() == StatusLoaded && bf.Pixels() != nil:
			bottom = bf.Pixels()
			if width < 1 || height < 1 {
				width, height = bottom.Width(), bottom.Height()
			}
		case bf.Status() != StatusError:
			allLoaded = false
		}
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	acc := ctx.scratchGet(width, height)
	if bottom != nil {
		compositeInto(acc, bottom, identityAff3, false, blend.Over, 1, ctx.Scratch)
	}

	for _, l := range n.layers {
		if !l.InWindow(frame) {
			// Exact exclusion: an out-of-window layer contributes
			// nothing and its state cannot disturb this frame.
			continue
		}
		child := ctx.Project.Node(l.child)
		if child == nil {
			Logger().Debug("flipbook: layer references a missing node",
				slog.String("comp", n.name),
				slog.String("child", l.child.String()))
			continue
		}
		cf := child.Evaluate(ctx, l.mode, frame-l.Offset())
		if cf == nil {
			continue
		}
		switch cf.Status() {
		case StatusLoaded:
			if pix := cf.Pixels(); pix != nil {
				l.compositeInto(acc, pix, ctx.Scratch)
			}
		case StatusError:
			// Transparent contribution. The failure lives on the
			// child's own frame and never aborts the parent.
		default:
			allLoaded = false
		}
	}

	out := newComposedFrame(acc, allLoaded)
	ctx.Cache.Insert(n.id, EvalComposite, frame, out)

	n.attrs.clearDirty()
	for _, l := range n.layers {
		if l.InWindow(frame) {
			l.attrs.clearDirty()
		}
	}
	return out
}

// layersDirtyAt reports whether any layer participating at this frame has
// pending edits, either on the instance itself or on the node it
// references. Out-of-window layers are ignored; their edits must not
// recompute frames they do not touch.
func (n *Node) layersDirtyAt(ctx *EvalContext, frame int64) bool {
	for _, l := range n.layers {
		if !l.InWindow(frame) {
			continue
		}
		if l.attrs.IsDirty() {
			return true
		}
		if child := ctx.Project.Node(l.child); child != nil && child.attrs.IsDirty() {
			return true
		}
	}
	return false
}
