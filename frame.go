package flipbook

import "sync/atomic"

// SourceRef describes one leaf media source: a frame sequence pattern or a
// single media file. It is plain data and crosses the worker boundary as
// part of a decode job.
type SourceRef struct {
	// Path is the file path, or a sequence pattern understood by the
	// decoder (printf-style "%04d" or hash runs "####").
	Path string

	// First is the source frame number that local index 0 maps to.
	First int64

	// Video marks sources that are expensive to seek backward. The
	// preloader uses forward-only traversal for them.
	Video bool
}

// IsZero reports whether the ref points at nothing.
func (s SourceRef) IsZero() bool { return s.Path == "" }

// FrameStatus describes how far a Frame has progressed toward pixels.
//
// Transitions are monotonic:
//
//	Placeholder → HeaderKnown → Loading → {Loaded | Error}
//
// A Loaded or Error frame never transitions backward; superseding content
// always means a fresh Frame object.
type FrameStatus int32

const (
	// StatusPlaceholder is the initial state: referenced, nothing known.
	StatusPlaceholder FrameStatus = iota
	// StatusHeaderKnown means dimensions were probed but pixels are absent.
	StatusHeaderKnown
	// StatusLoading means exactly one claimant is producing pixels.
	StatusLoading
	// StatusLoaded means pixels are present and final.
	StatusLoaded
	// StatusError means production failed; see Frame.Err.
	StatusError
)

// String returns a short name for the status.
func (s FrameStatus) String() string {
	switch s {
	case StatusPlaceholder:
		return "placeholder"
	case StatusHeaderKnown:
		return "header-known"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Terminal reports whether the status is final (Loaded or Error).
func (s FrameStatus) Terminal() bool {
	return s == StatusLoaded || s == StatusError
}

// Header carries the result of probing a source without decoding pixels.
type Header struct {
	Width  int
	Height int
}

// frameOverheadBytes is the budget estimate for a frame slot that has not
// materialized pixels yet (Placeholder, HeaderKnown, pixel-less Error).
const frameOverheadBytes = 256

// Frame is a handle to one decoded or composed image plus its production
// status.
//
// Thread safety: the status is atomic, so any goroutine may poll Status()
// (the viewport does, to repaint when a frame lands). All other fields are
// written on the compute goroutine before the status transition that
// publishes them and must only be read after observing that status; pixel
// data is valid once Status() is Loaded.
type Frame struct {
	status atomic.Int32

	// Immutable after construction.
	src      SourceRef
	local    int64
	composed bool

	// Published by status transitions.
	header Header
	pix    *Pixmap
	err    error

	// claimEpoch is the epoch current when the frame was claimed for
	// loading. Owned by the compute goroutine; a Loading frame whose claim
	// epoch predates the current epoch belongs to a cancelled job and may
	// be reclaimed.
	claimEpoch uint64
}

// NewFrame creates a Placeholder frame for the given source and local index.
func NewFrame(src SourceRef, local int64) *Frame {
	return &Frame{src: src, local: local}
}

// newComposedFrame wraps a composite accumulator in a frame. complete marks
// every in-window child as Loaded; otherwise the frame stays Loading so the
// next evaluation recomposes once pending children land.
func newComposedFrame(pix *Pixmap, complete bool) *Frame {
	f := &Frame{composed: true, pix: pix}
	if complete {
		f.status.Store(int32(StatusLoaded))
	} else {
		f.status.Store(int32(StatusLoading))
	}
	return f
}

// newPlaceholder returns a detached placeholder frame, used when the cycle
// guard refuses to re-enter a node.
func newPlaceholder() *Frame {
	return &Frame{composed: true}
}

// Status returns the current lifecycle status.
func (f *Frame) Status() FrameStatus {
	return FrameStatus(f.status.Load())
}

// TryClaimLoading attempts the Placeholder/HeaderKnown → Loading transition.
// Exactly one concurrent claimant wins; losers must not redo the decode and
// observe the winner's result through the cache instead. The epoch current
// at claim time is recorded for stale-claim recovery.
func (f *Frame) TryClaimLoading(epoch uint64) bool {
	if f.status.CompareAndSwap(int32(StatusPlaceholder), int32(StatusLoading)) ||
		f.status.CompareAndSwap(int32(StatusHeaderKnown), int32(StatusLoading)) {
		f.claimEpoch = epoch
		return true
	}
	return false
}

// MarkHeaderKnown records probed dimensions. Only the Placeholder →
// HeaderKnown transition is accepted; later states keep their data.
func (f *Frame) MarkHeaderKnown(h Header) bool {
	if FrameStatus(f.status.Load()) != StatusPlaceholder {
		return false
	}
	f.header = h
	return f.status.CompareAndSwap(int32(StatusPlaceholder), int32(StatusHeaderKnown))
}

// MarkLoaded publishes pixels and moves the frame to Loaded.
// Returns false if the frame already reached a terminal state.
func (f *Frame) MarkLoaded(pix *Pixmap) bool {
	for {
		cur := f.status.Load()
		if FrameStatus(cur).Terminal() {
			return false
		}
		f.pix = pix
		if f.status.CompareAndSwap(cur, int32(StatusLoaded)) {
			return true
		}
	}
}

// MarkError records a production failure and moves the frame to Error.
// Returns false if the frame already reached a terminal state. Errors are
// not retried automatically; a retry is a deliberate new attempt through a
// fresh Frame.
func (f *Frame) MarkError(err error) bool {
	for {
		cur := f.status.Load()
		if FrameStatus(cur).Terminal() {
			return false
		}
		f.err = err
		if f.status.CompareAndSwap(cur, int32(StatusError)) {
			return true
		}
	}
}

// Pixels returns the pixel buffer, or nil if none has been published.
// Callers should check Status() first; pixels are final only once Loaded.
func (f *Frame) Pixels() *Pixmap {
	return f.pix
}

// Err returns the recorded failure cause, or nil.
func (f *Frame) Err() error {
	return f.err
}

// Header returns the probed dimensions. Zero until HeaderKnown.
func (f *Frame) Header() Header {
	return f.header
}

// Source returns the source descriptor. Zero for composed frames.
func (f *Frame) Source() SourceRef {
	return f.src
}

// LocalIndex returns the source-local frame index.
func (f *Frame) LocalIndex() int64 {
	return f.local
}

// Composed reports whether the frame is a composite result rather than a
// decoded source frame.
func (f *Frame) Composed() bool {
	return f.composed
}

// ClaimEpoch returns the epoch recorded by the winning TryClaimLoading
// call. Meaningful only while the frame is Loading.
func (f *Frame) ClaimEpoch() uint64 {
	return f.claimEpoch
}

// ByteSize returns the frame's resident size for budget accounting: exact
// for frames holding pixels, a fixed small estimate for slots that have not
// materialized pixels yet but still occupy cache structure.
func (f *Frame) ByteSize() int64 {
	if f.pix != nil {
		return f.pix.SizeBytes()
	}
	return frameOverheadBytes
}
