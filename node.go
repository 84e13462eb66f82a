package flipbook

import (
	"math"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/flipbook/internal/blend"
)

// NodeID identifies a composition node for its whole lifetime.
type NodeID uuid.UUID

func newNodeID() NodeID {
	return NodeID(uuid.New())
}

// String returns the canonical UUID form.
func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// LayerID identifies one layer instance inside a composition.
type LayerID uuid.UUID

func newLayerID() LayerID {
	return LayerID(uuid.New())
}

// String returns the canonical UUID form.
func (id LayerID) String() string {
	return uuid.UUID(id).String()
}

// EvalMode selects which result of a node an evaluation wants. A leaf only
// has source frames. A composition can serve either its flattened composite
// or, when consumed as EvalSource, behave like footage for a parent that
// wants its frames before placement.
type EvalMode uint8

const (
	// EvalSource asks for the node's own frames: decoded footage for a
	// leaf, the node's composite treated as footage for a nested comp.
	EvalSource EvalMode = iota
	// EvalComposite asks for the node's blended layer stack.
	EvalComposite
)

// String returns the mode name used in project files and logs.
func (m EvalMode) String() string {
	switch m {
	case EvalSource:
		return "source"
	case EvalComposite:
		return "composite"
	}
	return "unknown"
}

// Node is one vertex of the composition graph: either a footage leaf bound
// to a SourceRef, or a composition with a layer stack. Nodes are created
// through Project, which owns the graph structure; a node's Attrs carry its
// timing controls.
type Node struct {
	id     NodeID
	name   string
	width  int
	height int
	src    SourceRef
	layers []*Layer
	attrs  *Attrs
}

func newSourceNode(name string, src SourceRef, start, end int64) *Node {
	n := &Node{
		id:    newNodeID(),
		name:  name,
		src:   src,
		attrs: NewAttrs(),
	}
	n.attrs.Set(AttrRangeStart, Int(start))
	n.attrs.Set(AttrRangeEnd, Int(end))
	return n
}

func newCompNode(name string, width, height int, start, end int64) *Node {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	n := &Node{
		id:     newNodeID(),
		name:   name,
		width:  width,
		height: height,
		attrs:  NewAttrs(),
	}
	n.attrs.Set(AttrRangeStart, Int(start))
	n.attrs.Set(AttrRangeEnd, Int(end))
	return n
}

// ID returns the node's identifier.
func (n *Node) ID() NodeID { return n.id }

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// Width returns the composite raster width. Zero for footage leaves, whose
// dimensions come from the decoded header.
func (n *Node) Width() int { return n.width }

// Height returns the composite raster height. Zero for footage leaves.
func (n *Node) Height() int { return n.height }

// Source returns the footage reference. Zero for compositions.
func (n *Node) Source() SourceRef { return n.src }

// IsLeaf reports whether the node is bound to footage rather than a layer
// stack.
func (n *Node) IsLeaf() bool { return !n.src.IsZero() }

// Attrs returns the node's attribute store. Reads are free; edits should
// flow through Project so cached frames are invalidated alongside the
// dirty flag.
func (n *Node) Attrs() *Attrs { return n.attrs }

// Range returns the node's active work range, half-open [start, end) in
// the node's own frame space. Absent bounds default to an unbounded range.
func (n *Node) Range() (start, end int64) {
	start = n.attrs.Int(AttrRangeStart, 0)
	end = n.attrs.Int(AttrRangeEnd, math.MaxInt64)
	return start, end
}

// InRange reports whether frame lies inside the active range.
func (n *Node) InRange(frame int64) bool {
	start, end := n.Range()
	return frame >= start && frame < end
}

// Layers returns the layer stack in paint order: index 0 is painted first,
// the last layer lands on top. The returned slice is a copy.
func (n *Node) Layers() []*Layer {
	return slices.Clone(n.layers)
}

// Layer returns the layer with the given ID, or nil.
func (n *Node) Layer(id LayerID) *Layer {
	for _, l := range n.layers {
		if l.id == id {
			return l
		}
	}
	return nil
}

// Layer places one child node inside a composition. The same child may
// appear in any number of layers, each with its own timing and look
// attributes.
type Layer struct {
	id    LayerID
	child NodeID
	mode  EvalMode
	attrs *Attrs
}

func newLayer(child NodeID, mode EvalMode) *Layer {
	return &Layer{
		id:    newLayerID(),
		child: child,
		mode:  mode,
		attrs: NewAttrs(),
	}
}

// ID returns the layer's identifier.
func (l *Layer) ID() LayerID { return l.id }

// Child returns the node this layer places.
func (l *Layer) Child() NodeID { return l.child }

// Mode returns how the child is consumed: its raw frames or its composite.
func (l *Layer) Mode() EvalMode { return l.mode }

// Attrs returns the layer's attribute store. The same edit discipline as
// Node.Attrs applies.
func (l *Layer) Attrs() *Attrs { return l.attrs }

// Window returns the layer's active window, half-open [start, end) in the
// parent's frame space. Absent bounds default to an unbounded window.
func (l *Layer) Window() (start, end int64) {
	start = l.attrs.Int(AttrWindowStart, math.MinInt64)
	end = l.attrs.Int(AttrWindowEnd, math.MaxInt64)
	return start, end
}

// InWindow reports whether the parent frame lies inside the window.
func (l *Layer) InWindow(frame int64) bool {
	start, end := l.Window()
	return frame >= start && frame < end
}

// Offset returns the parent frame at which the child's frame 0 sits.
func (l *Layer) Offset() int64 {
	return l.attrs.Int(AttrOffset, 0)
}

// Opacity returns the layer opacity clamped to 0..1. Default 1.
func (l *Layer) Opacity() float64 {
	op := l.attrs.Float(AttrOpacity, 1)
	if op < 0 {
		return 0
	}
	if op > 1 {
		return 1
	}
	return op
}

// BlendMode returns the layer's blend mode. Unknown names fall back to
// source-over.
func (l *Layer) BlendMode() blend.Mode {
	m, ok := blend.ParseMode(l.attrs.Text(AttrBlend, ""))
	if !ok {
		return blend.Over
	}
	return m
}

// Transform returns the layer's placement as a 2x3 affine matrix and
// whether one is set. The attribute holds [a, b, c, d, tx, ty] with
// x' = a*x + b*y + tx and y' = c*x + d*y + ty.
func (l *Layer) Transform() (f64.Aff3, bool) {
	v := l.attrs.Vec(AttrTransform)
	if len(v) != 6 {
		return f64.Aff3{1, 0, 0, 0, 1, 0}, false
	}
	return f64.Aff3{v[0], v[1], v[4], v[2], v[3], v[5]}, true
}
