package flipbook

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrCycle is returned by AddLayer when the new layer would make a
	// node reference itself, directly or through intermediates.
	ErrCycle = errors.New("flipbook: layer would create a reference cycle")

	// ErrUnknownNode is returned when an operation names a node that is
	// not part of the project.
	ErrUnknownNode = errors.New("flipbook: unknown node")

	// ErrUnknownLayer is returned when an operation names a layer that is
	// not part of the addressed composition.
	ErrUnknownLayer = errors.New("flipbook: unknown layer")
)

// Project owns the composition graph: the node registry, the layer
// structure, and the reverse child-to-parent index used to push dirty marks
// up the tree. Every structural or attribute edit flows through here so the
// matching cache invalidation and a single epoch bump happen alongside it.
//
// Thread safety: structural operations belong to the owning goroutine.
// Dirty marking and epoch bumps are atomic, so change watchers running on
// their own goroutines may flag nodes stale without taking part in graph
// mutation.
type Project struct {
	nodes   map[NodeID]*Node
	order   []NodeID
	parents map[NodeID]map[NodeID]int // child -> parent -> layer count
	cache   *FrameCache
	budget  *Budget
}

// NewProject creates an empty project invalidating into the given cache.
// A nil cache gets a default budget and cache of its own.
func NewProject(cache *FrameCache) *Project {
	if cache == nil {
		cache = NewFrameCache(NewBudget())
	}
	return &Project{
		nodes:   make(map[NodeID]*Node),
		parents: make(map[NodeID]map[NodeID]int),
		cache:   cache,
		budget:  cache.Budget(),
	}
}

// Cache returns the frame cache this project invalidates.
func (p *Project) Cache() *FrameCache { return p.cache }

// Budget returns the shared memory budget and epoch counter.
func (p *Project) Budget() *Budget { return p.budget }

// NewComp creates a composition node with the given output size and active
// range [start, end).
func (p *Project) NewComp(name string, width, height int, start, end int64) *Node {
	n := newCompNode(name, width, height, start, end)
	p.register(n)
	return n
}

// NewSource creates a footage node bound to src with active range
// [start, end).
func (p *Project) NewSource(name string, src SourceRef, start, end int64) *Node {
	n := newSourceNode(name, src, start, end)
	p.register(n)
	return n
}

func (p *Project) register(n *Node) {
	p.nodes[n.id] = n
	p.order = append(p.order, n.id)
}

// Node returns the node with the given ID, or nil.
func (p *Project) Node(id NodeID) *Node {
	return p.nodes[id]
}

// NodeByName returns the first node with the given name, or nil. Names are
// display labels and need not be unique.
func (p *Project) NodeByName(name string) *Node {
	for _, id := range p.order {
		if n := p.nodes[id]; n != nil && n.name == name {
			return n
		}
	}
	return nil
}

// Nodes returns all nodes in creation order.
func (p *Project) Nodes() []*Node {
	out := make([]*Node, 0, len(p.order))
	for _, id := range p.order {
		if n := p.nodes[id]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Remove deletes a node. Layers in other compositions that referenced it
// are removed, those compositions are invalidated like any structural
// edit, and every cached frame of the node is dropped.
func (p *Project) Remove(id NodeID) error {
	n := p.nodes[id]
	if n == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	// Detach the node from every composition referencing it.
	for parentID := range p.parents[id] {
		parent := p.nodes[parentID]
		if parent == nil {
			continue
		}
		parent.layers = slices.DeleteFunc(parent.layers, func(l *Layer) bool {
			return l.child == id
		})
		p.invalidateStructural(parentID)
	}
	delete(p.parents, id)

	// Drop the reverse references its own layers held.
	for _, l := range n.layers {
		p.removeParentRef(l.child, id)
	}

	p.cache.ClearFor(id)
	delete(p.nodes, id)
	p.order = slices.DeleteFunc(p.order, func(o NodeID) bool { return o == id })
	p.budget.BumpEpoch()
	return nil
}

// AddLayer places child inside parent's layer stack, on top. The mode
// selects whether the child contributes its raw frames or its composite.
// Layers that would create a reference cycle are rejected.
func (p *Project) AddLayer(parentID, childID NodeID, mode EvalMode) (*Layer, error) {
	parent := p.nodes[parentID]
	if parent == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, parentID)
	}
	if p.nodes[childID] == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, childID)
	}
	if p.wouldCycle(parentID, childID) {
		return nil, ErrCycle
	}

	l := newLayer(childID, mode)
	parent.layers = append(parent.layers, l)
	p.addParentRef(childID, parentID)

	p.invalidateStructural(parentID)
	p.budget.BumpEpoch()
	return l, nil
}

// RemoveLayer deletes one layer instance from a composition.
func (p *Project) RemoveLayer(parentID NodeID, layerID LayerID) error {
	parent, l, err := p.layer(parentID, layerID)
	if err != nil {
		return err
	}

	parent.layers = slices.DeleteFunc(parent.layers, func(c *Layer) bool {
		return c.id == layerID
	})
	p.removeParentRef(l.child, parentID)

	p.invalidateStructural(parentID)
	p.budget.BumpEpoch()
	return nil
}

// MoveLayer reorders a layer to the given stack position. The index is
// clamped to the stack bounds; the last position paints topmost.
func (p *Project) MoveLayer(parentID NodeID, layerID LayerID, index int) error {
	parent, l, err := p.layer(parentID, layerID)
	if err != nil {
		return err
	}

	cur := slices.Index(parent.layers, l)
	parent.layers = slices.Delete(parent.layers, cur, cur+1)
	if index < 0 {
		index = 0
	}
	if index > len(parent.layers) {
		index = len(parent.layers)
	}
	parent.layers = slices.Insert(parent.layers, index, l)

	p.invalidateStructural(parentID)
	p.budget.BumpEpoch()
	return nil
}

// SetAttr writes one node attribute. A content edit stales everything the
// node ever produced, so the node and its ancestors are marked dirty; the
// cached frames drop lazily on the node's next evaluation.
func (p *Project) SetAttr(id NodeID, key string, v AttrValue) error {
	n := p.nodes[id]
	if n == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	n.attrs.Set(key, v)
	p.markAncestorsDirty(id)
	p.budget.BumpEpoch()
	return nil
}

// SetLayerAttr writes one layer attribute. Only the parent's composites
// across the layer's window go stale; frames the layer does not touch keep
// their cache entries. Timing keys route through the window/offset rules.
func (p *Project) SetLayerAttr(parentID NodeID, layerID LayerID, key string, v AttrValue) error {
	switch key {
	case AttrWindowStart, AttrWindowEnd, AttrOffset:
		return p.setLayerTiming(parentID, layerID, key, v)
	}

	parent, l, err := p.layer(parentID, layerID)
	if err != nil {
		return err
	}
	l.attrs.Set(key, v)

	ws, we := l.Window()
	p.cache.ClearRange(parent.id, EvalComposite, ws, we)
	p.markAncestorsDirty(parentID)
	p.budget.BumpEpoch()
	return nil
}

// SetLayerWindow rebounds the layer's active window to [start, end).
// Invalidation covers the union of the old and new windows; parent frames
// outside both keep their cached composites.
func (p *Project) SetLayerWindow(parentID NodeID, layerID LayerID, start, end int64) error {
	parent, l, err := p.layer(parentID, layerID)
	if err != nil {
		return err
	}

	oldStart, oldEnd := l.Window()
	l.attrs.Set(AttrWindowStart, Int(start))
	l.attrs.Set(AttrWindowEnd, Int(end))

	p.cache.ClearRange(parent.id, EvalComposite, oldStart, oldEnd)
	p.cache.ClearRange(parent.id, EvalComposite, start, end)
	p.markAncestorsDirty(parentID)
	p.budget.BumpEpoch()
	return nil
}

// SetLayerOffset moves the child in time. The window in parent space is
// unchanged, so exactly the frames inside it go stale.
func (p *Project) SetLayerOffset(parentID NodeID, layerID LayerID, offset int64) error {
	parent, l, err := p.layer(parentID, layerID)
	if err != nil {
		return err
	}

	l.attrs.Set(AttrOffset, Int(offset))

	ws, we := l.Window()
	p.cache.ClearRange(parent.id, EvalComposite, ws, we)
	p.markAncestorsDirty(parentID)
	p.budget.BumpEpoch()
	return nil
}

func (p *Project) setLayerTiming(parentID NodeID, layerID LayerID, key string, v AttrValue) error {
	parent, l, err := p.layer(parentID, layerID)
	if err != nil {
		return err
	}

	oldStart, oldEnd := l.Window()
	l.attrs.Set(key, v)
	newStart, newEnd := l.Window()

	p.cache.ClearRange(parent.id, EvalComposite, oldStart, oldEnd)
	p.cache.ClearRange(parent.id, EvalComposite, newStart, newEnd)
	p.markAncestorsDirty(parentID)
	p.budget.BumpEpoch()
	return nil
}

// layer resolves a (parent, layer) pair.
func (p *Project) layer(parentID NodeID, layerID LayerID) (*Node, *Layer, error) {
	parent := p.nodes[parentID]
	if parent == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownNode, parentID)
	}
	l := parent.Layer(layerID)
	if l == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownLayer, layerID)
	}
	return parent, l, nil
}

// invalidateStructural applies the invalidation class of layer-stack
// edits: the composition recomposes from scratch and everything above it
// goes stale.
func (p *Project) invalidateStructural(id NodeID) {
	if n := p.nodes[id]; n != nil {
		n.attrs.MarkDirty()
	}
	p.cache.ClearMode(id, EvalComposite)
	p.markAncestorsDirty(id)
}

// markAncestorsDirty walks the reverse index and marks every composition
// above id stale. The node itself is not touched.
func (p *Project) markAncestorsDirty(id NodeID) {
	seen := map[NodeID]struct{}{id: {}}
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for parentID := range p.parents[cur] {
			if _, ok := seen[parentID]; ok {
				continue
			}
			seen[parentID] = struct{}{}
			if n := p.nodes[parentID]; n != nil {
				n.attrs.MarkDirty()
			}
			stack = append(stack, parentID)
		}
	}
}

// wouldCycle reports whether making parent reference child closes a loop,
// that is, whether parent is reachable from child through layer references.
func (p *Project) wouldCycle(parentID, childID NodeID) bool {
	if parentID == childID {
		return true
	}
	seen := make(map[NodeID]struct{})
	stack := []NodeID{childID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == parentID {
			return true
		}
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		if n := p.nodes[cur]; n != nil {
			for _, l := range n.layers {
				stack = append(stack, l.child)
			}
		}
	}
	return false
}

func (p *Project) addParentRef(child, parent NodeID) {
	m := p.parents[child]
	if m == nil {
		m = make(map[NodeID]int)
		p.parents[child] = m
	}
	m[parent]++
}

func (p *Project) removeParentRef(child, parent NodeID) {
	m := p.parents[child]
	if m == nil {
		return
	}
	if m[parent]--; m[parent] <= 0 {
		delete(m, parent)
	}
	if len(m) == 0 {
		delete(p.parents, child)
	}
}
