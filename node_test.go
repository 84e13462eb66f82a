package flipbook

import (
	"math"
	"testing"

	"golang.org/x/image/math/f64"

	"github.com/gogpu/flipbook/internal/blend"
)

func TestEvalModeString(t *testing.T) {
	tests := []struct {
		mode EvalMode
		want string
	}{
		{EvalSource, "source"},
		{EvalComposite, "composite"},
		{EvalMode(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("EvalMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestNodeIDs(t *testing.T) {
	a, b := newNodeID(), newNodeID()
	if a == b {
		t.Fatal("two node IDs collided")
	}
	if a.IsZero() {
		t.Error("fresh ID reported zero")
	}
	if (NodeID{}).IsZero() == false {
		t.Error("zero ID not reported zero")
	}
	if len(a.String()) != 36 {
		t.Errorf("String() = %q, want canonical UUID form", a.String())
	}
}

func TestSourceNode(t *testing.T) {
	src := SourceRef{Path: "plate.%04d.exr", First: 1001}
	n := newSourceNode("plate", src, 0, 240)

	if !n.IsLeaf() {
		t.Fatal("source node not a leaf")
	}
	if got := n.Source(); got != src {
		t.Errorf("Source() = %+v, want %+v", got, src)
	}
	if n.Name() != "plate" {
		t.Errorf("Name() = %q", n.Name())
	}
	start, end := n.Range()
	if start != 0 || end != 240 {
		t.Errorf("Range() = [%d, %d), want [0, 240)", start, end)
	}
	if n.InRange(-1) || !n.InRange(0) || !n.InRange(239) || n.InRange(240) {
		t.Error("InRange boundaries wrong for half-open [0, 240)")
	}
}

func TestCompNode(t *testing.T) {
	n := newCompNode("main", 1920, 1080, 0, 100)
	if n.IsLeaf() {
		t.Fatal("comp node reported leaf")
	}
	if n.Width() != 1920 || n.Height() != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", n.Width(), n.Height())
	}

	tiny := newCompNode("tiny", 0, -5, 0, 1)
	if tiny.Width() != 1 || tiny.Height() != 1 {
		t.Errorf("degenerate size = %dx%d, want clamped to 1x1", tiny.Width(), tiny.Height())
	}
}

func TestNodeRangeDefaults(t *testing.T) {
	n := &Node{attrs: NewAttrs()}
	start, end := n.Range()
	if start != 0 || end != math.MaxInt64 {
		t.Errorf("default Range() = [%d, %d), want [0, MaxInt64)", start, end)
	}
}

func TestNodeLayers(t *testing.T) {
	n := newCompNode("main", 64, 64, 0, 10)
	la := newLayer(newNodeID(), EvalSource)
	lb := newLayer(newNodeID(), EvalComposite)
	n.layers = append(n.layers, la, lb)

	got := n.Layers()
	if len(got) != 2 || got[0] != la || got[1] != lb {
		t.Fatalf("Layers() = %v, want paint order [a, b]", got)
	}
	// Mutating the returned slice must not disturb the stack.
	got[0] = nil
	if n.layers[0] != la {
		t.Error("Layers() exposed the internal slice")
	}

	if n.Layer(la.ID()) != la {
		t.Error("Layer(id) missed a present layer")
	}
	if n.Layer(newLayerID()) != nil {
		t.Error("Layer(id) invented a layer")
	}
}

func TestLayerDefaults(t *testing.T) {
	child := newNodeID()
	l := newLayer(child, EvalComposite)

	if l.Child() != child {
		t.Error("Child() mismatch")
	}
	if l.Mode() != EvalComposite {
		t.Error("Mode() mismatch")
	}
	start, end := l.Window()
	if start != math.MinInt64 || end != math.MaxInt64 {
		t.Errorf("default Window() = [%d, %d), want unbounded", start, end)
	}
	if !l.InWindow(-1000) || !l.InWindow(1e9) {
		t.Error("unbounded window excluded a frame")
	}
	if l.Offset() != 0 {
		t.Errorf("default Offset() = %d, want 0", l.Offset())
	}
	if l.Opacity() != 1 {
		t.Errorf("default Opacity() = %v, want 1", l.Opacity())
	}
	if l.BlendMode() != blend.Over {
		t.Errorf("default BlendMode() = %v, want over", l.BlendMode())
	}
	if _, ok := l.Transform(); ok {
		t.Error("default Transform() reported a matrix")
	}
}

func TestLayerWindow(t *testing.T) {
	l := newLayer(newNodeID(), EvalSource)
	l.attrs.Set(AttrWindowStart, Int(10))
	l.attrs.Set(AttrWindowEnd, Int(20))

	if l.InWindow(9) || !l.InWindow(10) || !l.InWindow(19) || l.InWindow(20) {
		t.Error("InWindow boundaries wrong for half-open [10, 20)")
	}
}

func TestLayerOpacityClamped(t *testing.T) {
	tests := []struct {
		set  float64
		want float64
	}{
		{0.5, 0.5},
		{-0.2, 0},
		{1.7, 1},
	}
	for _, tt := range tests {
		l := newLayer(newNodeID(), EvalSource)
		l.attrs.Set(AttrOpacity, Float(tt.set))
		if got := l.Opacity(); got != tt.want {
			t.Errorf("Opacity() with %v set = %v, want %v", tt.set, got, tt.want)
		}
	}
}

func TestLayerBlendModeFallback(t *testing.T) {
	l := newLayer(newNodeID(), EvalSource)
	l.attrs.Set(AttrBlend, String("screen"))
	if got := l.BlendMode(); got != blend.Screen {
		t.Errorf("BlendMode() = %v, want screen", got)
	}
	l.attrs.Set(AttrBlend, String("no-such-mode"))
	if got := l.BlendMode(); got != blend.Over {
		t.Errorf("BlendMode() on unknown name = %v, want over", got)
	}
}

func TestLayerTransform(t *testing.T) {
	l := newLayer(newNodeID(), EvalSource)
	l.attrs.Set(AttrTransform, Vec(2, 0, 0, 3, 10, 20))

	m, ok := l.Transform()
	if !ok {
		t.Fatal("Transform() reported absent")
	}
	want := f64.Aff3{2, 0, 10, 0, 3, 20}
	if m != want {
		t.Errorf("Transform() = %v, want %v", m, want)
	}

	l.attrs.Set(AttrTransform, Vec(1, 2, 3)) // wrong arity
	if _, ok := l.Transform(); ok {
		t.Error("Transform() accepted a malformed vector")
	}
}
