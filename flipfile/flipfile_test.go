package flipfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/math/f64"

	"github.com/gogpu/flipbook"
	"github.com/gogpu/flipbook/internal/blend"
)

const reviewFlip = `
source "plate" {
  path  = "shots/plate.%04d.png"
  first = 1001
  end   = 60

  attrs {
    trim = 2
  }
}

source "take" {
  path  = "shots/take.mov"
  video = true
  end   = 48
}

comp "inset" {
  width  = 640
  height = 360
  end    = 60

  layer "plate" {
    mode = "source"
  }
}

comp "main" {
  width  = 1920
  height = 1080
  end    = 60

  attrs {
    fps = 24
  }

  layer "plate" {
    window  = [0, 60]
    opacity = 0.75
    blend   = "add"
  }

  layer "inset" {
    offset    = 12
    transform = [0.5, 0, 0, 0.5, 40, 40]

    attrs {
      label = "pip"
      gain  = 1.5
      solo  = true
      tint  = [1, 0.5, 0.25]
    }
  }
}
`

func loadString(t *testing.T, src string) *flipbook.Project {
	t.Helper()
	p := flipbook.NewProject(flipbook.NewFrameCache(flipbook.NewBudget()))
	if err := ApplyBytes(p, "test.flip", []byte(src)); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadProject(t *testing.T) {
	p := loadString(t, reviewFlip)

	if got := len(p.Nodes()); got != 4 {
		t.Fatalf("loaded %d nodes, want 4", got)
	}

	plate := p.NodeByName("plate")
	if plate == nil || !plate.IsLeaf() {
		t.Fatal("plate missing or not a leaf")
	}
	src := plate.Source()
	if src.Path != "shots/plate.%04d.png" || src.First != 1001 || src.Video {
		t.Errorf("plate source = %+v", src)
	}
	if start, end := plate.Range(); start != 0 || end != 60 {
		t.Errorf("plate range = [%d, %d)", start, end)
	}
	if got := plate.Attrs().Int(flipbook.AttrTrim, 0); got != 2 {
		t.Errorf("plate trim = %d, want 2", got)
	}

	if take := p.NodeByName("take"); take == nil || !take.Source().Video {
		t.Error("take missing or not marked video")
	}

	inset := p.NodeByName("inset")
	if inset.Width() != 640 || inset.Height() != 360 {
		t.Errorf("inset size = %dx%d", inset.Width(), inset.Height())
	}
	if layers := inset.Layers(); len(layers) != 1 || layers[0].Mode() != flipbook.EvalSource {
		t.Errorf("inset layers = %v", layers)
	}

	main := p.NodeByName("main")
	if got := main.Attrs().Int("fps", 0); got != 24 {
		t.Errorf("main fps = %d, want 24", got)
	}
	if !main.Attrs().IsDirty() {
		t.Error("freshly loaded comp is not dirty")
	}

	layers := main.Layers()
	if len(layers) != 2 {
		t.Fatalf("main has %d layers, want 2", len(layers))
	}

	// File order stacks bottom to top.
	bottom, top := layers[0], layers[1]
	if bottom.Child() != plate.ID() || top.Child() != inset.ID() {
		t.Fatal("layer order does not follow the file")
	}
	if start, end := bottom.Window(); start != 0 || end != 60 {
		t.Errorf("bottom window = [%d, %d)", start, end)
	}
	if got := bottom.Opacity(); got != 0.75 {
		t.Errorf("bottom opacity = %v, want 0.75", got)
	}
	if got := bottom.BlendMode(); got != blend.Add {
		t.Errorf("bottom blend = %v, want add", got)
	}

	if got := top.Offset(); got != 12 {
		t.Errorf("top offset = %d, want 12", got)
	}
	aff, ok := top.Transform()
	if !ok {
		t.Fatal("top transform missing")
	}
	if want := (f64.Aff3{0.5, 0, 40, 0, 0.5, 40}); aff != want {
		t.Errorf("top transform = %v, want %v", aff, want)
	}
	at := top.Attrs()
	if at.Text("label", "") != "pip" {
		t.Errorf("label = %q", at.Text("label", ""))
	}
	if at.Float("gain", 0) != 1.5 {
		t.Errorf("gain = %v", at.Float("gain", 0))
	}
	if !at.Bool("solo", false) {
		t.Error("solo not set")
	}
	if tint := at.Vec("tint"); len(tint) != 3 || tint[1] != 0.5 {
		t.Errorf("tint = %v", tint)
	}
	// No window block means unbounded.
	if !top.InWindow(1 << 40) {
		t.Error("windowless layer excluded a frame")
	}
}

func TestLoadForwardReference(t *testing.T) {
	p := loadString(t, `
comp "outer" {
  width  = 8
  height = 8
  end    = 10

  layer "inner" {}
}

comp "inner" {
  width  = 8
  height = 8
  end    = 10
}
`)
	outer := p.NodeByName("outer")
	if layers := outer.Layers(); len(layers) != 1 || layers[0].Child() != p.NodeByName("inner").ID() {
		t.Fatal("forward reference not wired")
	}
}

func TestLoadRejectsCycle(t *testing.T) {
	p := flipbook.NewProject(flipbook.NewFrameCache(flipbook.NewBudget()))
	err := ApplyBytes(p, "cycle.flip", []byte(`
comp "a" {
  width  = 8
  height = 8
  end    = 10

  layer "b" {}
}

comp "b" {
  width  = 8
  height = 8
  end    = 10

  layer "a" {}
}
`))
	if !errors.Is(err, flipbook.ErrCycle) {
		t.Fatalf("err = %v, want cycle rejection", err)
	}
}

func TestLoadErrors(t *testing.T) {
	// layerOver wraps one layer body in a comp plus the child it places.
	layerOver := func(body string) string {
		return `
comp "c" {
  width  = 8
  height = 8
  end    = 10

  layer "c2" {
` + body + `
  }
}

comp "c2" {
  width  = 8
  height = 8
  end    = 10
}
`
	}
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `comp {`, "parse"},
		{"missing path", `source "s" { end = 10 }`, ""},
		{"empty range", `
source "s" {
  path = "x.png"
  end  = 0
}`, "not after"},
		{"zero size", `
comp "c" {
  width  = 0
  height = 8
  end    = 10
}`, "not positive"},
		{"duplicate name", `
source "x" {
  path = "a.png"
  end  = 10
}
source "x" {
  path = "b.png"
  end  = 10
}`, "already in use"},
		{"unknown child", `
comp "c" {
  width  = 8
  height = 8
  end    = 10
  layer "ghost" {}
}`, "unknown node"},
		{"bad mode", layerOver(`mode = "flattened"`), "unknown mode"},
		{"bad blend", layerOver(`blend = "dodge"`), "unknown blend"},
		{"bad window", layerOver(`window = [1, 2, 3]`), "window"},
		{"bad transform", layerOver(`transform = [1, 0]`), "transform"},
		{"null attr", `
source "s" {
  path = "a.png"
  end  = 10

  attrs {
    x = null
  }
}`, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := flipbook.NewProject(flipbook.NewFrameCache(flipbook.NewBudget()))
			err := ApplyBytes(p, tt.name+".flip", []byte(tt.src))
			if err == nil {
				t.Fatal("load succeeded")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestApplyAddsToExistingProject(t *testing.T) {
	p := flipbook.NewProject(flipbook.NewFrameCache(flipbook.NewBudget()))
	clip := p.NewSource("clip", flipbook.SourceRef{Path: "clip.%d.png"}, 0, 10)

	err := ApplyBytes(p, "extra.flip", []byte(`
comp "over" {
  width  = 8
  height = 8
  end    = 10

  layer "clip" {}
}
`))
	if err != nil {
		t.Fatal(err)
	}
	over := p.NodeByName("over")
	if layers := over.Layers(); len(layers) != 1 || layers[0].Child() != clip.ID() {
		t.Fatal("layer not wired to the pre-existing node")
	}

	// A second file reusing the name must be rejected.
	err = ApplyBytes(p, "clash.flip", []byte(`
source "clip" {
  path = "x.png"
  end  = 5
}`))
	if err == nil || !strings.Contains(err.Error(), "already in use") {
		t.Fatalf("err = %v, want name clash", err)
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.flip")
	if err := os.WriteFile(path, []byte(reviewFlip), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Cache() == nil {
		t.Fatal("nil-cache load did not provision a cache")
	}
	if p.NodeByName("main") == nil {
		t.Fatal("main comp missing")
	}

	if _, err := Load(filepath.Join(dir, "absent.flip"), nil); err == nil {
		t.Fatal("loading a missing file succeeded")
	}
}
