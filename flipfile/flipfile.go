// Package flipfile loads .flip project files.
//
// A project file declares footage and compositions in HCL:
//
//	source "plate" {
//	  path  = "shots/sq010/plate.%04d.exr"
//	  first = 1001
//	  end   = 100
//	}
//
//	comp "main" {
//	  width  = 1920
//	  height = 1080
//	  end    = 100
//
//	  layer "plate" {
//	    window  = [0, 100]
//	    opacity = 0.8
//	    blend   = "add"
//	  }
//	}
//
// Layer blocks reference nodes by name and may appear before the node they
// name is declared; nodes are created first, layers wired after. Layers
// stack in file order with the first block at the bottom. All ranges and
// windows are half-open [start, end). Free-form attrs blocks land in the
// node's or layer's attribute bag.
//
// Loading drives the ordinary edit operations, so a loaded project starts
// with every node dirty and is evaluated from scratch on the first tick.
package flipfile

import (
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/flipbook"
	"github.com/gogpu/flipbook/internal/blend"
)

// fileRoot collects every top-level block of one project file.
type fileRoot struct {
	Sources []*sourceBlock `hcl:"source,block"`
	Comps   []*compBlock   `hcl:"comp,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

// sourceBlock declares a footage node.
type sourceBlock struct {
	Name  string      `hcl:"name,label"`
	Path  string      `hcl:"path"`
	First int64       `hcl:"first,optional"`
	Video bool        `hcl:"video,optional"`
	Start int64       `hcl:"start,optional"`
	End   int64       `hcl:"end"`
	Attrs *attrsBlock `hcl:"attrs,block"`
}

// compBlock declares a composition node and its layer stack.
type compBlock struct {
	Name   string        `hcl:"name,label"`
	Width  int           `hcl:"width"`
	Height int           `hcl:"height"`
	Start  int64         `hcl:"start,optional"`
	End    int64         `hcl:"end"`
	Layers []*layerBlock `hcl:"layer,block"`
	Attrs  *attrsBlock   `hcl:"attrs,block"`
}

// layerBlock places one child node in a comp. The label is the child's name.
type layerBlock struct {
	Of        string      `hcl:"of,label"`
	Mode      string      `hcl:"mode,optional"`
	Window    []int64     `hcl:"window,optional"`
	Offset    int64       `hcl:"offset,optional"`
	Opacity   *float64    `hcl:"opacity,optional"`
	Blend     string      `hcl:"blend,optional"`
	Transform []float64   `hcl:"transform,optional"`
	Attrs     *attrsBlock `hcl:"attrs,block"`
}

// attrsBlock holds free-form key = value pairs.
type attrsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Load parses the project file at path and applies it to a new project
// backed by cache. A nil cache gets a fresh cache with the default budget.
func Load(path string, cache *flipbook.FrameCache) (*flipbook.Project, error) {
	if cache == nil {
		cache = flipbook.NewFrameCache(flipbook.NewBudget())
	}
	p := flipbook.NewProject(cache)
	if err := Apply(p, path); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply parses the project file at path and applies its blocks to p. Nodes
// already in the project keep working; layer blocks may reference them by
// name. On error the project may hold a partial load.
func Apply(p *flipbook.Project, path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("flipfile: parse %s: %w", path, diags)
	}
	return apply(p, file)
}

// ApplyBytes decodes src, named filename in errors, and applies it to p.
func ApplyBytes(p *flipbook.Project, filename string, src []byte) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("flipfile: parse %s: %w", filename, diags)
	}
	return apply(p, file)
}

func apply(p *flipbook.Project, file *hcl.File) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("flipfile: decode: %w", diags)
	}

	// Pass one: create every node so layers can reference forward.
	for _, b := range root.Sources {
		if err := checkName(p, b.Name); err != nil {
			return err
		}
		if b.End <= b.Start {
			return fmt.Errorf("flipfile: source %q: end %d is not after start %d", b.Name, b.End, b.Start)
		}
		src := flipbook.SourceRef{Path: b.Path, First: b.First, Video: b.Video}
		n := p.NewSource(b.Name, src, b.Start, b.End)
		if err := applyAttrs(b.Attrs, func(key string, v flipbook.AttrValue) error {
			return p.SetAttr(n.ID(), key, v)
		}); err != nil {
			return fmt.Errorf("flipfile: source %q: %w", b.Name, err)
		}
	}
	for _, b := range root.Comps {
		if err := checkName(p, b.Name); err != nil {
			return err
		}
		if b.End <= b.Start {
			return fmt.Errorf("flipfile: comp %q: end %d is not after start %d", b.Name, b.End, b.Start)
		}
		if b.Width < 1 || b.Height < 1 {
			return fmt.Errorf("flipfile: comp %q: size %dx%d is not positive", b.Name, b.Width, b.Height)
		}
		n := p.NewComp(b.Name, b.Width, b.Height, b.Start, b.End)
		if err := applyAttrs(b.Attrs, func(key string, v flipbook.AttrValue) error {
			return p.SetAttr(n.ID(), key, v)
		}); err != nil {
			return fmt.Errorf("flipfile: comp %q: %w", b.Name, err)
		}
	}

	// Pass two: wire layer stacks in file order.
	for _, b := range root.Comps {
		parent := p.NodeByName(b.Name)
		for _, lb := range b.Layers {
			if err := applyLayer(p, parent, b.Name, lb); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyLayer(p *flipbook.Project, parent *flipbook.Node, compName string, b *layerBlock) error {
	child := p.NodeByName(b.Of)
	if child == nil {
		return fmt.Errorf("flipfile: comp %q: layer references unknown node %q", compName, b.Of)
	}
	mode, err := parseEvalMode(b.Mode)
	if err != nil {
		return fmt.Errorf("flipfile: comp %q: layer %q: %w", compName, b.Of, err)
	}
	if b.Blend != "" {
		if _, ok := blend.ParseMode(b.Blend); !ok {
			return fmt.Errorf("flipfile: comp %q: layer %q: unknown blend mode %q", compName, b.Of, b.Blend)
		}
	}
	if len(b.Window) != 0 && len(b.Window) != 2 {
		return fmt.Errorf("flipfile: comp %q: layer %q: window needs [start, end], got %d elements", compName, b.Of, len(b.Window))
	}
	if len(b.Transform) != 0 && len(b.Transform) != 6 {
		return fmt.Errorf("flipfile: comp %q: layer %q: transform needs 6 elements, got %d", compName, b.Of, len(b.Transform))
	}

	layer, err := p.AddLayer(parent.ID(), child.ID(), mode)
	if err != nil {
		return fmt.Errorf("flipfile: comp %q: layer %q: %w", compName, b.Of, err)
	}
	id := layer.ID()
	if len(b.Window) == 2 {
		if err := p.SetLayerWindow(parent.ID(), id, b.Window[0], b.Window[1]); err != nil {
			return err
		}
	}
	if b.Offset != 0 {
		if err := p.SetLayerOffset(parent.ID(), id, b.Offset); err != nil {
			return err
		}
	}
	if b.Opacity != nil {
		if err := p.SetLayerAttr(parent.ID(), id, flipbook.AttrOpacity, flipbook.Float(*b.Opacity)); err != nil {
			return err
		}
	}
	if b.Blend != "" {
		if err := p.SetLayerAttr(parent.ID(), id, flipbook.AttrBlend, flipbook.String(b.Blend)); err != nil {
			return err
		}
	}
	if len(b.Transform) == 6 {
		if err := p.SetLayerAttr(parent.ID(), id, flipbook.AttrTransform, flipbook.Vec(b.Transform...)); err != nil {
			return err
		}
	}
	if err := applyAttrs(b.Attrs, func(key string, v flipbook.AttrValue) error {
		return p.SetLayerAttr(parent.ID(), id, key, v)
	}); err != nil {
		return fmt.Errorf("flipfile: comp %q: layer %q: %w", compName, b.Of, err)
	}
	return nil
}

func checkName(p *flipbook.Project, name string) error {
	if name == "" {
		return fmt.Errorf("flipfile: block with empty name")
	}
	if p.NodeByName(name) != nil {
		return fmt.Errorf("flipfile: node name %q already in use", name)
	}
	return nil
}

// applyAttrs evaluates every attribute of an attrs block and hands it to
// set. Keys are applied in sorted order so a reload is deterministic.
func applyAttrs(b *attrsBlock, set func(key string, v flipbook.AttrValue) error) error {
	if b == nil || b.Body == nil {
		return nil
	}
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("attrs: %w", diags)
	}
	for _, key := range slices.Sorted(maps.Keys(attrs)) {
		val, diags := attrs[key].Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("attr %q: %w", key, diags)
		}
		av, err := attrValue(val)
		if err != nil {
			return fmt.Errorf("attr %q: %w", key, err)
		}
		if err := set(key, av); err != nil {
			return fmt.Errorf("attr %q: %w", key, err)
		}
	}
	return nil
}

// attrValue maps an HCL value onto the attribute bag's kinds. Whole numbers
// become ints, everything else numeric a float, and number sequences a
// vector.
func attrValue(val cty.Value) (flipbook.AttrValue, error) {
	if val.IsNull() {
		return flipbook.AttrValue{}, fmt.Errorf("null value")
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return flipbook.String(val.AsString()), nil
	case ty == cty.Bool:
		return flipbook.Bool(val.True()), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if i, acc := bf.Int64(); acc == big.Exact {
			return flipbook.Int(i), nil
		}
		f, _ := bf.Float64()
		return flipbook.Float(f), nil
	case ty.IsTupleType() || ty.IsListType():
		var vec []float64
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if ev.IsNull() || ev.Type() != cty.Number {
				return flipbook.AttrValue{}, fmt.Errorf("vector elements must be numbers")
			}
			f, _ := ev.AsBigFloat().Float64()
			vec = append(vec, f)
		}
		return flipbook.Vec(vec...), nil
	}
	return flipbook.AttrValue{}, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}

func parseEvalMode(name string) (flipbook.EvalMode, error) {
	switch name {
	case "", "composite":
		return flipbook.EvalComposite, nil
	case "source":
		return flipbook.EvalSource, nil
	}
	return flipbook.EvalComposite, fmt.Errorf("unknown mode %q", name)
}
