package flipbook

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// Well-known attribute keys. Nodes and layer instances store their timing
// and look controls in their Attrs so that every edit flows through the
// tracked-write path.
const (
	// AttrRangeStart and AttrRangeEnd bound a node's active work range,
	// half-open [start, end) in the node's own frame space.
	AttrRangeStart = "range.start"
	AttrRangeEnd   = "range.end"

	// AttrTrim shifts a leaf's source-local index after range mapping.
	AttrTrim = "trim"

	// AttrWindowStart and AttrWindowEnd bound a layer instance's active
	// window, half-open [start, end) in the parent's frame space.
	AttrWindowStart = "window.start"
	AttrWindowEnd   = "window.end"

	// AttrOffset is the parent frame at which the child's frame 0 sits.
	AttrOffset = "offset"

	// AttrOpacity is the layer opacity, 0..1. Default 1.
	AttrOpacity = "opacity"

	// AttrBlend is the layer blend mode name ("over", "add", "multiply",
	// "screen"). Default "over".
	AttrBlend = "blend"

	// AttrTransform is a 6-element row-major affine placement
	// [a, b, c, d, tx, ty]. Absent means identity.
	AttrTransform = "transform"
)

// AttrKind identifies the type stored in an AttrValue.
type AttrKind uint8

const (
	KindInt AttrKind = iota
	KindFloat
	KindBool
	KindString
	KindVec
	KindBlob
)

// AttrValue is one typed attribute value. Values are immutable; replacing
// an attribute means writing a new value through Attrs.Set.
type AttrValue struct {
	kind AttrKind
	i    int64
	f    float64
	b    bool
	s    string
	vec  []float64
	blob []byte
}

// Int wraps an integer attribute value.
func Int(v int64) AttrValue { return AttrValue{kind: KindInt, i: v} }

// Float wraps a float attribute value.
func Float(v float64) AttrValue { return AttrValue{kind: KindFloat, f: v} }

// Bool wraps a boolean attribute value.
func Bool(v bool) AttrValue { return AttrValue{kind: KindBool, b: v} }

// String wraps a string attribute value.
func String(v string) AttrValue { return AttrValue{kind: KindString, s: v} }

// Vec wraps a short float vector attribute value.
func Vec(v ...float64) AttrValue { return AttrValue{kind: KindVec, vec: v} }

// Blob wraps an opaque byte attribute value.
func Blob(v []byte) AttrValue { return AttrValue{kind: KindBlob, blob: v} }

// Kind returns the stored type.
func (v AttrValue) Kind() AttrKind { return v.kind }

// AsInt returns the value as an integer. Floats truncate; other kinds
// return 0.
func (v AttrValue) AsInt() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// AsFloat returns the value as a float. Integers widen; other kinds
// return 0.
func (v AttrValue) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	}
	return 0
}

// AsBool returns the boolean value, or false for other kinds.
func (v AttrValue) AsBool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return false
}

// AsString returns the string value, or "" for other kinds.
func (v AttrValue) AsString() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// AsVec returns the vector value, or nil for other kinds. The slice is
// shared; callers must not mutate it.
func (v AttrValue) AsVec() []float64 {
	if v.kind == KindVec {
		return v.vec
	}
	return nil
}

// AsBlob returns the blob value, or nil for other kinds.
func (v AttrValue) AsBlob() []byte {
	if v.kind == KindBlob {
		return v.blob
	}
	return nil
}

// String implements fmt.Stringer for debug output.
func (v AttrValue) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindString:
		return v.s
	case KindVec:
		return fmt.Sprintf("%v", v.vec)
	case KindBlob:
		return fmt.Sprintf("blob(%d bytes)", len(v.blob))
	}
	return "invalid"
}

// Attrs is the mutable property set of one entity: a composition node or a
// layer instance inside one. Keys keep insertion order.
//
// Any mutation through Set or Delete marks the store dirty. Only the owning
// node's compute step clears the flag, and only after it has published a
// fresh result to the cache. New stores start dirty: an entity that has
// never computed has nothing valid cached, and reloaded projects must never
// trust a previous run's cache.
//
// Thread safety: the dirty flag is atomic and may be read or set from any
// goroutine. Key/value access belongs to the compute goroutine.
type Attrs struct {
	dirty atomic.Bool
	keys  []string
	vals  map[string]AttrValue
}

// NewAttrs creates an empty attribute store, marked dirty.
func NewAttrs() *Attrs {
	a := &Attrs{vals: make(map[string]AttrValue)}
	a.dirty.Store(true)
	return a
}

// Set writes one attribute through the tracked path and marks the store
// dirty.
func (a *Attrs) Set(key string, v AttrValue) {
	if _, ok := a.vals[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.vals[key] = v
	a.dirty.Store(true)
}

// Get returns the attribute for key.
func (a *Attrs) Get(key string) (AttrValue, bool) {
	v, ok := a.vals[key]
	return v, ok
}

// Delete removes an attribute. Removing a present key is a tracked
// mutation and marks the store dirty.
func (a *Attrs) Delete(key string) {
	if _, ok := a.vals[key]; !ok {
		return
	}
	delete(a.vals, key)
	a.keys = slices.DeleteFunc(a.keys, func(k string) bool { return k == key })
	a.dirty.Store(true)
}

// Keys returns the attribute keys in insertion order.
func (a *Attrs) Keys() []string {
	return slices.Clone(a.keys)
}

// Len returns the number of attributes.
func (a *Attrs) Len() int {
	return len(a.vals)
}

// MarkDirty flags the store as stale. UI edit handlers call this for
// mutations that bypass Set.
func (a *Attrs) MarkDirty() {
	a.dirty.Store(true)
}

// IsDirty reports whether the store has unpublished mutations.
func (a *Attrs) IsDirty() bool {
	return a.dirty.Load()
}

// clearDirty resets the flag. Reserved for the owning node's compute step,
// after a fresh result reached the cache.
func (a *Attrs) clearDirty() {
	a.dirty.Store(false)
}

// Typed getters with defaults, for the attribute keys evaluation reads in
// its hot path.

// Int returns the integer value for key, or def when absent.
func (a *Attrs) Int(key string, def int64) int64 {
	if v, ok := a.vals[key]; ok {
		return v.AsInt()
	}
	return def
}

// Float returns the float value for key, or def when absent.
func (a *Attrs) Float(key string, def float64) float64 {
	if v, ok := a.vals[key]; ok {
		return v.AsFloat()
	}
	return def
}

// Bool returns the boolean value for key, or def when absent.
func (a *Attrs) Bool(key string, def bool) bool {
	if v, ok := a.vals[key]; ok {
		return v.AsBool()
	}
	return def
}

// Text returns the string value for key, or def when absent.
func (a *Attrs) Text(key string, def string) string {
	if v, ok := a.vals[key]; ok && v.kind == KindString {
		return v.s
	}
	return def
}

// Vec returns the vector value for key, or nil when absent.
func (a *Attrs) Vec(key string) []float64 {
	if v, ok := a.vals[key]; ok {
		return v.AsVec()
	}
	return nil
}
