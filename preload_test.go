package flipbook

import (
	"slices"
	"testing"
)

func TestSpiralOrder(t *testing.T) {
	tests := []struct {
		center, radius int64
		want           []int64
	}{
		{10, 0, []int64{10}},
		{10, 1, []int64{10, 11, 9}},
		{10, 3, []int64{10, 11, 9, 12, 8, 13, 7}},
		{0, 2, []int64{0, 1, -1, 2, -2}},
	}
	for _, tt := range tests {
		if got := spiralOrder(tt.center, tt.radius); !slices.Equal(got, tt.want) {
			t.Errorf("spiralOrder(%d, %d) = %v, want %v", tt.center, tt.radius, got, tt.want)
		}
	}
}

func TestForwardOrder(t *testing.T) {
	want := []int64{10, 11, 12, 13}
	if got := forwardOrder(10, 3); !slices.Equal(got, want) {
		t.Errorf("forwardOrder(10, 3) = %v, want %v", got, want)
	}
	if got := forwardOrder(5, 0); !slices.Equal(got, []int64{5}) {
		t.Errorf("forwardOrder(5, 0) = %v, want [5]", got)
	}
}

func TestPreloadOrderFor(t *testing.T) {
	if got := preloadOrderFor(SourceRef{Path: "a.%04d.png"}); got != OrderSpiral {
		t.Errorf("sequence order = %v, want spiral", got)
	}
	if got := preloadOrderFor(SourceRef{Path: "a.mov", Video: true}); got != OrderForward {
		t.Errorf("video order = %v, want forward", got)
	}
	if got := preloadOrderFor(SourceRef{}); got != OrderSpiral {
		t.Errorf("zero ref order = %v, want spiral", got)
	}
	if OrderSpiral.String() != "spiral" || OrderForward.String() != "forward" {
		t.Error("order names wrong")
	}
}

func TestPreloadPolicyNormalized(t *testing.T) {
	got := PreloadPolicy{Radius: -4, HeaderRadius: -9}.normalized()
	if got.Radius != 0 || got.HeaderRadius != 0 {
		t.Errorf("normalized negative policy = %+v", got)
	}
	got = PreloadPolicy{Radius: 10, HeaderRadius: 3}.normalized()
	if got.HeaderRadius != 10 {
		t.Errorf("HeaderRadius = %d, want clamped to Radius", got.HeaderRadius)
	}
}

func TestPreloadAroundWarms(t *testing.T) {
	fx := newEvalFixture()
	clip := fx.proj.NewSource("clip", SourceRef{Path: "clip.%04d.png"}, 0, 100)
	fx.tick()

	pol := PreloadPolicy{Radius: 2, HeaderRadius: 2}
	if got := clip.PreloadAround(fx.ctx, EvalSource, 10, pol); got != 5 {
		t.Fatalf("requested = %d, want 5", got)
	}
	for frame := int64(8); frame <= 12; frame++ {
		f, ok := fx.ctx.Cache.Peek(clip.ID(), EvalSource, frame)
		if !ok || f.Status() != StatusLoaded {
			t.Fatalf("frame %d not loaded after preload", frame)
		}
		if got := fx.dec.count(clip.Source(), frame); got != 1 {
			t.Errorf("frame %d decoded %d times", frame, got)
		}
	}
	if got := fx.dec.total(); got != 5 {
		t.Errorf("total decodes = %d, want 5", got)
	}

	// A second pass over warm frames requests nothing and decodes nothing.
	if got := clip.PreloadAround(fx.ctx, EvalSource, 10, pol); got != 0 {
		t.Errorf("second pass requested %d frames", got)
	}
	if got := fx.dec.total(); got != 5 {
		t.Errorf("second pass decoded, total = %d", got)
	}
}

func TestPreloadAroundRespectsRange(t *testing.T) {
	fx := newEvalFixture()
	clip := fx.proj.NewSource("clip", SourceRef{Path: "clip.%04d.png"}, 0, 100)
	fx.tick()

	pol := PreloadPolicy{Radius: 3, HeaderRadius: 3}
	if got := clip.PreloadAround(fx.ctx, EvalSource, 0, pol); got != 4 {
		t.Fatalf("requested = %d, want 4", got)
	}
	for frame := int64(-3); frame < 0; frame++ {
		if _, ok := fx.ctx.Cache.Peek(clip.ID(), EvalSource, frame); ok {
			t.Errorf("out-of-range frame %d was cached", frame)
		}
	}
	if got := fx.dec.total(); got != 4 {
		t.Errorf("total decodes = %d, want 4", got)
	}
}

func TestPreloadAroundForwardForVideo(t *testing.T) {
	fx := newEvalFixture()
	clip := fx.proj.NewSource("clip", SourceRef{Path: "clip.mov", Video: true}, 0, 100)
	fx.tick()

	pol := PreloadPolicy{Radius: 2, HeaderRadius: 2}
	if got := clip.PreloadAround(fx.ctx, EvalSource, 10, pol); got != 3 {
		t.Fatalf("requested = %d, want 3", got)
	}
	for frame := int64(10); frame <= 12; frame++ {
		if !fx.proj.Cache().Contains(clip.ID(), EvalSource, frame) {
			t.Errorf("forward frame %d missing", frame)
		}
	}
	for frame := int64(8); frame < 10; frame++ {
		if fx.proj.Cache().Contains(clip.ID(), EvalSource, frame) {
			t.Errorf("backward frame %d fetched for a video source", frame)
		}
	}
}

func TestPreloadAroundComposite(t *testing.T) {
	fx := newEvalFixture()
	clip := fx.proj.NewSource("clip", SourceRef{Path: "clip.%04d.png"}, 0, 100)
	comp := fx.proj.NewComp("main", 8, 8, 0, 100)
	if _, err := fx.proj.AddLayer(comp.ID(), clip.ID(), EvalSource); err != nil {
		t.Fatal(err)
	}
	fx.tick()

	// Ring probes do not apply to composites; only the decode span warms.
	pol := PreloadPolicy{Radius: 1, HeaderRadius: 6}
	if got := comp.PreloadAround(fx.ctx, EvalComposite, 5, pol); got != 3 {
		t.Fatalf("requested = %d, want 3", got)
	}
	for frame := int64(4); frame <= 6; frame++ {
		f, ok := fx.ctx.Cache.Peek(comp.ID(), EvalComposite, frame)
		if !ok || f.Status() != StatusLoaded {
			t.Fatalf("composite frame %d not loaded", frame)
		}
	}
	if fx.proj.Cache().Contains(comp.ID(), EvalComposite, 7) {
		t.Error("composite frame beyond the decode radius was produced")
	}
}

func TestPreloadAroundProbesRing(t *testing.T) {
	cache := NewFrameCache(NewBudget())
	proj := NewProject(cache)
	clip := proj.NewSource("clip", SourceRef{Path: "clip.%04d.png"}, 0, 1000)

	dec := &countingDecoder{}
	pool := NewDecodePool(2, dec, proj.Budget())
	defer pool.Close()

	ctx := &EvalContext{
		Project: proj,
		Cache:   cache,
		Pool:    pool,
		Epoch:   proj.Budget().Epoch(),
	}

	pol := PreloadPolicy{Radius: 1, HeaderRadius: 3}
	want := 2*3 + 1 // full spiral span out to the header radius
	if got := clip.PreloadAround(ctx, EvalSource, 100, pol); got != want {
		t.Fatalf("requested = %d, want %d", got, want)
	}

	// Decode span frames are claimed; ring frames sit as unclaimed
	// placeholders until their probes land.
	for _, frame := range []int64{99, 100, 101} {
		f, ok := cache.Peek(clip.ID(), EvalSource, frame)
		if !ok || f.Status() != StatusLoading {
			t.Fatalf("decode-span frame %d not claimed", frame)
		}
	}
	for _, frame := range []int64{98, 102, 97, 103} {
		f, ok := cache.Peek(clip.ID(), EvalSource, frame)
		if !ok || f.Status() != StatusPlaceholder {
			t.Fatalf("ring frame %d not a placeholder", frame)
		}
	}

	waitUntil(t, func() bool {
		st := pool.Stats()
		return st.Decoded == 3 && st.Probed == 4
	})

	// Re-running the pass schedules nothing new.
	clip.PreloadAround(ctx, EvalSource, 100, pol)
	waitUntil(t, func() bool { return pool.Stats().Queued == 0 })
	if st := pool.Stats(); st.Decoded != 3 || st.Probed != 4 {
		t.Errorf("second pass scheduled work: %+v", st)
	}
}

func TestPreloadAroundSkipsProbesWithoutPool(t *testing.T) {
	fx := newEvalFixture()
	clip := fx.proj.NewSource("clip", SourceRef{Path: "clip.%04d.png"}, 0, 100)
	fx.tick()

	pol := PreloadPolicy{Radius: 1, HeaderRadius: 5}
	if got := clip.PreloadAround(fx.ctx, EvalSource, 10, pol); got != 3 {
		t.Fatalf("requested = %d, want 3", got)
	}
	if fx.proj.Cache().Contains(clip.ID(), EvalSource, 13) {
		t.Error("synchronous pass planted a probe placeholder")
	}
}
