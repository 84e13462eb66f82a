package flipbook

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFrameInitialStatus(t *testing.T) {
	f := NewFrame(SourceRef{Path: "shot.%04d.png"}, 3)
	if f.Status() != StatusPlaceholder {
		t.Errorf("new frame status = %v, want placeholder", f.Status())
	}
	if f.Pixels() != nil {
		t.Error("new frame should have no pixels")
	}
	if f.Composed() {
		t.Error("source frame reported Composed")
	}
	if f.LocalIndex() != 3 {
		t.Errorf("LocalIndex() = %d, want 3", f.LocalIndex())
	}
}

func TestFrameStatusString(t *testing.T) {
	tests := []struct {
		s    FrameStatus
		want string
	}{
		{StatusPlaceholder, "placeholder"},
		{StatusHeaderKnown, "header-known"},
		{StatusLoading, "loading"},
		{StatusLoaded, "loaded"},
		{StatusError, "error"},
		{FrameStatus(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("FrameStatus(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestFrameLifecycle(t *testing.T) {
	f := NewFrame(SourceRef{Path: "a.png"}, 0)

	if !f.MarkHeaderKnown(Header{Width: 10, Height: 20}) {
		t.Fatal("MarkHeaderKnown from placeholder should succeed")
	}
	if f.Status() != StatusHeaderKnown {
		t.Fatalf("status = %v, want header-known", f.Status())
	}
	if h := f.Header(); h.Width != 10 || h.Height != 20 {
		t.Errorf("Header() = %+v, want 10x20", h)
	}

	if !f.TryClaimLoading(7) {
		t.Fatal("claim from header-known should succeed")
	}
	if f.ClaimEpoch() != 7 {
		t.Errorf("ClaimEpoch() = %d, want 7", f.ClaimEpoch())
	}
	if f.TryClaimLoading(8) {
		t.Error("second claim should lose")
	}

	pix := NewPixmap(10, 20)
	if !f.MarkLoaded(pix) {
		t.Fatal("MarkLoaded from loading should succeed")
	}
	if f.Status() != StatusLoaded || f.Pixels() != pix {
		t.Error("loaded frame should expose its pixels")
	}

	// Terminal states are sticky.
	if f.MarkError(errors.New("late failure")) {
		t.Error("MarkError after Loaded should be rejected")
	}
	if f.MarkLoaded(NewPixmap(1, 1)) {
		t.Error("second MarkLoaded should be rejected")
	}
	if f.Pixels() != pix {
		t.Error("rejected transitions must not replace pixels")
	}
}

func TestFrameClaimFromPlaceholder(t *testing.T) {
	f := NewFrame(SourceRef{Path: "a.png"}, 0)
	if !f.TryClaimLoading(1) {
		t.Fatal("claim straight from placeholder should succeed")
	}
	if f.Status() != StatusLoading {
		t.Errorf("status = %v, want loading", f.Status())
	}
}

func TestFrameError(t *testing.T) {
	f := NewFrame(SourceRef{Path: "missing.png"}, 0)
	cause := errors.New("flipbook: decode: no such file")
	if !f.MarkError(cause) {
		t.Fatal("MarkError should succeed on a placeholder")
	}
	if f.Status() != StatusError {
		t.Errorf("status = %v, want error", f.Status())
	}
	if !errors.Is(f.Err(), cause) {
		t.Errorf("Err() = %v, want recorded cause", f.Err())
	}
	if f.TryClaimLoading(2) {
		t.Error("claim on an errored frame should lose")
	}
}

// TestFrameClaimRace drives many goroutines at one frame; exactly one may
// win the loading claim.
func TestFrameClaimRace(t *testing.T) {
	const racers = 64
	for range 50 {
		f := NewFrame(SourceRef{Path: "contended.png"}, 0)
		f.MarkHeaderKnown(Header{Width: 1, Height: 1})

		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if f.TryClaimLoading(1) {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins.Load() != 1 {
			t.Fatalf("claim winners = %d, want exactly 1", wins.Load())
		}
		if f.Status() != StatusLoading {
			t.Fatalf("status after race = %v, want loading", f.Status())
		}
	}
}

func TestFrameByteSize(t *testing.T) {
	f := NewFrame(SourceRef{Path: "a.png"}, 0)
	if f.ByteSize() != frameOverheadBytes {
		t.Errorf("placeholder ByteSize = %d, want %d", f.ByteSize(), frameOverheadBytes)
	}

	f.MarkLoaded(NewPixmap(100, 50))
	if f.ByteSize() != 100*50*4 {
		t.Errorf("loaded ByteSize = %d, want %d", f.ByteSize(), 100*50*4)
	}
}

func TestFrameTerminal(t *testing.T) {
	tests := []struct {
		s    FrameStatus
		want bool
	}{
		{StatusPlaceholder, false},
		{StatusHeaderKnown, false},
		{StatusLoading, false},
		{StatusLoaded, true},
		{StatusError, true},
	}
	for _, tt := range tests {
		if got := tt.s.Terminal(); got != tt.want {
			t.Errorf("%v.Terminal() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestComposedFrame(t *testing.T) {
	pix := NewPixmap(4, 4)

	done := newComposedFrame(pix, true)
	if done.Status() != StatusLoaded || !done.Composed() {
		t.Error("complete composed frame should be loaded and composed")
	}
	if !done.Source().IsZero() {
		t.Error("composed frame should have a zero source ref")
	}

	partial := newComposedFrame(pix, false)
	if partial.Status() != StatusLoading {
		t.Errorf("partial composite status = %v, want loading", partial.Status())
	}
	if partial.Pixels() != pix {
		t.Error("partial composite should still expose its accumulator")
	}
}
