package flipbook

import "testing"

func TestDefaultPlayerOptions(t *testing.T) {
	o := defaultPlayerOptions()
	if o.workers < 2 {
		t.Errorf("default workers = %d, want at least 2", o.workers)
	}
	if o.preload != DefaultPreloadPolicy {
		t.Errorf("default preload = %+v", o.preload)
	}
	if o.decoder != nil {
		t.Error("default decoder is not nil")
	}
	if o.scratchCap < 1 {
		t.Errorf("default scratch capacity = %d", o.scratchCap)
	}
}

func TestPlayerOptionsApply(t *testing.T) {
	dec := &countingDecoder{}
	pol := PreloadPolicy{Radius: 3, HeaderRadius: 9}

	o := defaultPlayerOptions()
	for _, opt := range []PlayerOption{
		WithDecoder(dec),
		WithWorkers(7),
		WithBudgetBytes(128 << 20),
		WithBudgetFraction(0.5, 1<<30),
		WithPreload(pol),
	} {
		opt(&o)
	}

	if o.decoder != Decoder(dec) {
		t.Error("decoder not applied")
	}
	if o.workers != 7 {
		t.Errorf("workers = %d, want 7", o.workers)
	}
	if o.budgetBytes != 128<<20 {
		t.Errorf("budgetBytes = %d", o.budgetBytes)
	}
	if o.budgetFrac != 0.5 || o.reservedBytes != 1<<30 {
		t.Errorf("fraction = %v reserved = %d", o.budgetFrac, o.reservedBytes)
	}
	if o.preload != pol {
		t.Errorf("preload = %+v, want %+v", o.preload, pol)
	}
}

func TestWithWorkersDisablesPool(t *testing.T) {
	p, err := NewPlayer(WithDecoder(&countingDecoder{}), WithWorkers(0))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if got := p.DecodeStats(); got != (DecodeStats{}) {
		t.Errorf("poolless player reports decode stats %+v", got)
	}

	// Inline decoding settles in one tick.
	clip := p.Project().NewSource("clip", SourceRef{Path: "clip.%d.png"}, 0, 10)
	p.SetActive(clip.ID(), EvalSource)
	f := p.Tick(3)
	if f == nil {
		t.Fatal("tick returned no frame")
	}
	if f.Status() != StatusLoaded {
		t.Fatalf("inline tick status = %v, want loaded", f.Status())
	}
}
