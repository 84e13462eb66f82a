package flipbook

import "runtime"

// PlayerOption configures a Player during creation.
// Use functional options to customize Player behavior.
//
// Example:
//
//	// Background decoding with the default half-gigabyte cache
//	player, _ := flipbook.NewPlayer(flipbook.WithDecoder(dec))
//
//	// Budget derived from installed memory instead of a fixed ceiling
//	player, _ := flipbook.NewPlayer(
//	    flipbook.WithDecoder(dec),
//	    flipbook.WithBudgetFraction(0.5, 2<<30),
//	)
type PlayerOption func(*playerOptions)

// playerOptions holds optional configuration for Player creation.
type playerOptions struct {
	decoder       Decoder
	workers       int
	budgetBytes   int64
	budgetFrac    float64
	reservedBytes uint64
	preload       PreloadPolicy
	scratchCap    int
}

// defaultPlayerOptions returns the default player options.
func defaultPlayerOptions() playerOptions {
	return playerOptions{
		workers:    defaultWorkerCount(),
		preload:    DefaultPreloadPolicy,
		scratchCap: 8,
	}
}

// defaultWorkerCount sizes the decode pool at half the logical cores, two
// at minimum. The other half stays with the UI loop and whatever consumes
// the decoded frames.
func defaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0) / 2
	if n < 2 {
		n = 2
	}
	return n
}

// WithDecoder sets the decoder used for footage frames. Without one, leaf
// evaluation fails with ErrNoDecoder; composites of already loaded frames
// still work.
//
// Example:
//
//	dec := decode.NewFiles()
//	player, _ := flipbook.NewPlayer(flipbook.WithDecoder(dec))
func WithDecoder(d Decoder) PlayerOption {
	return func(o *playerOptions) {
		o.decoder = d
	}
}

// WithWorkers sets the decode pool size. Zero or negative disables the pool
// entirely: decodes then run inline on the calling goroutine and Tick
// blocks until pixels exist, which is the right trade for batch rendering
// and tests.
func WithWorkers(n int) PlayerOption {
	return func(o *playerOptions) {
		o.workers = n
	}
}

// WithBudgetBytes fixes the cache ceiling at an absolute byte count.
//
// Example:
//
//	player, _ := flipbook.NewPlayer(flipbook.WithBudgetBytes(512 << 20))
func WithBudgetBytes(n int64) PlayerOption {
	return func(o *playerOptions) {
		o.budgetBytes = n
	}
}

// WithBudgetFraction derives the cache ceiling from installed physical
// memory: (total - reservedBytes) * fraction, with fraction clamped to
// [0.05, 0.95]. WithBudgetBytes wins when both are given.
func WithBudgetFraction(fraction float64, reservedBytes uint64) PlayerOption {
	return func(o *playerOptions) {
		o.budgetFrac = fraction
		o.reservedBytes = reservedBytes
	}
}

// WithPreload sets how far each tick reaches around the playhead. Defaults
// to DefaultPreloadPolicy.
//
// Example:
//
//	// One second of decodes ahead at film rate, probes four seconds out
//	player, _ := flipbook.NewPlayer(
//	    flipbook.WithDecoder(dec),
//	    flipbook.WithPreload(flipbook.PreloadPolicy{Radius: 24, HeaderRadius: 96}),
//	)
func WithPreload(pol PreloadPolicy) PlayerOption {
	return func(o *playerOptions) {
		o.preload = pol
	}
}
