package flipbook

import (
	"fmt"
	"log/slog"
)

// Player drives playback of one active composition. It owns the project,
// the global frame cache, the memory budget and the decode pool, and runs
// the per-tick cycle: apply finished decodes, evaluate the playhead frame,
// top up the preload.
//
// Thread safety: all methods belong to one goroutine, the compute owner.
// Worker results cross into that goroutine only inside Tick; the workers
// themselves never touch the cache.
type Player struct {
	proj    *Project
	cache   *FrameCache
	budget  *Budget
	pool    *DecodePool
	decoder Decoder
	scratch *PixmapPool
	preload PreloadPolicy

	active     NodeID
	activeMode EvalMode
	playhead   int64

	closed bool
}

// NewPlayer assembles a player from options. The zero configuration plays
// nothing useful but is valid; supply at least WithDecoder for footage.
func NewPlayer(opts ...PlayerOption) (*Player, error) {
	o := defaultPlayerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.budgetBytes < 0 {
		return nil, fmt.Errorf("flipbook: budget ceiling %d bytes is negative", o.budgetBytes)
	}

	budget := NewBudget()
	switch {
	case o.budgetBytes > 0:
		budget.SetCeiling(o.budgetBytes)
	case o.budgetFrac > 0:
		budget.Configure(o.budgetFrac, o.reservedBytes)
	}

	cache := NewFrameCache(budget)
	p := &Player{
		proj:    NewProject(cache),
		cache:   cache,
		budget:  budget,
		decoder: o.decoder,
		scratch: NewPixmapPool(o.scratchCap),
		preload: o.preload.normalized(),
	}
	if o.decoder != nil && o.workers > 0 {
		p.pool = NewDecodePool(o.workers, o.decoder, budget)
	}
	return p, nil
}

// Project returns the composition graph this player evaluates. Edits made
// through it invalidate cached frames and strand in-flight work on their
// own; no player call is needed afterwards.
func (p *Player) Project() *Project { return p.proj }

// Cache returns the global frame cache.
func (p *Player) Cache() *FrameCache { return p.cache }

// Budget returns the memory budget and epoch counter.
func (p *Player) Budget() *Budget { return p.budget }

// Active reports the node and mode the player currently serves.
func (p *Player) Active() (NodeID, EvalMode) { return p.active, p.activeMode }

// Playhead reports the frame index of the last Tick or Seek.
func (p *Player) Playhead() int64 { return p.playhead }

// SetActive selects the composition and mode the player serves. Switching
// views abandons decodes queued for the previous one.
func (p *Player) SetActive(id NodeID, mode EvalMode) {
	if p.active == id && p.activeMode == mode {
		return
	}
	p.active = id
	p.activeMode = mode
	p.budget.BumpEpoch()
}

// Tick runs one player cycle at the given playhead position: finished
// decodes are applied to the cache, the active node is evaluated, and the
// preloader schedules work around the position. The returned frame is the
// best result available right now, in whatever status it has; callers poll
// it on later ticks. Nil means no active node, or a position outside its
// range.
//
// Sequential ticks are playback, not seeks: they keep queued preloads
// valid. Use Seek for jumps.
func (p *Player) Tick(frame int64) *Frame {
	if p.closed {
		return nil
	}
	p.playhead = frame
	p.applyCompletions()

	node := p.proj.Node(p.active)
	if node == nil {
		return nil
	}
	ctx := p.evalContext()
	out := node.Evaluate(ctx, p.activeMode, frame)
	node.PreloadAround(ctx, p.activeMode, frame, p.preload)
	return out
}

// Seek jumps the playhead and runs a tick there. The jump bumps the epoch
// exactly once, so every decode and probe queued for the old position is
// dropped at execution or application time. Seeking to the current
// position does not bump.
func (p *Player) Seek(frame int64) *Frame {
	if p.closed {
		return nil
	}
	if frame != p.playhead {
		p.budget.BumpEpoch()
	}
	return p.Tick(frame)
}

// evalContext snapshots the collaborators for one tick. The epoch is read
// once here; everything the tick schedules carries it.
func (p *Player) evalContext() *EvalContext {
	return &EvalContext{
		Project: p.proj,
		Cache:   p.cache,
		Pool:    p.pool,
		Decoder: p.decoder,
		Scratch: p.scratch,
		Epoch:   p.budget.Epoch(),
	}
}

// applyCompletions drains the pool's result channel without blocking and
// folds finished work into the cache. Returns the number of results that
// landed.
func (p *Player) applyCompletions() int {
	if p.pool == nil {
		return 0
	}
	applied := 0
	for {
		select {
		case res, ok := <-p.pool.completions:
			if !ok {
				return applied
			}
			if p.applyResult(res) {
				applied++
			}
		default:
			return applied
		}
	}
}

// applyResult lands one worker result. The epoch gates stale work a second
// time here: a job can start before a bump and finish after it. The frame
// identity check handles the other race, a cache slot that moved on to a
// superseding claim while the job ran.
func (p *Player) applyResult(res decodeResult) bool {
	if res.epoch != p.budget.Epoch() {
		Logger().Debug("flipbook: decode result stale, dropped",
			slog.String("node", res.key.node.String()),
			slog.Int64("frame", res.key.frame),
			slog.Uint64("result_epoch", res.epoch))
		return false
	}
	cur, ok := p.cache.Peek(res.key.node, res.key.mode, res.key.frame)
	if !ok || cur != res.frame {
		Logger().Debug("flipbook: decode result superseded, dropped",
			slog.String("node", res.key.node.String()),
			slog.Int64("frame", res.key.frame))
		return false
	}

	if res.headerOnly {
		if res.err != nil {
			// A failed probe leaves the placeholder untouched; the full
			// decode will report the real error if playback gets there.
			return false
		}
		return res.frame.MarkHeaderKnown(res.header)
	}
	if res.err != nil {
		return res.frame.MarkError(res.err)
	}
	if !res.frame.MarkLoaded(res.pix) {
		return false
	}
	// Reinsert so the budget sees the real pixel size.
	p.cache.Insert(res.key.node, res.key.mode, res.key.frame, res.frame)
	return true
}

// DecodeStats reports the pool's counters. Zero without a pool.
func (p *Player) DecodeStats() DecodeStats {
	if p.pool == nil {
		return DecodeStats{}
	}
	return p.pool.Stats()
}

// CacheStats reports cache usage and hit rates.
func (p *Player) CacheStats() CacheStats {
	return p.cache.Stats()
}

// Close shuts the decode pool down and empties the cache. Pending jobs are
// abandoned. Close is idempotent; the player serves nothing afterwards.
func (p *Player) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.pool != nil {
		p.pool.Close()
	}
	p.cache.Clear()
	return nil
}
