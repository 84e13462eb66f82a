package flipbook

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// Decoder turns source references into frame pixels. Implementations live
// in the decode package; anything that can map a source-local index to an
// image satisfies it.
//
// Both methods run on worker goroutines and must be safe for concurrent
// use.
type Decoder interface {
	// Probe returns the frame's header without decoding pixels.
	Probe(src SourceRef, frame int64) (Header, error)
	// Decode returns the frame's pixels.
	Decode(src SourceRef, frame int64) (*Pixmap, error)
}

// frameKey names one cache slot: a composition, an evaluation mode, and a
// frame index.
type frameKey struct {
	node  NodeID
	mode  EvalMode
	frame int64
}

// decodeJob is one unit of background work: decode, or just probe, one
// source frame on behalf of a cached entry.
type decodeJob struct {
	key        frameKey
	frame      *Frame
	src        SourceRef
	local      int64
	epoch      uint64
	headerOnly bool
}

// decodeResult carries a finished job back to the owning goroutine. The
// owner validates the epoch and the frame identity before applying it;
// workers never touch the cache or frame state themselves.
type decodeResult struct {
	key        frameKey
	frame      *Frame
	epoch      uint64
	headerOnly bool
	header     Header
	pix        *Pixmap
	err        error
}

// DecodeStats is a snapshot of decode pool counters.
type DecodeStats struct {
	// Decoded is the number of frames decoded successfully.
	Decoded uint64
	// Probed is the number of headers probed successfully.
	Probed uint64
	// Failed is the number of jobs whose decode or probe errored.
	Failed uint64
	// StaleSkipped is the number of jobs dropped because the project
	// changed between submission and execution.
	StaleSkipped uint64
	// Queued is the approximate number of jobs waiting in worker queues.
	Queued int
}

// DecodePool runs frame decodes on a set of worker goroutines.
//
// Each worker has its own queue and steals from the others when idle, so a
// few slow frames do not stall the rest. Before executing a job a worker
// compares the job's epoch against the shared budget's current one and
// drops jobs from a project state that no longer exists. Results flow back
// over a buffered completion channel that the owning goroutine drains.
//
// Thread safety: DecodePool is safe for concurrent use.
type DecodePool struct {
	workers int
	queues  []chan decodeJob

	// completions carries finished jobs back to the owner. Closed after
	// the last worker exits.
	completions chan decodeResult

	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	decoder Decoder
	budget  *Budget

	decoded      atomic.Uint64
	probed       atomic.Uint64
	failed       atomic.Uint64
	staleSkipped atomic.Uint64
}

// NewDecodePool starts a pool with the given worker count. If workers is 0
// or negative, GOMAXPROCS is used. The budget supplies the epoch that
// stale jobs are detected against.
func NewDecodePool(workers int, decoder Decoder, budget *Budget) *DecodePool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if budget == nil {
		budget = NewBudget()
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &DecodePool{
		workers:     workers,
		queues:      make([]chan decodeJob, workers),
		completions: make(chan decodeResult, workers*queueSize),
		done:        make(chan struct{}),
		decoder:     decoder,
		budget:      budget,
	}
	for i := range workers {
		p.queues[i] = make(chan decodeJob, queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *DecodePool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.queues[id]

	for {
		select {
		case <-p.done:
			// Pending jobs are abandoned; a closing player has no use
			// for their results.
			return

		case job := <-myQueue:
			p.run(job)

		default:
			if job, ok := p.steal(id); ok {
				p.run(job)
			} else {
				select {
				case <-p.done:
					return
				case job := <-myQueue:
					p.run(job)
				}
			}
		}
	}
}

// steal attempts to take a job from another worker's queue.
func (p *DecodePool) steal(myID int) (decodeJob, bool) {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job, true
		default:
		}
	}
	return decodeJob{}, false
}

// run executes one job and reports its result. Jobs whose epoch predates
// the budget's current one are dropped before any decode work happens.
func (p *DecodePool) run(job decodeJob) {
	if job.epoch != p.budget.Epoch() {
		p.staleSkipped.Add(1)
		Logger().Debug("flipbook: decode job stale, skipped",
			slog.String("path", job.src.Path),
			slog.Int64("frame", job.key.frame),
			slog.Uint64("job_epoch", job.epoch))
		return
	}

	res := decodeResult{
		key:        job.key,
		frame:      job.frame,
		epoch:      job.epoch,
		headerOnly: job.headerOnly,
	}
	if job.headerOnly {
		res.header, res.err = p.decoder.Probe(job.src, job.local)
		if res.err != nil {
			p.failed.Add(1)
			Logger().Debug("flipbook: header probe failed",
				slog.String("path", job.src.Path),
				slog.Int64("frame", job.local),
				slog.String("error", res.err.Error()))
		} else {
			p.probed.Add(1)
		}
	} else {
		res.pix, res.err = p.decoder.Decode(job.src, job.local)
		if res.err != nil {
			p.failed.Add(1)
			Logger().Warn("flipbook: decode failed",
				slog.String("path", job.src.Path),
				slog.Int64("frame", job.local),
				slog.String("error", res.err.Error()))
		} else {
			p.decoded.Add(1)
		}
	}

	select {
	case p.completions <- res:
	case <-p.done:
	}
}

// submit queues one job on the worker with the shortest queue. Closed
// pools ignore submissions.
func (p *DecodePool) submit(job decodeJob) {
	if !p.running.Load() {
		return
	}

	minLen := len(p.queues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.queues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	select {
	case p.queues[minIdx] <- job:
	case <-p.done:
	}
}

// Close stops the pool. Queued jobs are dropped, in-flight ones finish,
// and the completion channel is closed once the last worker exits. Close
// is safe to call multiple times.
func (p *DecodePool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
	close(p.completions)
}

// Workers returns the number of worker goroutines.
func (p *DecodePool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool is accepting work.
func (p *DecodePool) IsRunning() bool {
	return p.running.Load()
}

// Stats returns a snapshot of the pool counters. The queue depth is an
// approximation since workers pull concurrently.
func (p *DecodePool) Stats() DecodeStats {
	queued := 0
	for _, q := range p.queues {
		queued += len(q)
	}
	return DecodeStats{
		Decoded:      p.decoded.Load(),
		Probed:       p.probed.Load(),
		Failed:       p.failed.Load(),
		StaleSkipped: p.staleSkipped.Load(),
		Queued:       queued,
	}
}
