package seq

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports when a sequence directory's content changes. Events are
// debounced and checked against a listing fingerprint, so a burst of
// writes from a renderer dropping frames collapses into one notification
// and touch-only noise produces none.
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}

	mu   sync.Mutex
	last uint64

	closeOnce sync.Once
}

// Watch observes dir and calls onChange after its file listing settles
// into a new state. The callback runs on the watcher's own goroutine and
// must be safe to call from there; debounce <= 0 selects a default.
func Watch(dir string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	w.last, _ = Fingerprint(dir)
	go w.loop(dir, debounce, onChange)
	return w, nil
}

func (w *Watcher) loop(dir string, debounce time.Duration, onChange func()) {
	var timer *time.Timer
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				w.settle(dir, onChange)
			})

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// settle re-fingerprints the directory and notifies when it really moved.
func (w *Watcher) settle(dir string, onChange func()) {
	cur, err := Fingerprint(dir)
	if err != nil {
		return
	}
	w.mu.Lock()
	changed := cur != w.last
	w.last = cur
	w.mu.Unlock()
	if changed {
		onChange()
	}
}

// Close stops watching. Idempotent; a debounced notification already in
// flight may still fire once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
