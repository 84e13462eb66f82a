package flipbook

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gogpu/flipbook/internal/seq"
)

// WatchSource observes the directory behind a footage node and marks the
// node stale when frames appear, vanish or get rewritten, the way renders
// land while a review is running. The next Tick picks the change up: dirty
// marking and the epoch bump are atomic and safe from the watcher's
// goroutine, unlike structural edits.
//
// Close the returned watcher before closing the player.
func (p *Player) WatchSource(id NodeID) (io.Closer, error) {
	node := p.proj.Node(id)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	src := node.Source()
	if src.IsZero() {
		return nil, fmt.Errorf("flipbook: node %q has no source to watch", node.Name())
	}

	return seq.Watch(filepath.Dir(src.Path), 0, func() {
		node.Attrs().MarkDirty()
		p.budget.BumpEpoch()
	})
}
