package flipbook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPlayerWatchSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plate.0001.png"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	dec := newRecordingDecoder()
	player, err := NewPlayer(WithDecoder(dec), WithWorkers(0), WithPreload(PreloadPolicy{}))
	if err != nil {
		t.Fatal(err)
	}
	defer player.Close()

	clip := player.Project().NewSource("plate",
		SourceRef{Path: filepath.Join(dir, "plate.%04d.png")}, 0, 100)
	clip.Attrs().clearDirty()

	w, err := player.WatchSource(clip.ID())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	before := player.Budget().Epoch()
	if err := os.WriteFile(filepath.Join(dir, "plate.0002.png"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitUntil(t, func() bool {
		return clip.Attrs().IsDirty() && player.Budget().Epoch() > before
	})
}

func TestPlayerWatchSourceErrors(t *testing.T) {
	player, err := NewPlayer()
	if err != nil {
		t.Fatal(err)
	}
	defer player.Close()

	if _, err := player.WatchSource(newNodeID()); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("unknown node err = %v", err)
	}
	comp := player.Project().NewComp("main", 8, 8, 0, 10)
	if _, err := player.WatchSource(comp.ID()); err == nil {
		t.Error("watching a sourceless comp succeeded")
	}
}
