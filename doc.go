// Package flipbook provides the frame cache and composition engine for a
// desktop review player.
//
// # Overview
//
// flipbook loads frame sequences, composes multi-layer timelines and keeps
// computed frames in a single global cache under a strict memory budget. It
// is the in-process core a viewport sits on top of: evaluation never blocks
// on decode, background loads are cancelled by epoch comparison when the
// user scrubs or edits, and stale results are invalidated through per-entity
// dirty flags.
//
// # Quick Start
//
//	import "github.com/gogpu/flipbook"
//
//	player, _ := flipbook.NewPlayer(
//	    flipbook.WithDecoder(dec),
//	    flipbook.WithBudgetBytes(512<<20),
//	)
//	defer player.Close()
//
//	proj := player.Project()
//	clip := proj.NewSource("plate", flipbook.SourceRef{Path: "plate.%04d.png"}, 0, 100)
//	comp := proj.NewComp("main", 1920, 1080, 0, 100)
//	proj.AddLayer(comp.ID(), clip.ID(), flipbook.EvalSource)
//
//	player.SetActive(comp.ID(), flipbook.EvalComposite)
//	frame := player.Tick(0) // per UI tick; never blocks on decode
//
// # Architecture
//
// The library is organized into:
//   - Public API: Player, Project, Node, FrameCache, Budget, DecodePool
//   - Internal: blend (premultiplied compositing), seq (sequence scanning)
//   - Subpackages: decode (file/synthetic decoders), flipfile (project files)
//
// # Threading Model
//
// One goroutine (the compute owner, usually the UI loop) owns the cache,
// all evaluation and all attribute mutation. Decode work runs on a fixed
// worker pool; completed pixel buffers come back over a channel and are
// applied on the owning goroutine. Position changes and edits bump a shared
// epoch counter; in-flight jobs tagged with an older epoch are discarded at
// execution and again at application time.
package flipbook

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 2

	// VersionPatch is the patch version
	VersionPatch = 0
)
