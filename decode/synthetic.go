package decode

import (
	"time"

	"github.com/gogpu/flipbook"
)

// Pattern computes the color of one pixel of one synthetic frame.
type Pattern interface {
	// ColorAt returns the color at the given pixel for a frame.
	ColorAt(x, y int, frame int64) (r, g, b, a uint8)
}

// Synthetic renders frames procedurally instead of reading the disk. It
// stands in for real footage in demos, benchmarks and tests; an optional
// per-frame latency makes background loading visible.
//
// Safe for concurrent use.
type Synthetic struct {
	width   int
	height  int
	pat     Pattern
	latency time.Duration
}

// NewSynthetic creates a synthetic source of the given frame size. A nil
// pattern falls back to the sliding checkerboard.
func NewSynthetic(width, height int, pat Pattern) *Synthetic {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if pat == nil {
		pat = Checker{}
	}
	return &Synthetic{width: width, height: height, pat: pat}
}

// WithLatency makes every Decode take at least d, imitating slow media.
// Returns the decoder for chaining.
func (s *Synthetic) WithLatency(d time.Duration) *Synthetic {
	s.latency = d
	return s
}

// Probe reports the configured frame size. Probing is always instant.
func (s *Synthetic) Probe(src flipbook.SourceRef, frame int64) (flipbook.Header, error) {
	return flipbook.Header{Width: s.width, Height: s.height}, nil
}

// Decode renders one frame.
func (s *Synthetic) Decode(src flipbook.SourceRef, frame int64) (*flipbook.Pixmap, error) {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	p := flipbook.NewPixmap(s.width, s.height)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			r, g, b, a := s.pat.ColorAt(x, y, frame)
			p.SetRGBA(x, y, r, g, b, a)
		}
	}
	return p, nil
}

// Checker alternates two grays on a square grid that slides one cell per
// frame, so playback is visibly in motion. The zero value uses 16 pixel
// cells.
type Checker struct {
	// Cell is the square size in pixels; values below 1 become 16.
	Cell int
}

// ColorAt implements Pattern.
func (c Checker) ColorAt(x, y int, frame int64) (r, g, b, a uint8) {
	cell := c.Cell
	if cell < 1 {
		cell = 16
	}
	cx := (int64(x) + frame*int64(cell)) / int64(cell)
	cy := int64(y) / int64(cell)
	if (cx+cy)%2 == 0 {
		return 200, 200, 200, 255
	}
	return 55, 55, 55, 255
}

// Ramp sweeps a horizontal gray ramp whose origin advances with the frame
// index. The red channel carries the frame number modulo 256, which makes
// individual frames easy to tell apart in tests.
type Ramp struct{}

// ColorAt implements Pattern.
func (Ramp) ColorAt(x, y int, frame int64) (r, g, b, a uint8) {
	v := uint8((int64(x) + frame) & 0xFF)
	return uint8(frame & 0xFF), v, v, 255
}
