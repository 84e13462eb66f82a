// Package decode provides ready-made Decoder implementations for the
// flipbook player: frame sequences and still images through Go's image
// ecosystem, and synthetic test patterns for demos and benchmarks.
package decode

import (
	"fmt"
	"image"
	"os"

	// Registered file formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/flipbook"
	"github.com/gogpu/flipbook/internal/seq"
)

// Files decodes footage from disk. Sequence refs name their frames with a
// printf-style or hash-run pattern ("plate.%04d.exr", "plate.####.png");
// a plain path is a still image served for every frame. Video refs need an
// external decoder and are rejected here.
//
// Safe for concurrent use from any number of workers.
type Files struct{}

// NewFiles returns the file decoder.
func NewFiles() *Files { return &Files{} }

// framePath resolves the file carrying one local frame index.
func framePath(src flipbook.SourceRef, frame int64) string {
	if pat, ok := seq.ParsePattern(src.Path); ok {
		return pat.Format(src.First + frame)
	}
	return src.Path
}

// Probe reads only the image header.
func (d *Files) Probe(src flipbook.SourceRef, frame int64) (flipbook.Header, error) {
	if src.Video {
		return flipbook.Header{}, fmt.Errorf("decode: video source %q needs an external decoder", src.Path)
	}
	path := framePath(src, frame)
	f, err := os.Open(path)
	if err != nil {
		return flipbook.Header{}, fmt.Errorf("decode: frame %d: %w", frame, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return flipbook.Header{}, fmt.Errorf("decode: probing %s: %w", path, err)
	}
	return flipbook.Header{Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode loads and converts one frame.
func (d *Files) Decode(src flipbook.SourceRef, frame int64) (*flipbook.Pixmap, error) {
	if src.Video {
		return nil, fmt.Errorf("decode: video source %q needs an external decoder", src.Path)
	}
	path := framePath(src, frame)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: frame %d: %w", frame, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: reading %s: %w", path, err)
	}
	return flipbook.FromImage(img), nil
}
