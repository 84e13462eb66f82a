package flipbook

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/gogpu/gputypes"
)

// Pixmap is a rectangular pixel buffer holding premultiplied RGBA8 data.
//
// Premultiplied alpha is the convention for every buffer that flows through
// the frame pipeline: decoded sources are converted on ingest, composites
// blend premultiplied bytes directly, and the GPU upload collaborator
// receives the data as [gputypes.TextureFormatRGBA8Unorm] without further
// conversion.
type Pixmap struct {
	width  int
	height int
	data   []uint8 // premultiplied RGBA, 4 bytes per pixel, rows tightly packed
}

// NewPixmap creates a transparent pixmap with the given dimensions.
// Dimensions smaller than 1 are clamped to 1.
func NewPixmap(width, height int) *Pixmap {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Pixmap{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// Width returns the width of the pixmap in pixels.
func (p *Pixmap) Width() int {
	return p.width
}

// Height returns the height of the pixmap in pixels.
func (p *Pixmap) Height() int {
	return p.height
}

// Stride returns the number of bytes per row.
func (p *Pixmap) Stride() int {
	return p.width * 4
}

// Data returns the raw premultiplied RGBA pixel data.
func (p *Pixmap) Data() []uint8 {
	return p.data
}

// Row returns the byte slice for one row of pixels.
func (p *Pixmap) Row(y int) []uint8 {
	start := y * p.Stride()
	return p.data[start : start+p.Stride()]
}

// SizeBytes returns the resident size of the pixel data.
func (p *Pixmap) SizeBytes() int64 {
	return int64(len(p.data))
}

// Format returns the texture format of the pixel data for the GPU upload
// path. Always [gputypes.TextureFormatRGBA8Unorm].
func (p *Pixmap) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// SetRGBA sets a single pixel. Values are premultiplied bytes.
// Out-of-bounds coordinates are ignored.
func (p *Pixmap) SetRGBA(x, y int, r, g, b, a uint8) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	i := (y*p.width + x) * 4
	p.data[i+0] = r
	p.data[i+1] = g
	p.data[i+2] = b
	p.data[i+3] = a
}

// RGBA returns a single pixel as premultiplied bytes.
// Out-of-bounds coordinates return transparent black.
func (p *Pixmap) RGBA(x, y int) (r, g, b, a uint8) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return 0, 0, 0, 0
	}
	i := (y*p.width + x) * 4
	return p.data[i+0], p.data[i+1], p.data[i+2], p.data[i+3]
}

// Fill sets every pixel to the given premultiplied color.
func (p *Pixmap) Fill(r, g, b, a uint8) {
	for i := 0; i < len(p.data); i += 4 {
		p.data[i+0] = r
		p.data[i+1] = g
		p.data[i+2] = b
		p.data[i+3] = a
	}
}

// Clear resets every pixel to transparent black.
func (p *Pixmap) Clear() {
	clear(p.data)
}

// Clone returns a deep copy of the pixmap.
func (p *Pixmap) Clone() *Pixmap {
	out := &Pixmap{
		width:  p.width,
		height: p.height,
		data:   make([]uint8, len(p.data)),
	}
	copy(out.data, p.data)
	return out
}

// ToImage converts the pixmap to an image.RGBA (premultiplied, matching
// the standard library convention for that type).
func (p *Pixmap) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	if img.Stride == p.Stride() {
		copy(img.Pix, p.data)
		return img
	}
	for y := range p.height {
		copy(img.Pix[y*img.Stride:], p.Row(y))
	}
	return img
}

// FromImage creates a pixmap from a standard library image.
//
// *image.RGBA is copied directly (already premultiplied). *image.NRGBA is
// premultiplied row by row. Anything else goes through the generic At path,
// which is slow but correct for every image type.
func FromImage(img image.Image) *Pixmap {
	bounds := img.Bounds()
	pm := NewPixmap(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.RGBA:
		if src.Stride == pm.Stride() && bounds.Min == (image.Point{}) {
			copy(pm.data, src.Pix)
			return pm
		}
		for y := range pm.height {
			start := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(pm.Row(y), src.Pix[start:start+pm.Stride()])
		}
		return pm

	case *image.NRGBA:
		for y := range pm.height {
			start := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			srow := src.Pix[start : start+pm.Stride()]
			drow := pm.Row(y)
			for x := 0; x < len(drow); x += 4 {
				a := srow[x+3]
				drow[x+0] = premul(srow[x+0], a)
				drow[x+1] = premul(srow[x+1], a)
				drow[x+2] = premul(srow[x+2], a)
				drow[x+3] = a
			}
		}
		return pm
	}

	// Generic slow path. Color.RGBA() returns premultiplied 16-bit values;
	// the shift keeps them premultiplied at 8 bits.
	for y := range pm.height {
		for x := range pm.width {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pm.SetRGBA(x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8))
		}
	}
	return pm
}

// premul multiplies a straight channel value by alpha.
func premul(c, a uint8) uint8 {
	return uint8((uint16(c)*uint16(a) + 127) / 255)
}

// EncodePNG encodes the pixmap as PNG to the given writer.
func (p *Pixmap) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, p.ToImage()); err != nil {
		return fmt.Errorf("flipbook: encode PNG: %w", err)
	}
	return nil
}

// SavePNG saves the pixmap to a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("flipbook: create file: %w", err)
	}
	if err := p.EncodePNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// At implements the image.Image interface.
func (p *Pixmap) At(x, y int) color.Color {
	r, g, b, a := p.RGBA(x, y)
	return color.RGBA{R: r, G: g, B: b, A: a}
}

// Bounds implements the image.Image interface.
func (p *Pixmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// ColorModel implements the image.Image interface.
func (p *Pixmap) ColorModel() color.Model {
	return color.RGBAModel
}
