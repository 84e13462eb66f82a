package flipbook

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/flipbook/internal/blend"
)

var identityAff3 = f64.Aff3{1, 0, 0, 0, 1, 0}

// rgbaView wraps a pixmap's storage as an *image.RGBA without copying.
// Both views of the memory must not be used concurrently.
func rgbaView(p *Pixmap) *image.RGBA {
	return &image.RGBA{
		Pix:    p.Data(),
		Stride: p.Stride(),
		Rect:   image.Rect(0, 0, p.Width(), p.Height()),
	}
}

// compositeInto blends src into dst with the given placement, blend mode,
// and opacity. When src needs placement (a transform, or a size that
// differs from dst) it goes through a transparent scratch pixmap of dst's
// size first, resampled when transformed and laid at the origin otherwise;
// same-size untransformed sources blend directly. The pool supplies scratch
// pixmaps and may be nil.
func compositeInto(dst, src *Pixmap, m f64.Aff3, hasTransform bool, mode blend.Mode, opacity float64, pool *PixmapPool) {
	if dst == nil || src == nil {
		return
	}
	op := byte(opacity*255 + 0.5)
	if op == 0 {
		return
	}
	if hasTransform && m == identityAff3 {
		hasTransform = false
	}

	sameSize := dst.Width() == src.Width() && dst.Height() == src.Height()
	if sameSize && !hasTransform {
		blend.Composite(dst.Data(), src.Data(), mode, op)
		return
	}

	var scratch *Pixmap
	if pool != nil {
		scratch = pool.Get(dst.Width(), dst.Height())
		defer pool.Put(scratch)
	} else {
		scratch = NewPixmap(dst.Width(), dst.Height())
	}

	srcImg := rgbaView(src)
	dstImg := rgbaView(scratch)
	if hasTransform {
		draw.ApproxBiLinear.Transform(dstImg, m, srcImg, srcImg.Bounds(), draw.Src, nil)
	} else {
		draw.Draw(dstImg, srcImg.Bounds(), srcImg, image.Point{}, draw.Src)
	}
	blend.Composite(dst.Data(), scratch.Data(), mode, op)
}

// compositeInto applies this layer's look controls to blend src into dst.
func (l *Layer) compositeInto(dst, src *Pixmap, pool *PixmapPool) {
	m, hasTransform := l.Transform()
	compositeInto(dst, src, m, hasTransform, l.BlendMode(), l.Opacity(), pool)
}
