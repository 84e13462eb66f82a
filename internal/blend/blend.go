package blend

// Mode selects how a layer's pixels combine with the pixels below it.
type Mode uint8

const (
	// Over is standard source-over alpha compositing, the default for layers.
	// Formula: S + D*(1-Sa)
	Over Mode = iota
	// Add sums source and destination channels, clamped to 255.
	Add
	// Multiply darkens the destination by the source.
	// Formula per channel: S*D + S*(1-Da) + D*(1-Sa)
	Multiply
	// Screen lightens the destination by the source.
	// Formula per channel: S + D - S*D
	Screen
)

// ParseMode maps a mode name from a project file to a Mode.
// The empty string parses as Over.
func ParseMode(name string) (Mode, bool) {
	switch name {
	case "", "over", "normal":
		return Over, true
	case "add", "plus":
		return Add, true
	case "multiply":
		return Multiply, true
	case "screen":
		return Screen, true
	}
	return Over, false
}

// String returns the project-file name of the mode.
func (m Mode) String() string {
	switch m {
	case Over:
		return "over"
	case Add:
		return "add"
	case Multiply:
		return "multiply"
	case Screen:
		return "screen"
	}
	return "over"
}

// blendFunc combines one premultiplied source pixel with one destination
// pixel. All values are premultiplied alpha, 0-255.
type blendFunc func(sr, sg, sb, sa, dr, dg, db, da byte) (r, g, b, a byte)

// funcFor returns the blend function for the given mode.
// Unknown modes fall back to blendOver.
func funcFor(m Mode) blendFunc {
	switch m {
	case Over:
		return blendOver
	case Add:
		return blendAdd
	case Multiply:
		return blendMultiply
	case Screen:
		return blendScreen
	}
	return blendOver
}

// blendOver composites source over destination.
// Formula: S + D * (1 - Sa)
func blendOver(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invSa := inv255(sa)
	return addClamp(sr, mulDiv255(dr, invSa)),
		addClamp(sg, mulDiv255(dg, invSa)),
		addClamp(sb, mulDiv255(db, invSa)),
		addClamp(sa, mulDiv255(da, invSa))
}

// blendAdd sums source and destination, clamped to 255.
func blendAdd(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return addClamp(sr, dr), addClamp(sg, dg), addClamp(sb, db), addClamp(sa, da)
}

// blendMultiply darkens, weighting each side by the other's coverage.
// Alpha composites as source-over so stacking stays consistent.
func blendMultiply(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invSa := inv255(sa)
	invDa := inv255(da)
	r := addClamp(mulDiv255(sr, dr), addClamp(mulDiv255(sr, invDa), mulDiv255(dr, invSa)))
	g := addClamp(mulDiv255(sg, dg), addClamp(mulDiv255(sg, invDa), mulDiv255(dg, invSa)))
	b := addClamp(mulDiv255(sb, db), addClamp(mulDiv255(sb, invDa), mulDiv255(db, invSa)))
	a := addClamp(sa, mulDiv255(da, invSa))
	return r, g, b, a
}

// blendScreen lightens: S + D - S*D per channel, including alpha.
// For alpha this reduces to the source-over coverage.
func blendScreen(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	r := addClamp(sr, mulDiv255(dr, inv255(sr)))
	g := addClamp(sg, mulDiv255(dg, inv255(sg)))
	b := addClamp(sb, mulDiv255(db, inv255(sb)))
	a := addClamp(sa, mulDiv255(da, inv255(sa)))
	return r, g, b, a
}

// Composite blends src onto dst in place using the given mode.
//
// Both buffers hold premultiplied RGBA8 pixels and should be the same
// length; trailing bytes past the shorter buffer are left untouched.
// opacity scales the source contribution before blending, 255 = full.
func Composite(dst, src []byte, mode Mode, opacity byte) {
	if opacity == 0 {
		return
	}
	n := min(len(dst), len(src))
	n -= n % 4

	if mode == Over && opacity == 0xff {
		compositeOver(dst[:n], src[:n])
		return
	}

	fn := funcFor(mode)
	for i := 0; i < n; i += 4 {
		sr, sg, sb, sa := src[i], src[i+1], src[i+2], src[i+3]
		if opacity < 0xff {
			// Premultiplied: opacity scales all four channels.
			sr = mulDiv255(sr, opacity)
			sg = mulDiv255(sg, opacity)
			sb = mulDiv255(sb, opacity)
			sa = mulDiv255(sa, opacity)
		}
		dst[i], dst[i+1], dst[i+2], dst[i+3] = fn(sr, sg, sb, sa, dst[i], dst[i+1], dst[i+2], dst[i+3])
	}
}

// compositeOver is the full-opacity source-over loop, the steady-state
// playback path. Fully transparent and fully opaque source pixels skip
// the blend arithmetic.
func compositeOver(dst, src []byte) {
	for i := 0; i < len(src); i += 4 {
		sa := src[i+3]
		switch sa {
		case 0:
			continue
		case 0xff:
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i], src[i+1], src[i+2], 0xff
			continue
		}
		inv := inv255(sa)
		dst[i] = addClamp(src[i], mulDiv255(dst[i], inv))
		dst[i+1] = addClamp(src[i+1], mulDiv255(dst[i+1], inv))
		dst[i+2] = addClamp(src[i+2], mulDiv255(dst[i+2], inv))
		dst[i+3] = addClamp(sa, mulDiv255(dst[i+3], inv))
	}
}
