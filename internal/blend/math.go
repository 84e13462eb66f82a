// Package blend implements premultiplied-alpha compositing for frame buffers.
//
// All operations work on RGBA8 data with premultiplied alpha, the convention
// used throughout the player's frame pipeline. The div255 family avoids
// integer division in the per-pixel hot path by using shift approximations.
//
// References:
//   - Porter-Duff: "Compositing Digital Images" (1984)
//   - Alpha blending without division: https://arxiv.org/abs/2202.02864
package blend

// div255 divides x by 255 using a fast shift approximation.
//
// Formula: (x + 255) >> 8
//
// The result can be +1 above the exact quotient for some inputs, which is
// imperceptible in 8-bit compositing. For blending inputs (0..255*255) the
// result stays within byte range.
func div255(x uint16) uint16 {
	return (x + 255) >> 8
}

// div255Exact divides x by 255 exactly without a division instruction.
//
// Formula: ((x + 1) + ((x + 1) >> 8)) >> 8
//
// Alvy Ray Smith's formula, exact for all uint16 inputs. Used as the
// reference in tests; the hot path uses div255.
func div255Exact(x uint16) uint16 {
	t := x + 1
	return (t + (t >> 8)) >> 8
}

// mulDiv255 multiplies two bytes and divides by 255 using the fast
// approximation. This runs once per channel per composited pixel.
func mulDiv255(a, b byte) byte {
	return byte(div255(uint16(a) * uint16(b)))
}

// mulDiv255Exact multiplies two bytes and divides by 255 exactly.
func mulDiv255Exact(a, b byte) byte {
	return byte(div255Exact(uint16(a) * uint16(b)))
}

// inv255 computes 255 - x (inverse alpha).
func inv255(x byte) byte {
	return 255 - x
}

// addClamp adds two bytes and clamps to 255.
func addClamp(a, b byte) byte {
	sum := uint16(a) + uint16(b)
	if sum > 255 {
		return 255
	}
	return byte(sum)
}
