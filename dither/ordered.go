package dither

import (
	"math"

	"github.com/palettepress/rastercast/bluenoise"
	"github.com/palettepress/rastercast/palette"
)

// offsetFunc computes a per-channel, per-pixel perturbation in
// [-0.5, 0.5] (before strength scaling) to add to a pixel's channel
// values before quantization. frameSeq is 0 for every algorithm except
// ChaoticNoise.
type offsetFunc func(x, y, frameSeq int, strength float64) (dr, dg, db float64)

// reduceOrdered applies an offsetFunc with frameSeq fixed at 0 to every
// pixel, then looks up the nearest palette entry. This covers every
// algorithm with no frame-to-frame variation and no error propagation:
// GRADIENT_NOISE, BLUE_NOISE, ROBERTS, LOAF.
func reduceOrdered(src palette.Pixmap, pal *palette.Palette, offset offsetFunc) IndexedFrame {
	return reduceOrderedSeq(src, pal, 0, offset)
}

// reduceOrderedSeq is reduceOrdered but threads a frame sequence number
// through to the offset function, used by CHAOTIC_NOISE.
func reduceOrderedSeq(src palette.Pixmap, pal *palette.Palette, frameSeq int, offset offsetFunc) IndexedFrame {
	out := newIndexedFrame(src.Width, src.Height)
	s := pal.EffectiveStrength()
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			i := y*src.Width + x
			r, g, b, _ := unpackRGBA(src.Pixels[i])
			dr, dg, db := offset(x, y, frameSeq, s)
			nr := clamp255(float64(r) + dr*channelOffsetScale*s)
			ng := clamp255(float64(g) + dg*channelOffsetScale*s)
			nb := clamp255(float64(b) + db*channelOffsetScale*s)
			out.Indices[i] = pal.Nearest(nr, ng, nb)
		}
	}
	return out
}

// gradientNoiseOffset is Jorge Jimenez's interleaved gradient noise,
// applied identically to all three channels. It's deterministic purely
// from pixel position, giving a fine dithered gradient without any
// lookup table.
func gradientNoiseOffset(x, y, _ int, _ float64) (dr, dg, db float64) {
	v := interleavedGradientNoise(x, y)
	return v, v, v
}

func interleavedGradientNoise(x, y int) float64 {
	v := 52.9829189 * frac(0.06711056*float64(x)+0.00583715*float64(y))
	return frac(v) - 0.5
}

func frac(v float64) float64 {
	return v - math.Floor(v)
}

// blueNoiseOffset adds a single blue-noise plane sample identically to
// all three channels.
func blueNoiseOffset(x, y, _ int, _ float64) (dr, dg, db float64) {
	v := bluenoise.A(x, y)
	return v, v, v
}

// chaoticNoiseOffset xor-hashes (x, y, frameSeq) into a per-pixel
// perturbation that is, by design, not stable across frames: the same
// pixel position gets a different offset on every frame.
func chaoticNoiseOffset(x, y, frameSeq int, _ float64) (dr, dg, db float64) {
	h := uint32(x)*0x9E3779B1 ^ uint32(y)*0x85EBCA6B ^ uint32(frameSeq)*0xC2B2AE35
	h ^= h >> 15
	h *= 0x2C1B3C6D
	h ^= h >> 12
	v := float64(h&0xFFFF)/65535 - 0.5
	return v, v, v
}

// plasticR2 is 1/phi2, the inverse of the plastic constant, used as the
// per-step increment of the R2 low-discrepancy sequence.
const plasticR2 = 0.7548776662466927
const plasticR2Sq = plasticR2 * plasticR2

// r2Point returns the R2 sequence's i'th 2D point, {i*phi2^-1 mod 1,
// i*phi2^-2 mod 1}.
func r2Point(i int) (float64, float64) {
	return frac(float64(i) * plasticR2), frac(float64(i) * plasticR2Sq)
}

// robertsOffset derives three independent R2-sequence phases — one per
// channel — from the pixel's linear position, each centered into
// [-0.5, 0.5]. Used directly by ROBERTS (ordered) and as the
// pre-quantization offset for WOVEN (error-diffusion hybrid).
func robertsOffset(x, y, _ int, _ float64) (dr, dg, db float64) {
	i := x + y*92821 // decorrelate rows; any large odd stride works
	rx, ry := r2Point(i)
	gx, gy := r2Point(i + 7919)
	bx, by := r2Point(i + 15773)
	dr = ((rx + ry) / 2) - 0.5
	dg = ((gx + gy) / 2) - 0.5
	db = ((bx + by) / 2) - 0.5
	return dr, dg, db
}

// dodgyPreOffset drives R, G, B from three independent blue-noise planes
// and adds a fourth plane as a uniform "bias" shift applied to all
// channels, per §4.3's "four separate planes A/B/C/D drive R/G/B/bias".
func dodgyPreOffset(x, y, _ int, _ float64) (dr, dg, db float64) {
	bias := bluenoise.D(x, y)
	dr = bluenoise.A(x, y) + bias
	dg = bluenoise.B(x, y) + bias
	db = bluenoise.C(x, y) + bias
	return dr / 2, dg / 2, db / 2
}

// wrenPreOffset combines DODGY's per-channel blue noise with WOVEN's
// per-channel R2 offset, averaging the two so the combined magnitude
// stays within the same ±0.5 envelope every other offsetFunc respects.
func wrenPreOffset(x, y, frameSeq int, strength float64) (dr, dg, db float64) {
	ar, ag, ab := dodgyPreOffset(x, y, frameSeq, strength)
	br, bg, bb := robertsOffset(x, y, frameSeq, strength)
	return (ar + br) / 2, (ag + bg) / 2, (ab + bb) / 2
}

// loafMatrix is a 2x2 checkerboard threshold matrix with two levels,
// normalized to [0,1): {{1,3},{3,1}}/4.
var loafMatrix = [2][2]float64{
	{1.0 / 4, 3.0 / 4},
	{3.0 / 4, 1.0 / 4},
}

// loafOffset is an intentionally lo-fi 2x2 ordered dither: only two
// threshold levels per channel, applied identically to all channels.
func loafOffset(x, y, _ int, _ float64) (dr, dg, db float64) {
	v := loafMatrix[y&1][x&1] - 0.5
	return v, v, v
}

// bayer4x4 is the standard 4x4 Bayer ordered-dither index matrix,
// normalized to [0,1), used by PATTERN to pick among 16 re-quantization
// candidates and by OVERBOARD to select a noise source per pixel.
var bayer4x4 = [4][4]float64{
	{0.0 / 16, 8.0 / 16, 2.0 / 16, 10.0 / 16},
	{12.0 / 16, 4.0 / 16, 14.0 / 16, 6.0 / 16},
	{3.0 / 16, 11.0 / 16, 1.0 / 16, 9.0 / 16},
	{15.0 / 16, 7.0 / 16, 13.0 / 16, 5.0 / 16},
}

// overboardSelector picks one of three noise sources per pixel using the
// 4x4 Bayer grid as a stable round-robin selector, per §4.3's "a per-pixel
// selector (a 4x4 ordered grid) choosing between three added-noise
// variants".
func overboardSelector(x, y int) int {
	t := bayer4x4[y&3][x&3]
	switch {
	case t < 1.0/3:
		return 0 // R2 offset
	case t < 2.0/3:
		return 1 // blue-noise offset
	default:
		return 2 // compact XOR-mod pattern
	}
}

// overboardPreOffset implements OVERBOARD's three-way selector: R2
// offset, blue-noise offset, or a compact XOR-mod pattern
// ((x^y)&0xFF)*k, each applied identically across channels so the
// selector's choice is visually coherent per pixel.
func overboardPreOffset(x, y, frameSeq int, strength float64) (dr, dg, db float64) {
	switch overboardSelector(x, y) {
	case 0:
		return robertsOffset(x, y, frameSeq, strength)
	case 1:
		return blueNoiseOffset(x, y, frameSeq, strength)
	default:
		v := float64((x^y)&0xFF)/255 - 0.5
		return v, v, v
	}
}

// neuePreOffset adds a triangular-mapped blue-noise sample uniformly
// (additively) before Floyd-Steinberg quantizes and diffuses the
// resulting error, per §4.3's NEUE.
func neuePreOffset(x, y, _ int, _ float64) (dr, dg, db float64) {
	v := bluenoise.B(x, y)
	return v, v, v
}

// scatterPostAdjust multiplies the just-computed Floyd-Steinberg
// quantization error by a blue-noise sample in [0,1] before it is
// diffused to neighboring pixels, per §4.3's SCATTER.
func scatterPostAdjust(x, y int, er, eg, eb, _ float64) (float64, float64, float64) {
	m := bluenoise.Multiplier(x, y)
	return er * m, eg * m, eb * m
}
