package dither

import "github.com/palettepress/rastercast/palette"

// diffusionTap is one weighted neighbor a quantization error is pushed to,
// expressed as an (dx, dy) offset from the just-quantized pixel and a
// numerator over the engine's shared denominator. This mirrors
// github.com/makeworld-the-better-one/dither/v2's ErrorDiffusionMatrix
// shape, which rastercast's weight tables are transcribed from.
type diffusionTap struct {
	dx, dy int
	weight int
}

// floydSteinbergWeights is the classic Floyd-Steinberg kernel, numerators
// over a denominator of 16.
var floydSteinbergWeights = []diffusionTap{
	{1, 0, 7},
	{-1, 1, 3},
	{0, 1, 5},
	{1, 1, 1},
}

// burkesWeights is the Burkes kernel, numerators over a denominator of 32:
// row0 carries 8 and 4 at (+1,0) and (+2,0); row1 carries 2, 4, 8, 4, 2 at
// (-2,+1) through (+2,+1).
var burkesWeights = []diffusionTap{
	{1, 0, 8},
	{2, 0, 4},
	{-2, 1, 2},
	{-1, 1, 4},
	{0, 1, 8},
	{1, 1, 4},
	{2, 1, 2},
}

// preOffsetFunc perturbs a pixel's channels before it is quantized, the
// same shape as offsetFunc but reused here so NEUE/WOVEN/DODGY/WREN/
// OVERBOARD can layer an ordered offset underneath error diffusion.
type preOffsetFunc = offsetFunc

// postAdjustFunc rescales or reshapes the just-computed quantization error
// before it is diffused to neighboring pixels, used by SCATTER to multiply
// the error by a blue-noise sample instead of adding an offset beforehand.
type postAdjustFunc func(x, y int, er, eg, eb, strength float64) (float64, float64, float64)

// runDiffusion is the generic error-diffusion engine shared by DIFFUSION,
// BURKES, SCATTER, NEUE, WOVEN, DODGY, WREN, and OVERBOARD. It quantizes
// pixels in scanline order (optionally serpentine, reversing direction on
// odd rows) and propagates each pixel's quantization error to its
// not-yet-visited neighbors per weights, using int16 accumulators
// saturated to ±127 per channel so long error chains can't runaway.
//
// preOffset, if non-nil, perturbs each pixel's channels before
// quantization (in addition to accumulated diffused error). postAdjust, if
// non-nil, reshapes the computed error term before it's diffused.
func runDiffusion(
	src palette.Pixmap,
	pal *palette.Palette,
	weights []diffusionTap,
	denominator int,
	serpentine bool,
	preOffset preOffsetFunc,
	postAdjust postAdjustFunc,
) IndexedFrame {
	w, h := src.Width, src.Height
	out := newIndexedFrame(w, h)
	s := pal.EffectiveStrength()

	// errR/errG/errB hold accumulated diffused error per pixel, saturated
	// to int16 range but clamped to ±127 on every write per §4.3's
	// "saturating accumulator" invariant.
	errR := make([]int16, w*h)
	errG := make([]int16, w*h)
	errB := make([]int16, w*h)

	for y := 0; y < h; y++ {
		leftToRight := true
		if serpentine && y&1 == 1 {
			leftToRight = false
		}
		xStart, xEnd, xStep := 0, w, 1
		if !leftToRight {
			xStart, xEnd, xStep = w-1, -1, -1
		}
		for x := xStart; x != xEnd; x += xStep {
			i := y*w + x
			r, g, b, _ := unpackRGBA(src.Pixels[i])

			fr := float64(r) + float64(errR[i])
			fg := float64(g) + float64(errG[i])
			fb := float64(b) + float64(errB[i])

			if preOffset != nil {
				dr, dg, db := preOffset(x, y, 0, s)
				fr += dr * channelOffsetScale * s
				fg += dg * channelOffsetScale * s
				fb += db * channelOffsetScale * s
			}

			nr, ng, nb := clamp255(fr), clamp255(fg), clamp255(fb)
			idx := pal.Nearest(nr, ng, nb)
			out.Indices[i] = idx

			pr, pg, pb, _ := unpackRGBA(pal.Entry(int(idx)))
			er := (fr - float64(pr)) * s
			eg := (fg - float64(pg)) * s
			eb := (fb - float64(pb)) * s

			if postAdjust != nil {
				er, eg, eb = postAdjust(x, y, er, eg, eb, s)
			}

			diffuseStep := xStep
			for _, tap := range weights {
				tdx := tap.dx * diffuseStep
				nx, ny := x+tdx, y+tap.dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				frac := float64(tap.weight) / float64(denominator)
				errR[ni] = saturate16(errR[ni], er*frac)
				errG[ni] = saturate16(errG[ni], eg*frac)
				errB[ni] = saturate16(errB[ni], eb*frac)
			}
		}
	}
	return out
}

// saturate16 adds delta to base and clamps the result to ±127, the bound
// every diffused error accumulator respects regardless of how many passes
// have contributed to it.
func saturate16(base int16, delta float64) int16 {
	v := int32(base) + int32(delta+sign(delta)*0.5)
	if v > 127 {
		return 127
	}
	if v < -127 {
		return -127
	}
	return int16(v)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
