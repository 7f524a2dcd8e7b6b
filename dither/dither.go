// Package dither implements the ~15 dithering algorithms that map
// full-color pixels to palette indices while shaping quantization error
// perceptually: ordered dithers, error-diffusion dithers, and hybrids that
// combine error diffusion with blue-noise or low-discrepancy offsets.
//
// Every algorithm is a deterministic pure function of (frame, palette,
// ditherStrength, and — where the algorithm explicitly varies per frame —
// a frame sequence number). There is no polymorphic dispatch inside any
// per-pixel loop: Reduce branches once per frame on the Algorithm value to
// a monomorphic implementation, per the "no virtual calls in the hot
// loop" design used throughout this package.
package dither

import "github.com/palettepress/rastercast/palette"

// Algorithm names one of the dither strategies a frame can be reduced
// with.
type Algorithm int

const (
	None Algorithm = iota
	GradientNoise
	Pattern
	Diffusion
	Burkes
	BlueNoise
	ChaoticNoise
	Scatter
	Neue
	Roberts
	Woven
	Dodgy
	Loaf
	Wren
	Overboard
)

// channelOffsetScale bounds every ordered/hybrid channel offset to
// roughly ±32*s in 0..255 units, per §4.3's strength scaling rule. Raw
// offsets are produced in [-0.5, 0.5] and multiplied by this constant.
const channelOffsetScale = 64.0

// IndexedFrame is the transient output of a dither: one palette index per
// pixel.
type IndexedFrame struct {
	Width, Height int
	Indices       []byte
}

func newIndexedFrame(w, h int) IndexedFrame {
	return IndexedFrame{Width: w, Height: h, Indices: make([]byte, w*h)}
}

// Reduce dithers src against pal using algorithm, returning one palette
// index per pixel. frameSeq is only consulted by ChaoticNoise, which is
// deliberately unstable across frames; every other algorithm ignores it.
//
// ditherStrength == 0 always produces identical output to None: every
// branch below scales its offsets or error terms by pal.EffectiveStrength(),
// which is zero whenever pal.DitherStrength() is zero.
func Reduce(algorithm Algorithm, src palette.Pixmap, pal *palette.Palette, frameSeq int) IndexedFrame {
	switch algorithm {
	case None:
		return reduceSolid(src, pal)
	case GradientNoise:
		return reduceOrdered(src, pal, gradientNoiseOffset)
	case Pattern:
		return reducePattern(src, pal)
	case Diffusion:
		return runDiffusion(src, pal, floydSteinbergWeights, 16, true, nil, nil)
	case Burkes:
		return runDiffusion(src, pal, burkesWeights, 32, false, nil, nil)
	case BlueNoise:
		return reduceOrdered(src, pal, blueNoiseOffset)
	case ChaoticNoise:
		return reduceOrderedSeq(src, pal, frameSeq, chaoticNoiseOffset)
	case Scatter:
		return runDiffusion(src, pal, floydSteinbergWeights, 16, true, nil, scatterPostAdjust)
	case Neue:
		return runDiffusion(src, pal, floydSteinbergWeights, 16, true, neuePreOffset, nil)
	case Roberts:
		return reduceOrdered(src, pal, robertsOffset)
	case Woven:
		return runDiffusion(src, pal, floydSteinbergWeights, 16, true, robertsOffset, nil)
	case Dodgy:
		return runDiffusion(src, pal, floydSteinbergWeights, 16, true, dodgyPreOffset, nil)
	case Loaf:
		return reduceOrdered(src, pal, loafOffset)
	case Wren:
		return runDiffusion(src, pal, floydSteinbergWeights, 16, true, wrenPreOffset, nil)
	case Overboard:
		return runDiffusion(src, pal, burkesWeights, 32, false, overboardPreOffset, nil)
	default:
		return reduceSolid(src, pal)
	}
}

// reduceSolid implements the NONE algorithm: out[p] = nearest(src[p]).
func reduceSolid(src palette.Pixmap, pal *palette.Palette) IndexedFrame {
	out := newIndexedFrame(src.Width, src.Height)
	for i, px := range src.Pixels {
		r, g, b, _ := unpackRGBA(px)
		out.Indices[i] = pal.Nearest(r, g, b)
	}
	return out
}

func unpackRGBA(c uint32) (r, g, b, a int32) {
	return int32(c>>24) & 0xFF, int32(c>>16) & 0xFF, int32(c>>8) & 0xFF, int32(c) & 0xFF
}

func clamp255(v float64) int32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return int32(v + 0.5)
}
