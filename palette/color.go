package palette

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Channel weighting for differenceMatch, roughly R:G:B = 3:4:2, matching
// the human eye's greater sensitivity to green.
const (
	weightR = 3.0
	weightG = 4.0
	weightB = 2.0
)

// forwardLight compresses highlights with a fitted rational curve,
// L*(a+b*L)/(c+L), so that quantization error in bright regions is
// perceived less harshly than the same numeric error in shadows.
func forwardLight(l float64) float64 {
	const a, b, c = 1.8, 0.9, 0.9
	return l * (a + b*l) / (c + l)
}

// reverseLight is the closed-form inverse of forwardLight: given y solve
// y*(c+l) = l*(a+b*l) for l, i.e. b*l^2 + (a-y)*l - y*c = 0.
func reverseLight(y float64) float64 {
	const a, b, c = 1.8, 0.9, 0.9
	if y <= 0 {
		return 0
	}
	disc := (a-y)*(a-y) + 4*b*y*c
	if disc < 0 {
		disc = 0
	}
	l := (-(a - y) + math.Sqrt(disc)) / (2 * b)
	return clampFloat(l, 0, 1)
}

// luma is a cheap cube-root-shaped perceptual lightness estimate from 8-bit
// RGB, used as the lightness axis for differenceMatch. It intentionally
// avoids a full Oklab conversion in this hot path; see differenceAnalyzing
// for the exact version used only during palette selection.
func luma(r, g, b int32) float64 {
	linear := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 255
	return forwardLight(cubeRoot(linear))
}

// differenceMatch is the cheap weighted metric used to build paletteMapping
// and inside the dither inner loops. It is commutative and zero iff the two
// colors are equal on all three 8-bit channels.
func differenceMatch(r, g, b, r2, g2, b2 int32) float64 {
	dr := float64(r-r2) * weightR
	dg := float64(g-g2) * weightG
	db := float64(b-b2) * weightB
	dl := (luma(r, g, b) - luma(r2, g2, b2)) * 255
	return dr*dr + dg*dg + db*db + dl*dl*48
}

// differenceMatchPacked unpacks two 0xRRGGBB-style packed ints and calls
// differenceMatch.
func differenceMatchPacked(rgb1, rgb2 uint32) float64 {
	r1, g1, b1 := unpackRGB(rgb1)
	r2, g2, b2 := unpackRGB(rgb2)
	return differenceMatch(r1, g1, b1, r2, g2, b2)
}

// toColorful converts 8-bit RGB into a go-colorful sRGB color.
func toColorful(r, g, b int32) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// differenceAnalyzing is used only while a palette is being chosen: it
// weighs the Oklab-ish a,b chroma axes more heavily than differenceMatch
// does, so that perceptually similar hues cluster into the same peak during
// farthest-point selection. Exact Lab conversion (not the cheap
// approximation) is acceptable here because this metric runs at most
// colorCount times per candidate, not once per paletteMapping key.
func differenceAnalyzing(r, g, b, r2, g2, b2 int32) float64 {
	l1, a1, bb1 := toColorful(r, g, b).Lab()
	l2, a2, bb2 := toColorful(r2, g2, b2).Lab()
	dl := (l1 - l2) * 100
	da := (a1 - a2) * 100
	db := (bb1 - bb2) * 100
	return dl*dl + da*da*1.7 + db*db*1.7
}

// differenceHW is the hue-angle-preserving metric used by analyzeHueWise.
// It weighs hue-angle distance (via Hcl) heavily so that at least one
// representative per hue sector survives palette selection, with a smaller
// penalty for lightness/chroma mismatch.
func differenceHW(r, g, b, r2, g2, b2 int32) float64 {
	h1, c1, l1 := toColorful(r, g, b).Hcl()
	h2, c2, l2 := toColorful(r2, g2, b2).Hcl()

	dh := hueDelta(h1, h2)
	// Hue angle matters more when both colors have meaningful chroma;
	// a near-gray color has an unstable hue angle, so temper by chroma.
	chromaWeight := math.Min(c1, c2)

	dl := (l1 - l2) * 100
	dc := (c1 - c2) * 100
	return dh*dh*chromaWeight*4000 + dl*dl + dc*dc*0.5
}

func hueDelta(h1, h2 float64) float64 {
	d := math.Mod(h1-h2+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

func unpackRGB(rgb uint32) (r, g, b int32) {
	return int32(rgb>>16) & 0xFF, int32(rgb>>8) & 0xFF, int32(rgb) & 0xFF
}

func packRGB(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// atan2Deg is kept alongside go-colorful's exact hue math as the cheap
// approximation used where only a coarse hue sector is needed (hue-sector
// bucketing in analyzeHueWise), since atan2Fast is plenty accurate for
// choosing one of 16 sectors.
func atan2Deg(y, x float64) float64 {
	return atan2Fast(y, x) * 180 / math.Pi
}

// probitSpread reshapes a uniform [0,1) sample toward a Gaussian curve
// and returns it as an offset in [-0.5, 0.5]. Nothing in the package
// calls it.
func probitSpread(u float64) float64 {
	// probit is unbounded; scale by 1/8 and clamp back into [-0.5, 0.5].
	p := probit(clampFloat(u, 1e-4, 1-1e-4))
	return clampFloat(p/8, -0.5, 0.5)
}
