package dither

import (
	"sort"

	"github.com/palettepress/rastercast/palette"
)

// patternCandidates is the number of re-quantization candidates generated
// per pixel, matching bayer4x4's 16 distinct threshold levels.
const patternCandidates = 16

// reducePattern implements PATTERN (Knoll dithering): instead of diffusing
// error to neighboring pixels, it generates patternCandidates independent
// re-quantizations of the SAME pixel, each accumulating a running error
// term from the previous candidate, sorts them by luma, and picks among
// them using the 4x4 Bayer matrix as a stable per-pixel selector. Because
// the selection depends only on the pixel's own position and color — never
// on a neighbor's already-dithered value — PATTERN is idempotent: feeding
// an already-quantized frame back in reproduces it exactly, since every
// candidate for an exact palette color re-selects that same color with
// zero accumulated error.
func reducePattern(src palette.Pixmap, pal *palette.Palette) IndexedFrame {
	out := newIndexedFrame(src.Width, src.Height)
	s := pal.EffectiveStrength()

	candidates := make([]uint8, patternCandidates)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			i := y*src.Width + x
			r, g, b, _ := unpackRGBA(src.Pixels[i])
			fr, fg, fb := float64(r), float64(g), float64(b)
			var er, eg, eb float64

			for n := 0; n < patternCandidates; n++ {
				cr := fr + er*s
				cg := fg + eg*s
				cb := fb + eb*s
				idx := pal.Nearest(clamp255(cr), clamp255(cg), clamp255(cb))
				candidates[n] = idx

				pr, pg, pb, _ := unpackRGBA(pal.Entry(int(idx)))
				er += cr - float64(pr)
				eg += cg - float64(pg)
				eb += cb - float64(pb)
			}

			sortByLuma(candidates, pal)
			sel := int(bayer4x4[y&3][x&3] * patternCandidates)
			if sel >= patternCandidates {
				sel = patternCandidates - 1
			}
			out.Indices[i] = candidates[sel]
		}
	}
	return out
}

// sortByLuma orders a small fixed-size candidate slice by the luma of the
// palette entry each index refers to, so the Bayer selector sweeps darkest
// to lightest rather than an arbitrary generation order.
func sortByLuma(candidates []uint8, pal *palette.Palette) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, gi, bi, _ := unpackRGBA(pal.Entry(int(candidates[i])))
		rj, gj, bj, _ := unpackRGBA(pal.Entry(int(candidates[j])))
		return luma(ri, gi, bi) < luma(rj, gj, bj)
	})
}

func luma(r, g, b int32) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
