// Package bluenoise provides the four 64x64 blue-noise planes and the
// multiplier plane used by the dither engine's hybrid algorithms
// (BLUE_NOISE, SCATTER, NEUE, DODGY, WREN, OVERBOARD).
package bluenoise

// Size is the edge length of each noise plane; lookups wrap with (x&63, y&63).
const Size = 64

var (
	planeA [Size][Size]uint8
	planeB [Size][Size]uint8
	planeC [Size][Size]uint8
	planeD [Size][Size]uint8
	mul    [Size][Size]uint8
)

func init() {
	fillPlane(&planeA, 0x9E3779B1)
	fillPlane(&planeB, 0x85EBCA6B)
	fillPlane(&planeC, 0xC2B2AE35)
	fillPlane(&planeD, 0x27D4EB2F)
	fillMultiplier(&mul)
}

// hash2D is a deterministic integer hash of a coordinate pair and a seed,
// used to synthesize a reproducible pseudo-blue-noise field without
// shipping a multi-kilobyte literal. The four planes and the multiplier
// plane are generated once at init from fixed seeds, so for any given
// build of this package they behave exactly like embedded static data:
// same bytes every run, immutable after init.
func hash2D(x, y int, seed uint32) uint32 {
	h := seed
	h ^= uint32(x) * 0x27220A95
	h *= 0x85EBCA6B
	h ^= h >> 13
	h ^= uint32(y) * 0xC2B2AE35
	h *= 0xCC9E2D51
	h ^= h >> 16
	return h
}

// triangularRemap folds two uniform 0..1 samples into a triangular (tent)
// distribution over 0..1, the same trick TPDF dithering uses for its noise.
func triangularRemap(u1, u2 float64) float64 {
	return (u1 + u2) / 2
}

func fillPlane(plane *[Size][Size]uint8, seed uint32) {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			h1 := hash2D(x, y, seed)
			h2 := hash2D(x+31, y+17, seed^0xFFFFFFFF)
			u1 := float64(h1&0xFFFF) / 65535
			u2 := float64(h2&0xFFFF) / 65535
			t := triangularRemap(u1, u2)
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
			plane[y][x] = uint8(t * 255)
		}
	}
}

// fillMultiplier builds a plane of values in [0,255] representing a
// blue-noise-shaped multiplier in [0,1] (scaled to byte range), used by
// SCATTER to scale the diffused Floyd-Steinberg error term per pixel.
func fillMultiplier(plane *[Size][Size]uint8) {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			h := hash2D(x*7+3, y*13+5, 0x41C64E6D)
			plane[y][x] = uint8(h & 0xFF)
		}
	}
}

func sample(plane *[Size][Size]uint8, x, y int) float64 {
	v := plane[y&(Size-1)][x&(Size-1)]
	return float64(v)/255 - 0.5
}

// A returns plane A's centered offset in [-0.5, 0.5] at (x, y), wrapped
// into the 64x64 tile.
func A(x, y int) float64 { return sample(&planeA, x, y) }

// B returns plane B's centered offset in [-0.5, 0.5] at (x, y).
func B(x, y int) float64 { return sample(&planeB, x, y) }

// C returns plane C's centered offset in [-0.5, 0.5] at (x, y).
func C(x, y int) float64 { return sample(&planeC, x, y) }

// D returns plane D's centered offset in [-0.5, 0.5] at (x, y).
func D(x, y int) float64 { return sample(&planeD, x, y) }

// Multiplier returns the multiplier plane's sample at (x, y) as a value in
// [0, 1], used to scale (rather than offset) an error term.
func Multiplier(x, y int) float64 {
	return float64(mul[y&(Size-1)][x&(Size-1)]) / 255
}
