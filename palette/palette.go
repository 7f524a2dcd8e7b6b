// Package palette builds and queries the color palettes that the dither and
// codec packages reduce full-color pixels down to: a bounded set of RGBA
// entries plus a 32768-entry nearest-index lookup table keyed by 15-bit
// RGB555.
package palette

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MaxColors is the largest number of entries a Palette may hold. GIF and
// PNG8 both cap out at 256 indices.
const MaxColors = 256

// mappingSize is the number of distinct 15-bit RGB555 keys: (r>>3)<<10 |
// (g>>3)<<5 | (b>>3).
const mappingSize = 1 << 15

// ErrTooManyColors is a PaletteError: the caller asked for or supplied more
// than MaxColors entries.
var ErrTooManyColors = errors.New("palette: more than 256 colors")

// ErrAllTransparent is a PaletteError: no color was supplied, or every
// supplied color had an alpha below 128.
var ErrAllTransparent = errors.New("palette: all colors are transparent")

// Palette is an immutable value: building one from colors or analyzing
// frames always produces a fresh Palette, never mutates an existing one.
// The 32KiB mapping table is the expensive part to build, so Palette holds
// it behind a pointer (*mapping) that can be shared cheaply when a Palette
// is copied, e.g. when only ditherStrength changes.
type Palette struct {
	entries        []uint32 // packed RGBA8888, (r<<24)|(g<<16)|(b<<8)|a
	mapping        *[mappingSize]uint8
	hasTransparent bool
	ditherStrength float64
	populationBias float64
}

// ColorCount returns the number of entries in use, 1..256.
func (p *Palette) ColorCount() int { return len(p.entries) }

// HasTransparent reports whether entry 0 is the reserved transparent slot.
func (p *Palette) HasTransparent() bool { return p.hasTransparent }

// DitherStrength returns the scalar driving per-algorithm error magnitude,
// default 1.0.
func (p *Palette) DitherStrength() float64 { return p.ditherStrength }

// PopulationBias returns the precomputed colorCount^(-1/k) temperance
// factor (k=3.5) used to shrink dither error magnitude as palettes grow.
func (p *Palette) PopulationBias() float64 { return p.populationBias }

// Entry returns the packed RGBA8888 value at index i.
func (p *Palette) Entry(i int) uint32 { return p.entries[i] }

// EntryRGBA unpacks entry i into its 8-bit r, g, b, a components.
func (p *Palette) EntryRGBA(i int) (r, g, b, a uint8) {
	c := p.entries[i]
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Entries returns the palette's colors as packed RGBA8888 values. The
// returned slice is a copy; mutating it does not affect the Palette.
func (p *Palette) Entries() []uint32 {
	out := make([]uint32, len(p.entries))
	copy(out, p.entries)
	return out
}

// WithStrength returns a shallow copy of p with ditherStrength replaced.
// The 32KiB mapping table is shared, not recomputed, since it doesn't
// depend on ditherStrength.
func (p *Palette) WithStrength(strength float64) *Palette {
	cp := *p
	cp.ditherStrength = strength
	return &cp
}

// EffectiveStrength returns ditherStrength tempered by the population
// bias, the "s" scalar used throughout the dither engine.
func (p *Palette) EffectiveStrength() float64 {
	return p.ditherStrength * p.populationBias
}

// Nearest returns the palette index whose entry minimizes differenceMatch
// to the given 8-bit RGB, via the precomputed paletteMapping table. r, g, b
// are clamped into 0..255 before lookup.
func (p *Palette) Nearest(r, g, b int32) uint8 {
	r = clamp255(r)
	g = clamp255(g)
	b = clamp255(b)
	key := (uint32(r)>>3)<<10 | (uint32(g)>>3)<<5 | uint32(b)>>3
	return p.mapping[key]
}

// NearestRGB555 looks up a key that is already packed into 15-bit RGB555
// form, i.e. (r>>3)<<10 | (g>>3)<<5 | (b>>3).
func (p *Palette) NearestRGB555(key uint16) uint8 {
	return p.mapping[key&(mappingSize-1)]
}

func clamp255(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// Exact builds a Palette directly from an explicit color list, in the
// order given. If colors[0] is 0x00000000 (transparent black) it
// remains the transparent slot; the caller is responsible for leaving room
// for it otherwise. Fails with ErrTooManyColors above MaxColors entries and
// ErrAllTransparent if the list is empty or every entry's alpha is below
// 128.
func Exact(colors []uint32) (*Palette, error) {
	if len(colors) == 0 {
		return nil, fmt.Errorf("palette: exact: %w", ErrAllTransparent)
	}
	if len(colors) > MaxColors {
		return nil, fmt.Errorf("palette: exact: %d colors: %w", len(colors), ErrTooManyColors)
	}

	entries := make([]uint32, len(colors))
	copy(entries, colors)

	allTransparent := true
	for _, c := range entries {
		if uint8(c) >= 128 {
			allTransparent = false
			break
		}
	}
	if allTransparent {
		return nil, fmt.Errorf("palette: exact: %w", ErrAllTransparent)
	}

	p := &Palette{
		entries:        entries,
		hasTransparent: entries[0] == 0,
		ditherStrength: 1.0,
	}
	p.populationBias = biasForCount(len(entries))
	p.buildMapping()
	return p, nil
}

// biasForCount is the populationBias formula: colorCount^(-1/k), k=3.5,
// a slowly shrinking multiplier as colorCount grows.
func biasForCount(colorCount int) float64 {
	if colorCount < 1 {
		colorCount = 1
	}
	return math.Pow(float64(colorCount), -1/3.5)
}

// buildMapping recomputes the 32768-byte paletteMapping table from
// scratch: for every 15-bit RGB555 key, it finds the entry minimizing
// differenceMatch, skipping the reserved transparent slot at index 0 and
// every later entry whose alpha is 0. This is always called atomically whenever entries change,
// so a Palette never observes a stale mapping.
func (p *Palette) buildMapping() {
	m := new([mappingSize]uint8)

	type rgb struct{ r, g, b, a int32 }
	candidates := make([]rgb, len(p.entries))
	startIdx := 0
	if p.hasTransparent {
		startIdx = 1
	}
	for i, c := range p.entries {
		r, g, b, a := unpackRGBA(c)
		candidates[i] = rgb{r, g, b, a}
	}

	for key := 0; key < mappingSize; key++ {
		r := int32((key>>10)&0x1F) << 3
		g := int32((key>>5)&0x1F) << 3
		b := int32(key&0x1F) << 3

		best := startIdx
		bestDist := differenceMatch(r, g, b, candidates[startIdx].r, candidates[startIdx].g, candidates[startIdx].b)
		for i := startIdx + 1; i < len(candidates); i++ {
			if candidates[i].a == 0 {
				continue
			}
			d := differenceMatch(r, g, b, candidates[i].r, candidates[i].g, candidates[i].b)
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		m[key] = uint8(best)
	}
	p.mapping = m
}

// unpackRGBA splits a packed RGBA8888 value into its r, g, b and a
// channels.
func unpackRGBA(c uint32) (r, g, b, a int32) {
	return int32(c>>24) & 0xFF, int32(c>>16) & 0xFF, int32(c>>8) & 0xFF, int32(c) & 0xFF
}

// WritePreload writes the preload palette file format: a 2-byte
// big-endian color count, that many packed-RGBA entries, then the full
// 32768-byte mapping table. The explicit count (rather than a fixed-size
// zero-padded block) is what lets LoadPreload recover every entry
// exactly, including a transparent entry at any index.
func (p *Palette) WritePreload(w io.Writer) error {
	var header [2]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(p.entries)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	buf := make([]byte, len(p.entries)*4)
	for i, c := range p.entries {
		buf[i*4+0] = byte(c >> 24)
		buf[i*4+1] = byte(c >> 16)
		buf[i*4+2] = byte(c >> 8)
		buf[i*4+3] = byte(c)
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := w.Write(p.mapping[:])
	return err
}

// LoadPreload reads a file written by WritePreload back into a Palette.
func LoadPreload(r io.Reader) (*Palette, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("palette: load preload: %w", err)
	}
	count := int(binary.BigEndian.Uint16(header[:]))
	if count < 1 || count > MaxColors {
		return nil, fmt.Errorf("palette: load preload: invalid color count %d", count)
	}

	buf := make([]byte, count*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("palette: load preload: %w", err)
	}
	entries := make([]uint32, count)
	for i := range entries {
		entries[i] = uint32(buf[i*4+0])<<24 | uint32(buf[i*4+1])<<16 | uint32(buf[i*4+2])<<8 | uint32(buf[i*4+3])
	}

	var mbuf [mappingSize]byte
	if _, err := io.ReadFull(r, mbuf[:]); err != nil {
		return nil, fmt.Errorf("palette: load preload: %w", err)
	}

	p := &Palette{
		entries:        entries,
		hasTransparent: entries[0] == 0,
		ditherStrength: 1.0,
		populationBias: biasForCount(len(entries)),
	}
	m := new([mappingSize]uint8)
	copy(m[:], mbuf[:])
	p.mapping = m
	return p, nil
}
