// Package png8codec writes indexed-color (color type 3) PNG8 files,
// with acTL/fcTL/fdAT animation chunks when encoding more than one
// frame. Chunk framing is shared with apngcodec via internal/pngchunk;
// structure is grounded on the chunk ordering and sequence-numbering
// scheme of the apng reference encoder this module was adapted from.
package png8codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/palettepress/rastercast/dither"
	"github.com/palettepress/rastercast/internal/pngchunk"
	"github.com/palettepress/rastercast/palette"
)

// Frame is one animation frame: its indexed pixels and the palette they
// index into. Every frame in a PNG8 animation must share one palette —
// unlike GIF, PNG8 has no per-frame local color table — so Encode/
// EncodeAll take a single shared *palette.Palette.
type Frame struct {
	Indexed  dither.IndexedFrame
	DelayCs  int
	Disposal byte // APNG dispose_op: 0=none, 1=background, 2=previous
	Blend    byte // APNG blend_op: 0=source, 1=over
}

// Options configures animated PNG8 output.
type Options struct {
	LoopCount        uint32 // 0 = infinite, matching acTL's convention
	CompressionLevel int    // zlib level, 0..9; 0 picks the package default
}

const defaultCompressionLevel = 6

// Encode writes a single still PNG8 frame: IHDR, PLTE, optional tRNS,
// one IDAT, IEND.
func Encode(w io.Writer, frame dither.IndexedFrame, pal *palette.Palette) error {
	return EncodeAll(w, []Frame{{Indexed: frame}}, pal, Options{})
}

// EncodeAll writes an animated PNG8: IHDR (color type 3), PLTE, optional
// tRNS, acTL (only when len(frames) > 1), then for each frame an fcTL
// (again only when len(frames) > 1) followed by IDAT (frame 0) or fdAT
// (subsequent frames), IEND.
func EncodeAll(w io.Writer, frames []Frame, pal *palette.Palette, opts Options) error {
	if len(frames) == 0 {
		return errors.New("png8codec: need at least one frame")
	}
	width, height := frames[0].Indexed.Width, frames[0].Indexed.Height
	level := opts.CompressionLevel
	if level == 0 {
		level = defaultCompressionLevel
	}

	cw := pngchunk.NewWriter(w)
	writeIHDR(cw, width, height, 3)
	writePLTE(cw, pal)
	if trns := buildTRNS(pal); trns != nil {
		cw.Chunk("tRNS", trns)
	}

	animated := len(frames) > 1
	if animated {
		writeACTL(cw, len(frames), opts.LoopCount)
	}

	seq := uint32(0)
	for i, f := range frames {
		if f.Indexed.Width != width || f.Indexed.Height != height {
			return fmt.Errorf("png8codec: frame %d size %dx%d != %dx%d", i, f.Indexed.Width, f.Indexed.Height, width, height)
		}
		scanlines := filterIndexedScanlines(f.Indexed)
		compressed, err := pngchunk.Deflate(scanlines, level)
		if err != nil {
			return err
		}
		pieces := pngchunk.SplitIDAT(compressed)

		if animated {
			writeFCTL(cw, &seq, width, height, f)
		}
		for _, piece := range pieces {
			if i == 0 {
				cw.Chunk("IDAT", piece)
			} else {
				writeFDAT(cw, &seq, piece)
			}
		}
	}

	cw.Chunk("IEND", nil)
	return cw.Err()
}

func writeIHDR(cw *pngchunk.Writer, width, height int, colorType byte) {
	var b [13]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(width))
	binary.BigEndian.PutUint32(b[4:8], uint32(height))
	b[8] = 8 // bit depth
	b[9] = colorType
	b[10] = 0 // compression method
	b[11] = 0 // filter method
	b[12] = 0 // interlace method
	cw.Chunk("IHDR", b[:])
}

func writePLTE(cw *pngchunk.Writer, pal *palette.Palette) {
	n := pal.ColorCount()
	buf := make([]byte, n*3)
	for i := 0; i < n; i++ {
		r, g, b, _ := pal.EntryRGBA(i)
		buf[i*3+0] = r
		buf[i*3+1] = g
		buf[i*3+2] = b
	}
	cw.Chunk("PLTE", buf)
}

// buildTRNS returns the tRNS chunk payload (one alpha byte per palette
// entry, trimmed of a fully-opaque tail) or nil if every entry is
// fully opaque.
func buildTRNS(pal *palette.Palette) []byte {
	n := pal.ColorCount()
	alphas := make([]byte, n)
	anyTransparent := false
	for i := 0; i < n; i++ {
		_, _, _, a := pal.EntryRGBA(i)
		alphas[i] = a
		if a != 255 {
			anyTransparent = true
		}
	}
	if !anyTransparent {
		return nil
	}
	last := n - 1
	for last > 0 && alphas[last] == 255 {
		last--
	}
	return alphas[:last+1]
}

func writeACTL(cw *pngchunk.Writer, numFrames int, loopCount uint32) {
	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(numFrames))
	binary.BigEndian.PutUint32(b[4:8], loopCount)
	cw.Chunk("acTL", b[:])
}

func writeFCTL(cw *pngchunk.Writer, seq *uint32, width, height int, f Frame) {
	var b [26]byte
	binary.BigEndian.PutUint32(b[0:4], *seq)
	binary.BigEndian.PutUint32(b[4:8], uint32(width))
	binary.BigEndian.PutUint32(b[8:12], uint32(height))
	binary.BigEndian.PutUint32(b[12:16], 0) // x_offset
	binary.BigEndian.PutUint32(b[16:20], 0) // y_offset
	binary.BigEndian.PutUint16(b[20:22], uint16(f.DelayCs))
	binary.BigEndian.PutUint16(b[22:24], 100) // delay_den: centiseconds
	b[24] = f.Disposal
	b[25] = f.Blend
	cw.Chunk("fcTL", b[:])
	*seq++
}

func writeFDAT(cw *pngchunk.Writer, seq *uint32, data []byte) {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], *seq)
	copy(buf[4:], data)
	cw.Chunk("fdAT", buf)
	*seq++
}

// filterIndexedScanlines applies the reference filter-choice heuristic per
// row (indexed color has 1 byte/pixel, so bpp=1), restricted to the None
// filter: palette indices aren't numeric color samples, so byte-delta
// filters (Sub/Up/Average/Paeth) don't correlate with visual smoothness
// the way they do for truecolor data, and actively hurt compression on
// indexed images. Matching the reference PNG encoders, the heuristic's
// fixed candidate subset for color type 3 is {None}.
func filterIndexedScanlines(frame dither.IndexedFrame) []byte {
	out := make([]byte, 0, (frame.Width+1)*frame.Height)
	var prev []byte
	for y := 0; y < frame.Height; y++ {
		row := frame.Indices[y*frame.Width : (y+1)*frame.Width]
		filtered := pngchunk.ChooseFilter(row, prev, 1, 0)
		out = append(out, filtered...)
		prev = row
	}
	return out
}
