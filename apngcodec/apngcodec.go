// Package apngcodec writes truecolor (color type 6, RGBA8) animated
// PNG files: no palette, Sub-filtered scanlines, the same acTL/fcTL/
// fdAT animation chunks png8codec uses. Grounded on the apng reference
// encoder's chunk sequencing, generalized from image.Image input to
// rastercast's packed-RGBA palette.Pixmap frames.
package apngcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/palettepress/rastercast/internal/pngchunk"
	"github.com/palettepress/rastercast/palette"
)

// Frame is one truecolor animation frame.
type Frame struct {
	Pixmap   palette.Pixmap
	DelayCs  int
	Disposal byte
	Blend    byte
}

// Options configures animated truecolor PNG output.
type Options struct {
	LoopCount        uint32
	CompressionLevel int
}

const defaultCompressionLevel = 6

// Encode writes a single still truecolor PNG frame.
func Encode(w io.Writer, frame palette.Pixmap) error {
	return EncodeAll(w, []Frame{{Pixmap: frame}}, Options{})
}

// EncodeAll writes an animated truecolor PNG: IHDR (color type 6), acTL
// (only when len(frames) > 1), then for each frame an fcTL (again only
// when len(frames) > 1) followed by IDAT (frame 0) or fdAT (subsequent
// frames), IEND.
func EncodeAll(w io.Writer, frames []Frame, opts Options) error {
	if len(frames) == 0 {
		return errors.New("apngcodec: need at least one frame")
	}
	width, height := frames[0].Pixmap.Width, frames[0].Pixmap.Height
	level := opts.CompressionLevel
	if level == 0 {
		level = defaultCompressionLevel
	}

	cw := pngchunk.NewWriter(w)
	writeIHDR(cw, width, height)

	animated := len(frames) > 1
	if animated {
		writeACTL(cw, len(frames), opts.LoopCount)
	}

	seq := uint32(0)
	for i, f := range frames {
		if f.Pixmap.Width != width || f.Pixmap.Height != height {
			return fmt.Errorf("apngcodec: frame %d size %dx%d != %dx%d", i, f.Pixmap.Width, f.Pixmap.Height, width, height)
		}
		scanlines := filterRGBAScanlines(f.Pixmap)
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

func writeIHDR(cw *pngchunk.Writer, width, height int) {
	var b [13]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(width))
	binary.BigEndian.PutUint32(b[4:8], uint32(height))
	b[8] = 8 // bit depth
	b[9] = 6 // color type: truecolor + alpha
	b[10] = 0
	b[11] = 0
	b[12] = 0
	cw.Chunk("IHDR", b[:])
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
	binary.BigEndian.PutUint32(b[12:16], 0)
	binary.BigEndian.PutUint32(b[16:20], 0)
	binary.BigEndian.PutUint16(b[20:22], uint16(f.DelayCs))
	binary.BigEndian.PutUint16(b[22:24], 100)
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

// filterRGBAScanlines unpacks a Pixmap's packed-RGBA32 pixels into raw
// 4-bytes-per-pixel rows and applies a fixed Sub filter to every row
// (bpp=4), balancing size against speed rather than running a per-row
// filter search.
func filterRGBAScanlines(pm palette.Pixmap) []byte {
	out := make([]byte, 0, (pm.Width*4+1)*pm.Height)
	var prev []byte
	row := make([]byte, pm.Width*4)
	for y := 0; y < pm.Height; y++ {
		for x := 0; x < pm.Width; x++ {
			c := pm.Pixels[y*pm.Width+x]
			row[x*4+0] = byte(c >> 24)
			row[x*4+1] = byte(c >> 16)
			row[x*4+2] = byte(c >> 8)
			row[x*4+3] = byte(c)
		}
		filtered := pngchunk.FilterScanline(1, row, prev, 4)
		out = append(out, filtered...)
		prevCopy := make([]byte, len(row))
		copy(prevCopy, row)
		prev = prevCopy
	}
	return out
}
