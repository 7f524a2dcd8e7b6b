// Package pngchunk provides the PNG chunk-framing plumbing shared by
// png8codec and apngcodec: signature writing, length-prefixed/CRC32'd
// chunk emission, and the DEFLATE compression every IDAT/fdAT payload
// goes through. Grounded on the chunk writer found in the apng reference
// encoder this module's codecs were adapted from.
package pngchunk

import (
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Signature is the 8-byte PNG file signature.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Writer emits length-prefixed, CRC32-checksummed PNG chunks to an
// underlying io.Writer, tracking the first error so callers can chain
// calls without checking every one.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w and immediately writes the PNG signature.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{w: w}
	cw.write(Signature)
	return cw
}

// Err returns the first error this Writer encountered, if any.
func (cw *Writer) Err() error { return cw.err }

func (cw *Writer) write(b []byte) {
	if cw.err != nil {
		return
	}
	_, cw.err = cw.w.Write(b)
}

// Chunk writes one complete chunk: 4-byte big-endian length, 4-byte
// type, the data itself, then a CRC32 over type+data.
func (cw *Writer) Chunk(chunkType string, data []byte) {
	if cw.err != nil {
		return
	}
	if len(chunkType) != 4 {
		cw.err = fmt.Errorf("pngchunk: chunk type %q is not 4 bytes", chunkType)
		return
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:8], chunkType)
	cw.write(header[:])
	cw.write(data)

	crc := crc32.NewIEEE()
	crc.Write(header[4:8])
	crc.Write(data)
	var footer [4]byte
	binary.BigEndian.PutUint32(footer[:], crc.Sum32())
	cw.write(footer[:])
}

// Deflate zlib-compresses data at the given compression level (use
// zlib.DefaultCompression unless a caller wants to trade encode time
// for size), the form every IDAT/fdAT payload takes.
func Deflate(data []byte, level int) ([]byte, error) {
	var buf rewindBuffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("pngchunk: deflate: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("pngchunk: deflate write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("pngchunk: deflate close: %w", err)
	}
	return buf.b, nil
}

// rewindBuffer is a minimal io.Writer sink, avoiding a bytes.Buffer import
// purely for its Write method.
type rewindBuffer struct{ b []byte }

func (b *rewindBuffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// FrameChunkSize bounds how many bytes of compressed scanline data go into
// a single IDAT/fdAT chunk before it's split, matching common encoders'
// practice of capping individual chunk sizes well under the 2^31-1 PNG
// limit so streaming readers aren't forced to buffer huge chunks.
const FrameChunkSize = 1 << 16

// SplitIDAT breaks a compressed scanline stream into FrameChunkSize-sized
// pieces suitable for successive IDAT or fdAT chunk bodies.
func SplitIDAT(compressed []byte) [][]byte {
	if len(compressed) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for len(compressed) > 0 {
		n := FrameChunkSize
		if n > len(compressed) {
			n = len(compressed)
		}
		out = append(out, compressed[:n])
		compressed = compressed[n:]
	}
	return out
}

// PaethPredictor implements the PNG Paeth filter's predictor function.
func PaethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// FilterScanline applies one of PNG's five scanline filter types (0=None,
// 1=Sub, 2=Up, 3=Average, 4=Paeth), given the previous scanline (nil for
// the first row, read as all zero) and the per-pixel byte stride (bpp).
// It returns a new slice holding the filter-type byte followed by the
// filtered bytes; cur is left unchanged.
func FilterScanline(filterType byte, cur, prev []byte, bpp int) []byte {
	out := make([]byte, len(cur)+1)
	out[0] = filterType
	for i, x := range cur {
		var a, b, c byte
		if i >= bpp {
			a = cur[i-bpp]
		}
		if prev != nil {
			b = prev[i]
			if i >= bpp {
				c = prev[i-bpp]
			}
		}
		switch filterType {
		case 0:
			out[i+1] = x
		case 1:
			out[i+1] = x - a
		case 2:
			out[i+1] = x - b
		case 3:
			out[i+1] = x - byte((int(a)+int(b))/2)
		case 4:
			out[i+1] = x - PaethPredictor(a, b, c)
		}
	}
	return out
}

// ChooseFilter picks a scanline filter by minimum sum-of-absolute-values
// heuristic (treating each filtered byte as signed) among candidates, the
// standard reference-encoder approach for picking a per-row filter
// without an exhaustive entropy estimate. candidates defaults to all five
// filter types when empty.
func ChooseFilter(cur, prev []byte, bpp int, candidates ...byte) []byte {
	if len(candidates) == 0 {
		candidates = []byte{0, 1, 2, 3, 4}
	}
	best := FilterScanline(candidates[0], cur, prev, bpp)
	bestSum := sumAbs(best)
	for _, ft := range candidates[1:] {
		candidate := FilterScanline(ft, cur, prev, bpp)
		if s := sumAbs(candidate); s < bestSum {
			best = candidate
			bestSum = s
		}
	}
	return best
}

func sumAbs(filtered []byte) int {
	sum := 0
	for _, b := range filtered[1:] {
		v := int(int8(b))
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum
}
