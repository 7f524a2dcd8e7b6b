package apngcodec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"testing"

	"github.com/palettepress/rastercast/internal/pngchunk"
	"github.com/palettepress/rastercast/palette"
)

type parsedChunk struct {
	typ  string
	data []byte
}

func parseChunks(t *testing.T, out []byte) []parsedChunk {
	t.Helper()
	if !bytes.Equal(out[:8], pngchunk.Signature) {
		t.Fatalf("missing PNG signature")
	}
	pos := 8
	var chunks []parsedChunk
	for pos < len(out) {
		length := binary.BigEndian.Uint32(out[pos : pos+4])
		typ := string(out[pos+4 : pos+8])
		data := out[pos+8 : pos+8+int(length)]
		chunks = append(chunks, parsedChunk{typ: typ, data: data})
		pos += 8 + int(length) + 4
		if typ == "IEND" {
			break
		}
	}
	return chunks
}

func solidPixmap(w, h int, r, g, b, a uint32) palette.Pixmap {
	c := r<<24 | g<<16 | b<<8 | a
	px := make([]uint32, w*h)
	for i := range px {
		px[i] = c
	}
	return palette.Pixmap{Width: w, Height: h, Pixels: px}
}

func TestEncodeAllRequiresAFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeAll(&buf, nil, Options{}); err == nil {
		t.Fatal("expected error for zero frames")
	}
}

func TestEncodeAllRejectsMismatchedFrameSize(t *testing.T) {
	frames := []Frame{
		{Pixmap: solidPixmap(2, 2, 255, 0, 0, 255)},
		{Pixmap: solidPixmap(3, 2, 0, 255, 0, 255)},
	}
	var buf bytes.Buffer
	if err := EncodeAll(&buf, frames, Options{}); err == nil {
		t.Fatal("expected error for mismatched frame size")
	}
}

func TestSingleFrameChunkOrderNoAnimation(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, solidPixmap(2, 2, 10, 20, 30, 255)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	chunks := parseChunks(t, buf.Bytes())
	var types []string
	for _, c := range chunks {
		types = append(types, c.typ)
	}
	want := []string{"IHDR", "IDAT", "IEND"}
	if len(types) != len(want) {
		t.Fatalf("chunk order = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("chunk order = %v, want %v", types, want)
		}
	}
}

func TestIHDRIsTruecolorWithAlpha(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, solidPixmap(3, 4, 1, 2, 3, 255)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var ihdr []byte
	for _, c := range parseChunks(t, buf.Bytes()) {
		if c.typ == "IHDR" {
			ihdr = c.data
		}
	}
	if ihdr == nil {
		t.Fatal("missing IHDR")
	}
	width := binary.BigEndian.Uint32(ihdr[0:4])
	height := binary.BigEndian.Uint32(ihdr[4:8])
	if width != 3 || height != 4 {
		t.Errorf("IHDR dims = %dx%d, want 3x4", width, height)
	}
	if ihdr[8] != 8 {
		t.Errorf("IHDR bit depth = %d, want 8", ihdr[8])
	}
	if ihdr[9] != 6 {
		t.Errorf("IHDR color type = %d, want 6 (truecolor+alpha)", ihdr[9])
	}
}

func TestAnimatedChunkOrderAndSequencing(t *testing.T) {
	frames := []Frame{
		{Pixmap: solidPixmap(2, 1, 255, 0, 0, 255), DelayCs: 10},
		{Pixmap: solidPixmap(2, 1, 0, 255, 0, 255), DelayCs: 10},
		{Pixmap: solidPixmap(2, 1, 0, 0, 255, 255), DelayCs: 10},
	}
	var buf bytes.Buffer
	if err := EncodeAll(&buf, frames, Options{LoopCount: 0}); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	chunks := parseChunks(t, buf.Bytes())
	var types []string
	for _, c := range chunks {
		types = append(types, c.typ)
	}
	want := []string{"IHDR", "acTL", "fcTL", "IDAT", "fcTL", "fdAT", "fcTL", "fdAT", "IEND"}
	if len(types) != len(want) {
		t.Fatalf("chunk order = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("chunk order[%d] = %s, want %s (full: %v)", i, types[i], want[i], types)
		}
	}

	seq := uint32(0)
	for _, c := range chunks {
		switch c.typ {
		case "fcTL":
			if got := binary.BigEndian.Uint32(c.data[0:4]); got != seq {
				t.Errorf("fcTL sequence = %d, want %d", got, seq)
			}
			seq++
		case "fdAT":
			if got := binary.BigEndian.Uint32(c.data[0:4]); got != seq {
				t.Errorf("fdAT sequence = %d, want %d", got, seq)
			}
			seq++
		}
	}
}

func TestFCTLCarriesDelayAndDisposal(t *testing.T) {
	frames := []Frame{
		{Pixmap: solidPixmap(1, 1, 0, 0, 0, 255), DelayCs: 25, Disposal: 1, Blend: 1},
		{Pixmap: solidPixmap(1, 1, 0, 0, 0, 255), DelayCs: 25, Disposal: 1, Blend: 1},
	}
	var buf bytes.Buffer
	if err := EncodeAll(&buf, frames, Options{}); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	var firstFCTL []byte
	for _, c := range parseChunks(t, buf.Bytes()) {
		if c.typ == "fcTL" && firstFCTL == nil {
			firstFCTL = c.data
		}
	}
	if firstFCTL == nil {
		t.Fatal("missing fcTL")
	}
	delay := binary.BigEndian.Uint16(firstFCTL[20:22])
	if delay != 25 {
		t.Errorf("fcTL delay_num = %d, want 25", delay)
	}
	if firstFCTL[24] != 1 {
		t.Errorf("fcTL dispose_op = %d, want 1", firstFCTL[24])
	}
	if firstFCTL[25] != 1 {
		t.Errorf("fcTL blend_op = %d, want 1", firstFCTL[25])
	}
}

// TestScanlinesAlwaysUseSubFilter confirms truecolor rows are always Sub-
// filtered rather than chosen by the per-row heuristic png8codec uses:
// every row must start with filter byte 1, and a uniform-color frame's
// Sub deltas collapse the first pixel to its raw bytes and every
// following pixel to zero.
func TestScanlinesAlwaysUseSubFilter(t *testing.T) {
	frame := solidPixmap(2, 2, 10, 20, 30, 255)
	var buf bytes.Buffer
	if err := Encode(&buf, frame); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var idat []byte
	for _, c := range parseChunks(t, buf.Bytes()) {
		if c.typ == "IDAT" {
			idat = c.data
		}
	}
	if idat == nil {
		t.Fatal("missing IDAT")
	}

	zr, err := zlib.NewReader(bytes.NewReader(idat))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	decompressed, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("zlib read: %v", err)
	}

	want := []byte{
		1, 10, 20, 30, 255, 0, 0, 0, 0,
		1, 10, 20, 30, 255, 0, 0, 0, 0,
	}
	if !bytes.Equal(decompressed, want) {
		t.Fatalf("decompressed payload = %v, want %v", decompressed, want)
	}
}
