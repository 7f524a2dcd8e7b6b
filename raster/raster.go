// Package raster is the pipeline glue tying palette, dither, and the
// three codec packages together: given a sequence of frames and a
// palette strategy, it dithers each frame (in parallel, fork-join) and
// writes the result as GIF, PNG8, or truecolor APNG.
package raster

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"

	"golang.org/x/image/draw"

	"github.com/palettepress/rastercast/apngcodec"
	"github.com/palettepress/rastercast/dither"
	"github.com/palettepress/rastercast/gifcodec"
	"github.com/palettepress/rastercast/palette"
	"github.com/palettepress/rastercast/png8codec"
)

// Frame is a type alias for palette.Pixmap: the pipeline and the
// analyzers it hands frames to share one definition instead of
// converting between two nearly-identical structs.
type Frame = palette.Pixmap

// PaletteMode chooses how a multi-frame sequence's palette is built.
type PaletteMode int

const (
	// GlobalPalette analyzes every frame together into one shared
	// palette, used for all frames, written once.
	GlobalPalette PaletteMode = iota
	// PerFramePalette analyzes each frame independently, producing one
	// palette per frame. GIF supports this with local color tables;
	// PNG8 and APNG always use GlobalPalette, since acTL/fcTL animation
	// has no per-frame palette chunk.
	PerFramePalette
)

// Options controls one encode pass across an entire frame sequence.
type Options struct {
	Algorithm      dither.Algorithm
	DitherStrength float64
	PaletteMode    PaletteMode
	// Palette, if non-nil, is used as-is instead of analyzing frames
	// (e.g. a preloaded palette file). Required when PaletteMode is
	// irrelevant to the caller's intent.
	Palette *palette.Palette
	// ColorCount and Threshold drive palette analysis when Palette is
	// nil; ColorCount defaults to 255 (reserving a transparent slot) and
	// Threshold defaults to 6.0, the minimum pairwise color distance
	// farthest-point selection starts from before it relaxes.
	ColorCount int
	Threshold  float64
	// DelayCs is the per-frame hold time in centiseconds, applied to
	// every frame uniformly unless FrameDelaysCs is set.
	DelayCs       int
	FrameDelaysCs []int
	LoopCount     int
	// Upscale, when > 1, pixel-replicates every frame by this integer
	// factor after dithering (nearest-neighbor), preserving hard edges
	// in the palette result.
	Upscale int
	// Scale, when non-zero and != 1, resamples every frame to
	// width*Scale x height*Scale BEFORE dithering, using a
	// high-quality Catmull-Rom filter — distinct from Upscale, which
	// runs after dithering and must stay block-sharp.
	Scale float64
	// Disposal is the GIF disposal method written into every frame's
	// Graphic Control Extension. Zero (not one of gifcodec's valid
	// Disposal values) means unconfigured, in which case EncodeGIF
	// defaults to DisposeBackground.
	Disposal gifcodec.Disposal
	// Logger receives progress messages (frames analyzed, palette size
	// chosen). Defaults to log.Default() when nil.
	Logger *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

const defaultColorCount = 255
const defaultThreshold = 6.0

func (o Options) colorCount() int {
	if o.ColorCount > 0 {
		return o.ColorCount
	}
	return defaultColorCount
}

func (o Options) threshold() float64 {
	if o.Threshold > 0 {
		return o.Threshold
	}
	return defaultThreshold
}

func (o Options) disposal() gifcodec.Disposal {
	if o.Disposal != 0 {
		return o.Disposal
	}
	return gifcodec.DisposeBackground
}

// delayFor returns the hold time for frame i.
func (o Options) delayFor(i int) int {
	if i < len(o.FrameDelaysCs) {
		return o.FrameDelaysCs[i]
	}
	return o.DelayCs
}

// reducedFrame is one frame's dither output plus the palette it was
// reduced against, produced by the parallel analysis stage below.
type reducedFrame struct {
	indexed dither.IndexedFrame
	pal     *palette.Palette
}

// reduceFrames dithers every frame against the chosen palette(s) in
// parallel, fan-out/fan-in with no shared mutable state across workers:
// each goroutine only reads its own frame and writes its own output
// slot, mirroring the apng reference encoder's per-frame goroutine
// pool feeding an index-tagged result channel.
func reduceFrames(frames []Frame, opts Options) ([]reducedFrame, error) {
	if len(frames) == 0 {
		return nil, errors.New("raster: need at least one frame")
	}

	var globalPal *palette.Palette
	var err error
	switch {
	case opts.Palette != nil:
		globalPal = opts.Palette
	case opts.PaletteMode == GlobalPalette:
		globalPal, err = palette.AnalyzeFrames(frames, opts.threshold(), opts.colorCount())
		if err != nil {
			return nil, fmt.Errorf("raster: analyze global palette: %w", err)
		}
	}
	if globalPal != nil {
		globalPal = globalPal.WithStrength(opts.DitherStrength)
		opts.logger().Printf("raster: global palette ready, %d colors", globalPal.ColorCount())
	}

	out := make([]reducedFrame, len(frames))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, f := range frames {
		wg.Add(1)
		go func(i int, f Frame) {
			defer wg.Done()

			pal := globalPal
			if pal == nil {
				p, err := palette.Analyze(f, opts.threshold(), opts.colorCount())
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("raster: analyze frame %d palette: %w", i, err)
					}
					mu.Unlock()
					return
				}
				pal = p.WithStrength(opts.DitherStrength)
			}

			out[i] = reducedFrame{
				indexed: dither.Reduce(opts.Algorithm, f, pal, i),
				pal:     pal,
			}
		}(i, f)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// upscaleFrame pixel-replicates f by factor using nearest-neighbor
// resampling, keeping every replicated block a flat color.
func upscaleFrame(f Frame, factor int) Frame {
	if factor <= 1 {
		return f
	}
	return resampleFrame(f, f.Width*factor, f.Height*factor, draw.NearestNeighbor)
}

// upscaleIndexed pixel-replicates an already-dithered IndexedFrame by
// factor, index-for-index: unlike upscaleFrame (used by EncodeAPNG,
// which never dithers), this runs after reduceFrames so the palette
// chosen during dithering is preserved exactly in every replicated
// block instead of being re-derived from resampled color data.
func upscaleIndexed(f dither.IndexedFrame, factor int) dither.IndexedFrame {
	if factor <= 1 {
		return f
	}
	w, h := f.Width*factor, f.Height*factor
	out := dither.IndexedFrame{Width: w, Height: h, Indices: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		sy := y / factor
		for x := 0; x < w; x++ {
			sx := x / factor
			out.Indices[y*w+x] = f.Indices[sy*f.Width+sx]
		}
	}
	return out
}

// scaleFrame resamples f to the given dimensions with a high-quality
// Catmull-Rom filter, used to bring mismatched frame sizes (or an
// explicit Options.Scale) into agreement before dithering.
func scaleFrame(f Frame, width, height int) Frame {
	if width == f.Width && height == f.Height {
		return f
	}
	return resampleFrame(f, width, height, draw.CatmullRom)
}

func resampleFrame(f Frame, width, height int, scaler draw.Scaler) Frame {
	src := pixmapToNRGBA(f)
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return nrgbaToPixmap(dst)
}

// EncodeGIF dithers frames and writes a GIF89a animation (or single
// still image when len(frames)==1).
func EncodeGIF(w io.Writer, frames []Frame, opts Options) error {
	frames = applyScale(frames, opts.Scale)
	reduced, err := reduceFrames(frames, opts)
	if err != nil {
		return err
	}
	upscaleReduced(reduced, opts.Upscale)

	gframes := make([]gifcodec.Frame, len(reduced))
	for i, r := range reduced {
		pal := r.pal
		if i > 0 && opts.PaletteMode == GlobalPalette {
			pal = nil // reuse the writer's global palette
		}
		gframes[i] = gifcodec.Frame{
			Indexed:  r.indexed,
			Palette:  pal,
			DelayCs:  opts.delayFor(i),
			Disposal: opts.disposal(),
		}
	}
	if gframes[0].Palette == nil {
		gframes[0].Palette = reduced[0].pal
	}
	return gifcodec.EncodeAll(w, gframes, gifcodec.Options{LoopCount: opts.LoopCount})
}

// EncodePNG8 dithers frames against one shared global palette (PNG8
// animation has no per-frame palette chunk, so PerFramePalette is
// coerced to GlobalPalette) and writes an indexed-color PNG8/APNG file.
func EncodePNG8(w io.Writer, frames []Frame, opts Options) error {
	opts.PaletteMode = GlobalPalette
	frames = applyScale(frames, opts.Scale)
	reduced, err := reduceFrames(frames, opts)
	if err != nil {
		return err
	}
	upscaleReduced(reduced, opts.Upscale)

	pframes := make([]png8codec.Frame, len(reduced))
	for i, r := range reduced {
		pframes[i] = png8codec.Frame{
			Indexed:  r.indexed,
			DelayCs:  opts.delayFor(i),
			Disposal: 0,
			Blend:    0,
		}
	}
	return png8codec.EncodeAll(w, pframes, reduced[0].pal, png8codec.Options{LoopCount: uint32(opts.LoopCount)})
}

// EncodeAPNG writes a truecolor animated PNG: no palette or dithering
// at all, just the raw frames re-encoded with PNG's Sub-filtered
// RGBA8 scanlines.
func EncodeAPNG(w io.Writer, frames []Frame, delayCs []int, loopCount int, upscale int) error {
	frames = upscaleAll(frames, upscale)
	aframes := make([]apngcodec.Frame, len(frames))
	for i, f := range frames {
		d := 0
		if i < len(delayCs) {
			d = delayCs[i]
		}
		aframes[i] = apngcodec.Frame{Pixmap: f, DelayCs: d}
	}
	return apngcodec.EncodeAll(w, aframes, apngcodec.Options{LoopCount: uint32(loopCount)})
}

func upscaleAll(frames []Frame, factor int) []Frame {
	if factor <= 1 {
		return frames
	}
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = upscaleFrame(f, factor)
	}
	return out
}

// upscaleReduced pixel-replicates every already-dithered frame in place,
// the post-dither counterpart to upscaleAll used by EncodeGIF/EncodePNG8.
func upscaleReduced(reduced []reducedFrame, factor int) {
	if factor <= 1 {
		return
	}
	for i := range reduced {
		reduced[i].indexed = upscaleIndexed(reduced[i].indexed, factor)
	}
}

// applyScale resizes every frame by factor (if != 0 and != 1) and, for
// sequences whose frames disagree in size, resamples every frame after
// the first to match frame 0's (scaled) dimensions: GIF/PNG8/APNG all
// require one fixed logical canvas size per animation.
func applyScale(frames []Frame, factor float64) []Frame {
	if len(frames) == 0 {
		return frames
	}
	targetW, targetH := frames[0].Width, frames[0].Height
	if factor != 0 && factor != 1 {
		targetW = int(float64(targetW) * factor)
		targetH = int(float64(targetH) * factor)
	}
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = scaleFrame(f, targetW, targetH)
	}
	return out
}

// Recolor remaps every pixel in frames through a substitution palette,
// matching color-for-color by nearest match in target rather than
// dithering: a preview/branding pass applied before the main encode,
// e.g. swapping a source image's colors for a house palette.
func Recolor(frames []Frame, target *palette.Palette) []Frame {
	out := make([]Frame, len(frames))
	for fi, f := range frames {
		pixels := make([]uint32, len(f.Pixels))
		for i, px := range f.Pixels {
			r := int32(px>>24) & 0xFF
			g := int32(px>>16) & 0xFF
			b := int32(px>>8) & 0xFF
			a := px & 0xFF
			idx := target.Nearest(r, g, b)
			tr, tg, tb, _ := target.EntryRGBA(int(idx))
			pixels[i] = uint32(tr)<<24 | uint32(tg)<<16 | uint32(tb)<<8 | a
		}
		out[fi] = Frame{Width: f.Width, Height: f.Height, Pixels: pixels}
	}
	return out
}

func pixmapToNRGBA(f Frame) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, px := range f.Pixels {
		img.Pix[i*4+0] = byte(px >> 24)
		img.Pix[i*4+1] = byte(px >> 16)
		img.Pix[i*4+2] = byte(px >> 8)
		img.Pix[i*4+3] = byte(px)
	}
	return img
}

func nrgbaToPixmap(img *image.NRGBA) Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]uint32, w*h)
	for i := range pixels {
		r := uint32(img.Pix[i*4+0])
		g := uint32(img.Pix[i*4+1])
		b := uint32(img.Pix[i*4+2])
		a := uint32(img.Pix[i*4+3])
		pixels[i] = r<<24 | g<<16 | b<<8 | a
	}
	return Frame{Width: w, Height: h, Pixels: pixels}
}
