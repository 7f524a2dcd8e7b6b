package main

import (
	"encoding/json"
	"image"
	"image/color"
	"math/rand"
	"os"
	"strconv"
	"strings"

	ditherv2 "github.com/makeworld-the-better-one/dither/v2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/palettepress/rastercast/dither"
	"github.com/palettepress/rastercast/gifcodec"
	"github.com/palettepress/rastercast/palette"
	"github.com/palettepress/rastercast/png8codec"
)

// legacyCommand exposes dither/v2's own Ditherer directly: its ordered
// matrices (Bayer, the named clustered-dot/line ODMs) and named
// error-diffusion matrices cover algorithms the ~15 named ones above
// don't. Grounded directly on the teacher's random/bayer/odm/edm
// subcommands and its DitherPaletted-based processImages path, adapted
// to write through gifcodec/png8codec instead of image/gif and
// image/png.
var legacyCommand = &cli.Command{
	Name:  "legacy",
	Usage: "dither using dither/v2's matrix/mapper API directly",
	Subcommands: []*cli.Command{
		legacyRandomCommand,
		legacyBayerCommand,
		legacyODMCommand,
		legacyEDMCommand,
	},
}

func legacyDitherer() *ditherv2.Ditherer {
	colors := make([]color.Color, cfg.pal.ColorCount())
	for i := range colors {
		r, g, b, a := cfg.pal.EntryRGBA(i)
		colors[i] = color.NRGBA{R: r, G: g, B: b, A: a}
	}
	return ditherv2.NewDitherer(colors)
}

// runLegacy dithers every loaded input image with d via DitherPaletted,
// then writes the resulting indices against cfg.pal (or cfg.recolor)
// using the same gifcodec/png8codec writers the main algorithm
// subcommands use. APNG is not offered under legacy since it's
// truecolor and has no palette/index concept to dither into.
func runLegacy(c *cli.Context, d *ditherv2.Ditherer) error {
	if cfg.outFormat == "apng" {
		return errors.New("rastercast: legacy subcommands require --format gif or png8")
	}

	indexed := make([]dither.IndexedFrame, len(cfg.inputImages))
	for i, path := range cfg.inputImages {
		img, err := getInputImage(path, c)
		if err != nil {
			return errors.Wrapf(err, "rastercast: loading %s", path)
		}
		paletted := d.DitherPaletted(img)
		indexed[i] = palettedToIndexedFrame(paletted)
	}

	if cfg.upscale > 1 {
		for i, f := range indexed {
			indexed[i] = upscaleIndexed(f, cfg.upscale)
		}
	}

	pal := cfg.pal
	if cfg.recolor != nil {
		pal = cfg.recolor
	}

	path, err := outputPath(cfg.outPath, 0, 1)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "rastercast: creating output")
	}
	defer f.Close()

	if cfg.outFormat == "gif" {
		gframes := make([]gifcodec.Frame, len(indexed))
		for i, idx := range indexed {
			var p *palette.Palette
			if i == 0 {
				p = pal
			}
			gframes[i] = gifcodec.Frame{Indexed: idx, Palette: p, DelayCs: cfg.delayCs, Disposal: gifcodec.DisposeNone}
		}
		return errors.Wrap(gifcodec.EncodeAll(f, gframes, gifcodec.Options{LoopCount: cfg.loopCount}), "rastercast: encode gif")
	}

	pframes := make([]png8codec.Frame, len(indexed))
	for i, idx := range indexed {
		pframes[i] = png8codec.Frame{Indexed: idx, DelayCs: cfg.delayCs}
	}
	return errors.Wrap(png8codec.EncodeAll(f, pframes, pal, png8codec.Options{LoopCount: uint32(cfg.loopCount)}), "rastercast: encode png8")
}

func palettedToIndexedFrame(p *image.Paletted) dither.IndexedFrame {
	b := p.Bounds()
	w, h := b.Dx(), b.Dy()
	out := dither.IndexedFrame{Width: w, Height: h, Indices: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		srcRow := p.Pix[y*p.Stride : y*p.Stride+w]
		copy(out.Indices[y*w:(y+1)*w], srcRow)
	}
	return out
}

func upscaleIndexed(f dither.IndexedFrame, factor int) dither.IndexedFrame {
	out := dither.IndexedFrame{Width: f.Width * factor, Height: f.Height * factor, Indices: make([]byte, f.Width*factor*f.Height*factor)}
	for y := 0; y < out.Height; y++ {
		sy := y / factor
		for x := 0; x < out.Width; x++ {
			sx := x / factor
			out.Indices[y*out.Width+x] = f.Indices[sy*f.Width+sx]
		}
	}
	return out
}

var legacyRandomCommand = &cli.Command{
	Name:      "random",
	Usage:     "per-channel uniform random noise (dither/v2 RandomNoiseRGB/Grayscale)",
	ArgsUsage: "[--seed N] min max | minR maxR minG maxG minB maxB",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "seed", Aliases: []string{"s"}},
	},
	Action: func(c *cli.Context) error {
		args := parseArgs(c.Args().Slice(), " ,")
		if len(args) != 2 && len(args) != 6 {
			return errors.New("rastercast: legacy random needs 2 or 6 arguments")
		}

		floatArgs := make([]float32, len(args))
		for i, arg := range args {
			v, err := parsePercentArg(arg, true)
			if err != nil {
				return err
			}
			floatArgs[i] = float32(v)
		}

		if c.IsSet("seed") {
			rand.Seed(c.Int64("seed"))
		}

		d := legacyDitherer()
		if len(floatArgs) == 2 {
			if cfg.grayscale {
				d.Mapper = ditherv2.RandomNoiseGrayscale(floatArgs[0], floatArgs[1])
			} else {
				d.Mapper = ditherv2.RandomNoiseRGB(floatArgs[0], floatArgs[1], floatArgs[0], floatArgs[1], floatArgs[0], floatArgs[1])
			}
		} else {
			d.Mapper = ditherv2.RandomNoiseRGB(floatArgs[0], floatArgs[1], floatArgs[2], floatArgs[3], floatArgs[4], floatArgs[5])
		}
		if c.IsSet("seed") {
			d.SingleThreaded = true
		}
		return runLegacy(c, d)
	},
}

var legacyBayerCommand = &cli.Command{
	Name:      "bayer",
	Usage:     "ordered dithering with an NxM Bayer matrix (dither/v2 Bayer)",
	ArgsUsage: "WxH",
	Action: func(c *cli.Context) error {
		args := parseArgs(c.Args().Slice(), " ,x")
		if len(args) != 2 {
			return errors.New("rastercast: legacy bayer needs 2 arguments, e.g. 4x4")
		}
		dims := make([]uint, 2)
		for i, arg := range args {
			u, err := strconv.ParseUint(arg, 10, 0)
			if err != nil {
				return err
			}
			dims[i] = uint(u)
		}
		x, y := dims[0], dims[1]
		if x == 0 || y == 0 {
			return errors.New("rastercast: neither bayer dimension can be 0")
		}
		if x == 1 && y == 1 {
			return errors.New("rastercast: a 1x1 bayer matrix will not dither the image")
		}
		if ((x&(x-1)) != 0 || (y&(y-1)) != 0) &&
			!((x == 3 && y == 3) || (x == 5 && y == 3) || (x == 3 && y == 5)) {
			return errors.New("rastercast: both bayer dimensions must be powers of two")
		}

		d := legacyDitherer()
		d.Mapper = ditherv2.Bayer(x, y, float32(cfg.strength))
		return runLegacy(c, d)
	},
}

var odmByName = map[string]ditherv2.OrderedDitherMatrix{
	"clustereddot4x4":            ditherv2.ClusteredDot4x4,
	"clustereddotdiagonal8x8":    ditherv2.ClusteredDotDiagonal8x8,
	"vertical5x3":                ditherv2.Vertical5x3,
	"horizontal3x5":              ditherv2.Horizontal3x5,
	"clustereddotdiagonal6x6":    ditherv2.ClusteredDotDiagonal6x6,
	"clustereddotdiagonal8x8_2":  ditherv2.ClusteredDotDiagonal8x8_2,
	"clustereddotdiagonal16x16":  ditherv2.ClusteredDotDiagonal16x16,
	"clustereddot6x6":            ditherv2.ClusteredDot6x6,
	"clustereddotspiral5x5":      ditherv2.ClusteredDotSpiral5x5,
	"clustereddothorizontalline": ditherv2.ClusteredDotHorizontalLine,
	"clustereddotverticalline":   ditherv2.ClusteredDotVerticalLine,
	"clustereddot8x8":            ditherv2.ClusteredDot8x8,
	"clustereddot6x6_2":          ditherv2.ClusteredDot6x6_2,
	"clustereddot6x6_3":          ditherv2.ClusteredDot6x6_3,
	"clustereddotdiagonal8x8_3":  ditherv2.ClusteredDotDiagonal8x8_3,
}

var legacyODMCommand = &cli.Command{
	Name:      "odm",
	Usage:     "ordered dithering with a named, inline-JSON, or file-based matrix",
	ArgsUsage: "name|json|path",
	Action: func(c *cli.Context) error {
		args := c.Args().Slice()
		if len(args) != 1 {
			return errors.New("rastercast: legacy odm accepts exactly one argument")
		}

		matrix, ok := odmByName[strings.ReplaceAll(strings.ToLower(args[0]), "-", "_")]
		if !ok {
			var perr error
			matrix, perr = parseMatrixArg(args[0])
			if perr != nil {
				return perr
			}
			if matrix.Max == 0 {
				return errors.New("rastercast: the max value of the matrix cannot be 0")
			}
			if err := validateRectangular(matrix.Matrix); err != nil {
				return err
			}
		}

		d := legacyDitherer()
		d.Mapper = ditherv2.PixelMapperFromMatrix(matrix, float32(cfg.strength))
		return runLegacy(c, d)
	},
}

var edmByName = map[string]ditherv2.ErrorDiffusionMatrix{
	"simple2d":            ditherv2.Simple2D,
	"floydsteinberg":      ditherv2.FloydSteinberg,
	"falsefloydsteinberg": ditherv2.FalseFloydSteinberg,
	"jarvisjudiceninke":   ditherv2.JarvisJudiceNinke,
	"atkinson":            ditherv2.Atkinson,
	"stucki":              ditherv2.Stucki,
	"burkes":              ditherv2.Burkes,
	"sierra":              ditherv2.Sierra,
	"sierra3":             ditherv2.Sierra3,
	"tworowsierra":        ditherv2.TwoRowSierra,
	"sierralite":          ditherv2.SierraLite,
	"sierra2_4a":          ditherv2.Sierra2_4A,
	"stevenpigeon":        ditherv2.StevenPigeon,
}

var legacyEDMCommand = &cli.Command{
	Name:      "edm",
	Usage:     "error-diffusion dithering with a named, inline-JSON, or file-based matrix",
	ArgsUsage: "name|json|path",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "serpentine"},
	},
	Action: func(c *cli.Context) error {
		args := c.Args().Slice()
		if len(args) != 1 {
			return errors.New("rastercast: legacy edm accepts exactly one argument")
		}

		matrix, ok := edmByName[strings.ReplaceAll(strings.ToLower(args[0]), "-", "_")]
		if !ok {
			if err := json.Unmarshal([]byte(args[0]), &matrix); err != nil {
				raw, rerr := os.ReadFile(args[0])
				if rerr != nil {
					return errors.New("rastercast: couldn't process argument as matrix name, inline JSON, or path to accessible JSON file")
				}
				if jerr := json.Unmarshal(raw, &matrix); jerr != nil {
					return errors.New("rastercast: couldn't process argument as matrix name, inline JSON, or path to accessible JSON file")
				}
			}
			if len(matrix) == 0 {
				return errors.New("rastercast: matrix is empty")
			}
			if err := validateRectangularEDM(matrix); err != nil {
				return err
			}
		}

		d := legacyDitherer()
		d.Matrix = ditherv2.ErrorDiffusionStrength(matrix, float32(cfg.strength))
		d.Serpentine = c.Bool("serpentine")
		return runLegacy(c, d)
	},
}

func parseMatrixArg(arg string) (ditherv2.OrderedDitherMatrix, error) {
	var matrix ditherv2.OrderedDitherMatrix
	if err := json.Unmarshal([]byte(arg), &matrix); err == nil {
		return matrix, nil
	}
	raw, err := os.ReadFile(arg)
	if err != nil {
		return matrix, errors.New("rastercast: couldn't process argument as matrix name, inline JSON, or path to accessible JSON file")
	}
	if err := json.Unmarshal(raw, &matrix); err != nil {
		return matrix, errors.New("rastercast: couldn't process argument as matrix name, inline JSON, or path to accessible JSON file")
	}
	return matrix, nil
}

func validateRectangular(m [][]float64) error {
	if len(m) == 0 {
		return errors.New("rastercast: matrix is empty")
	}
	width := len(m[0])
	if width == 0 {
		return errors.New("rastercast: matrix has empty row")
	}
	for _, row := range m {
		if len(row) != width {
			return errors.New("rastercast: matrix is not rectangular, all rows must be the same length")
		}
	}
	return nil
}

func validateRectangularEDM(m ditherv2.ErrorDiffusionMatrix) error {
	if len(m) == 0 {
		return errors.New("rastercast: matrix is empty")
	}
	width := len(m[0])
	if width == 0 {
		return errors.New("rastercast: matrix has empty row")
	}
	for _, row := range m {
		if len(row) != width {
			return errors.New("rastercast: matrix is not rectangular, all rows must be the same length")
		}
	}
	return nil
}
