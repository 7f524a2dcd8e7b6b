package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/palettepress/rastercast/dither"
	"github.com/palettepress/rastercast/palette"
	"github.com/palettepress/rastercast/raster"
)

// preProcess runs before any subcommand action, parsing every global
// flag into cfg exactly once, mirroring the teacher's Before hook.
func preProcess(c *cli.Context) error {
	var err error

	if cfg.strength, err = parsePercentArg(c.String("strength"), true); err != nil {
		return errors.Wrap(err, "rastercast: --strength")
	}
	if cfg.strength == 0 {
		cfg.strength = 1.0
	}

	cfg.grayscale = c.Bool("grayscale")
	if cfg.saturation, err = parsePercentArg(c.String("saturation"), true); err != nil {
		return errors.Wrap(err, "rastercast: --saturation")
	}
	if cfg.brightness, err = parsePercentArg(c.String("brightness"), true); err != nil {
		return errors.Wrap(err, "rastercast: --brightness")
	}
	if cfg.contrast, err = parsePercentArg(c.String("contrast"), true); err != nil {
		return errors.Wrap(err, "rastercast: --contrast")
	}
	cfg.noExifRotation = c.Bool("no-exif-rotation")

	cfg.inputImages = make([]string, 0)
	for _, path := range c.StringSlice("in") {
		if strings.Contains(path, "*") {
			paths, gerr := filepath.Glob(path)
			if gerr != nil {
				return errors.Wrapf(gerr, "rastercast: bad glob pattern %q", path)
			}
			cfg.inputImages = append(cfg.inputImages, paths...)
		} else {
			cfg.inputImages = append(cfg.inputImages, path)
		}
	}
	if len(cfg.inputImages) == 0 {
		return errors.New("rastercast: at least one --in is required")
	}

	cfg.outPath = c.String("out")
	cfg.outFormat = strings.ToLower(c.String("format"))
	if cfg.outFormat == "" {
		cfg.outFormat = formatFromExt(cfg.outPath)
	}
	cfg.noOverwrite = c.Bool("no-overwrite")
	cfg.compression = c.String("compression")

	cfg.width = int(c.Uint("width"))
	cfg.height = int(c.Uint("height"))
	cfg.upscale = int(c.Uint("upscale"))
	if cfg.upscale == 0 {
		cfg.upscale = 1
	}
	cfg.scale = c.Float64("scale")
	cfg.sampleColors = c.Int("sample-colors")

	cfg.loopCount = int(c.Uint("loop"))
	cfg.fpsFlag = c.Float64("fps")
	if cfg.fpsFlag > 0 {
		cfg.delayCs = int(100.0/cfg.fpsFlag + 0.5)
	} else {
		cfg.delayCs = 10
	}

	if raw := c.String("palette"); strings.HasPrefix(raw, "@") {
		f, ferr := os.Open(raw[1:])
		if ferr != nil {
			return errors.Wrap(ferr, "rastercast: --palette preload file")
		}
		defer f.Close()
		cfg.pal, err = palette.LoadPreload(f)
		if err != nil {
			return errors.Wrap(err, "rastercast: --palette preload file")
		}
	} else {
		colors, cerr := parseColors("palette", c)
		if cerr != nil {
			return errors.Wrap(cerr, "rastercast: --palette")
		}
		cfg.pal, err = colorsToPalette(colors)
		if err != nil {
			return errors.Wrap(err, "rastercast: --palette")
		}
	}

	recolorColors, err := parseColors("recolor", c)
	if err != nil {
		return errors.Wrap(err, "rastercast: --recolor")
	}
	if len(recolorColors) > 0 {
		cfg.recolor, err = colorsToPalette(recolorColors)
		if err != nil {
			return errors.Wrap(err, "rastercast: --recolor")
		}
	}

	return nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		return "gif"
	case ".apng":
		return "apng"
	default:
		return "png8"
	}
}

// loadFrames decodes every --in entry into a raster.Frame, applying the
// shared pre-dither adjustments from getInputImage.
func loadFrames(c *cli.Context) ([]raster.Frame, error) {
	frames := make([]raster.Frame, len(cfg.inputImages))
	for i, path := range cfg.inputImages {
		img, err := getInputImage(path, c)
		if err != nil {
			return nil, errors.Wrapf(err, "rastercast: loading %s", path)
		}
		frames[i] = imageToPixmap(img)
	}
	return frames, nil
}

// runEncode dithers the loaded input frames with algorithm and writes
// the result in whatever format --format/--out selected.
func runEncode(c *cli.Context, algorithm dither.Algorithm) error {
	frames, err := loadFrames(c)
	if err != nil {
		return err
	}

	pal := cfg.pal
	if cfg.recolor != nil {
		// Recoloring an indexed format means the written palette itself
		// is the substitution palette: dither against it directly rather
		// than remapping pixels again after the fact.
		pal = cfg.recolor
	}

	opts := raster.Options{
		Algorithm:      algorithm,
		DitherStrength: cfg.strength,
		Palette:        pal,
		DelayCs:        cfg.delayCs,
		LoopCount:      cfg.loopCount,
		Upscale:        cfg.upscale,
		Scale:          cfg.scale,
	}

	level, err := compressionLevel(cfg.compression)
	if err != nil {
		return errors.Wrap(err, "rastercast: --compression")
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

	switch cfg.outFormat {
	case "gif":
		return errors.Wrap(raster.EncodeGIF(f, frames, opts), "rastercast: encode gif")
	case "apng":
		if cfg.recolor != nil {
			frames = raster.Recolor(frames, cfg.recolor)
		}
		delays := make([]int, len(frames))
		for i := range delays {
			delays[i] = cfg.delayCs
		}
		return errors.Wrap(raster.EncodeAPNG(f, frames, delays, cfg.loopCount, cfg.upscale), "rastercast: encode apng")
	default: // png8
		_ = level // validated only: neither EncodePNG8 nor EncodeAPNG takes a compression level, so both write at the codec default
		return errors.Wrap(raster.EncodePNG8(f, frames, opts), "rastercast: encode png8")
	}
}

var orderedCommand = &cli.Command{
	Name:                   "ordered",
	Usage:                  "stateless per-pixel ordered dithering",
	ArgsUsage:              "gradient-noise|blue-noise|chaotic-noise|roberts|loaf",
	UseShortOptionHandling: true,
	Action: func(c *cli.Context) error {
		alg, err := parseOrderedAlgorithm(c.Args().First())
		if err != nil {
			return err
		}
		return runEncode(c, alg)
	},
}

var diffusionCommand = &cli.Command{
	Name:                   "diffusion",
	Usage:                  "error-diffusion and blue-noise/R2 hybrid dithering",
	ArgsUsage:              "diffusion|burkes|scatter|neue|woven|dodgy|wren|overboard",
	UseShortOptionHandling: true,
	Action: func(c *cli.Context) error {
		alg, err := parseDiffusionAlgorithm(c.Args().First())
		if err != nil {
			return err
		}
		return runEncode(c, alg)
	},
}

var patternCommand = &cli.Command{
	Name:                   "pattern",
	Usage:                  "Knoll pattern dithering",
	UseShortOptionHandling: true,
	Action: func(c *cli.Context) error {
		return runEncode(c, dither.Pattern)
	},
}

func normalizeAlgName(name string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(name))
}

func parseOrderedAlgorithm(name string) (dither.Algorithm, error) {
	switch normalizeAlgName(name) {
	case "gradientnoise", "":
		return dither.GradientNoise, nil
	case "bluenoise":
		return dither.BlueNoise, nil
	case "chaoticnoise":
		return dither.ChaoticNoise, nil
	case "roberts":
		return dither.Roberts, nil
	case "loaf":
		return dither.Loaf, nil
	default:
		return 0, errors.Errorf("rastercast: ordered: unknown algorithm %q", name)
	}
}

func parseDiffusionAlgorithm(name string) (dither.Algorithm, error) {
	switch normalizeAlgName(name) {
	case "diffusion", "":
		return dither.Diffusion, nil
	case "burkes":
		return dither.Burkes, nil
	case "scatter":
		return dither.Scatter, nil
	case "neue":
		return dither.Neue, nil
	case "woven":
		return dither.Woven, nil
	case "dodgy":
		return dither.Dodgy, nil
	case "wren":
		return dither.Wren, nil
	case "overboard":
		return dither.Overboard, nil
	default:
		return 0, errors.Errorf("rastercast: diffusion: unknown algorithm %q", name)
	}
}
