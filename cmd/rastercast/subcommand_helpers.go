package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/mccutchen/palettor"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/image/colornames"

	"github.com/palettepress/rastercast/palette"
	"github.com/palettepress/rastercast/raster"
)

// parsePercentArg takes a string like "0.5" or "50%" and returns a float
// like 0.5 or 50, depending on maxOne. An empty string returns 0.
func parsePercentArg(arg string, maxOne bool) (float64, error) {
	if arg == "" {
		return 0, nil
	}
	if strings.HasSuffix(arg, "%") {
		arg = arg[:len(arg)-1]
		f64, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, err
		}
		if maxOne {
			f64 /= 100.0
		}
		return f64, nil
	}
	f64, err := strconv.ParseFloat(arg, 64)
	if !maxOne {
		f64 *= 100.0
	}
	return f64, err
}

// globalFlag returns the value of flag at the app's top level, even when
// called from inside a subcommand's Action.
func globalFlag(flag string, c *cli.Context) interface{} {
	ancestor := c.Lineage()[len(c.Lineage())-1]
	if len(ancestor.Args().Slice()) == 0 {
		return c.Lineage()[len(c.Lineage())-2].Value(flag)
	}
	return ancestor.Value(flag)
}

// parseArgs splits args on any rune in splitRunes.
func parseArgs(args []string, splitRunes string) []string {
	finalArgs := make([]string, 0)
	for _, arg := range args {
		finalArgs = append(finalArgs, strings.FieldsFunc(arg, func(r rune) bool {
			return strings.ContainsRune(splitRunes, r)
		})...)
	}
	return finalArgs
}

func hexToColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b uint8
	n, err := fmt.Sscanf(strings.ToLower(hex), "%02x%02x%02x", &r, &g, &b)
	if err != nil {
		return color.NRGBA{}, err
	}
	if n != 3 {
		return color.NRGBA{}, fmt.Errorf("%s is not a hex color", hex)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

func rgbToColor(s string) (color.NRGBA, error) {
	var r, g, b uint8
	n, err := fmt.Sscanf(s, "%d,%d,%d", &r, &g, &b)
	if err != nil {
		return color.NRGBA{}, err
	}
	if n != 3 {
		return color.NRGBA{}, fmt.Errorf("%s is not an RGB tuple", s)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

func rgbaToColor(s string) (color.NRGBA, error) {
	var r, g, b, a uint8
	n, err := fmt.Sscanf(s, "%d,%d,%d,%d", &r, &g, &b, &a)
	if err != nil {
		return color.NRGBA{}, err
	}
	if n != 4 {
		return color.NRGBA{}, fmt.Errorf("%s is not an RGBA tuple", s)
	}
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

// extractInputPalette extracts a seed palette from the first input image
// using palettor, the same sampling shape the teacher's "sample" palette
// source used.
func extractInputPalette(c *cli.Context) ([]color.Color, error) {
	img, err := getInputImage(cfg.inputImages[0], c)
	if err != nil {
		return nil, fmt.Errorf("error loading image for palette extraction %q: %w", cfg.inputImages[0], err)
	}

	thumbnail := imaging.Resize(img, 200, 200, imaging.NearestNeighbor)
	extracted, err := palettor.Extract(cfg.sampleColors, 500, thumbnail)
	if err != nil {
		return nil, fmt.Errorf("error extracting image palette: %w", err)
	}

	log.Printf("rastercast: extracted palette: %v", extracted.Colors())
	return extracted.Colors(), nil
}

// parseColorArg parses one color token: RGB tuple, RGBA tuple (recolor
// only), hex code, grayscale number, or SVG color name.
func parseColorArg(flag, arg string) (color.NRGBA, error) {
	if strings.Count(arg, ",") == 2 {
		return rgbToColor(arg)
	}
	if flag == "recolor" && strings.Count(arg, ",") == 3 {
		return rgbaToColor(arg)
	}
	if c, err := hexToColor(arg); err == nil {
		return c, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n > 255 || n < 0 {
			return color.NRGBA{}, fmt.Errorf("%s: single numbers like %d must be in range 0-255", flag, n)
		}
		return color.NRGBA{R: uint8(n), G: uint8(n), B: uint8(n), A: 255}, nil
	}
	if named, ok := colornames.Map[strings.ToLower(arg)]; ok {
		return color.NRGBAModel.Convert(named).(color.NRGBA), nil
	}
	return color.NRGBA{}, fmt.Errorf("%s: %q not recognized as an RGB/RGBA tuple, hex code, number 0-255, or SVG color name", flag, arg)
}

// parseColors parses a whole --palette/--recolor argument string,
// supporting the special "sample" keyword for palettor auto-extraction.
func parseColors(flag string, c *cli.Context) ([]color.Color, error) {
	raw := globalFlag(flag, c)
	if raw == nil {
		return nil, nil
	}
	args := parseArgs([]string{raw.(string)}, " ,")
	if len(args) == 1 && args[0] == "sample" {
		return extractInputPalette(c)
	}

	colors := make([]color.Color, 0, len(args))
	for _, arg := range args {
		nc, err := parseColorArg(flag, arg)
		if err != nil {
			return nil, err
		}
		colors = append(colors, nc)
	}
	return colors, nil
}

// colorsToPalette packs a parsed color list into a palette.Palette via
// Exact, reserving a transparent slot only if any entry is translucent.
func colorsToPalette(colors []color.Color) (*palette.Palette, error) {
	if len(colors) == 0 {
		return nil, errors.New("rastercast: no palette colors given")
	}
	packed := make([]uint32, len(colors))
	for i, col := range colors {
		nc := color.NRGBAModel.Convert(col).(color.NRGBA)
		packed[i] = uint32(nc.R)<<24 | uint32(nc.G)<<16 | uint32(nc.B)<<8 | uint32(nc.A)
	}
	return palette.Exact(packed)
}

// getInputImage loads one input file (or stdin for "-"), applying EXIF
// auto-orientation and the shared pre-dither adjustments (resize,
// grayscale, saturation, contrast, brightness).
func getInputImage(arg string, c *cli.Context) (image.Image, error) {
	var img image.Image
	var err error

	orientation := imaging.AutoOrientation(!cfg.noExifRotation)

	if arg == "-" {
		img, err = imaging.Decode(os.Stdin, orientation)
	} else {
		img, err = imaging.Open(arg, orientation)
	}
	if err != nil {
		return nil, err
	}

	if cfg.width != 0 || cfg.height != 0 {
		img = imaging.Resize(img, cfg.width, cfg.height, imaging.Box)
	}
	if cfg.grayscale {
		img = imaging.Grayscale(img)
	}
	if cfg.saturation != 0 {
		img = imaging.AdjustSaturation(img, cfg.saturation)
	}
	if cfg.contrast != 0 {
		img = imaging.AdjustContrast(img, cfg.contrast)
	}
	if cfg.brightness != 0 {
		img = imaging.AdjustBrightness(img, cfg.brightness)
	}

	return img, nil
}

// imageToPixmap converts a decoded image.Image into a raster.Frame,
// packing each pixel into RGBA8888.
func imageToPixmap(img image.Image) raster.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]uint32, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bch, a := img.At(x, y).RGBA()
			pixels[i] = uint32(r>>8)<<24 | uint32(g>>8)<<16 | uint32(bch>>8)<<8 | uint32(a>>8)
			i++
		}
	}
	return raster.Frame{Width: w, Height: h, Pixels: pixels}
}

// compressionLevel maps the --compression flag value to a zlib level for
// png8codec/apngcodec, matching the teacher's 'default'/'no'/'speed'/'size'
// vocabulary.
func compressionLevel(name string) (int, error) {
	switch name {
	case "", "default":
		return 6, nil
	case "no":
		return 0, nil
	case "speed":
		return 1, nil
	case "size":
		return 9, nil
	default:
		return 0, fmt.Errorf("invalid compression type %q", name)
	}
}

// outputPath resolves one output destination, honoring --no-overwrite and
// picking a per-frame filename when multiple inputs are being encoded
// separately into a directory.
func outputPath(base string, index, total int) (string, error) {
	path := base
	if total > 1 {
		ext := ""
		if dot := strings.LastIndex(base, "."); dot >= 0 {
			ext = base[dot:]
			base = base[:dot]
		}
		path = fmt.Sprintf("%s-%d%s", base, index, ext)
	}
	if cfg.noOverwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("rastercast: %s already exists, refusing to overwrite", path)
		}
	}
	return path, nil
}
