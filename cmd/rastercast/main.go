package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// Overridable at build time via -ldflags -X.
var (
	version = "v1.0.0"
	commit  = "unknown"
	builtBy = "unknown"
)

func main() {
	app := &cli.App{
		Name:                   "rastercast",
		Usage:                  "encode rasterized images/sequences as dithered GIF, PNG8, or truecolor APNG.",
		Description:            description,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "strength",
				Aliases: []string{"s"},
				Usage:   "set strength of dithering, using a decimal or percentage. Exceeding -1..1 still works.",
			},
			&cli.StringFlag{
				Name:     "palette",
				Aliases:  []string{"p"},
				Usage:    "set color palette used for dithering (colors, 'sample', or a preload file path prefixed with '@')",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "grayscale",
				Usage: "make input image(s) grayscale before dithering",
			},
			&cli.StringFlag{
				Name:  "saturation",
				Usage: "change input image(s) saturation before dithering, using a decimal or percentage",
			},
			&cli.StringFlag{
				Name:  "brightness",
				Usage: "change input image(s) brightness before dithering, using a decimal or percentage",
			},
			&cli.StringFlag{
				Name:  "contrast",
				Usage: "change input image(s) contrast before dithering, using a decimal or percentage",
			},
			&cli.StringFlag{
				Name:    "recolor",
				Aliases: []string{"r"},
				Usage:   "palette written in place of --palette: gif/png8 output is dithered against it, apng pixels are remapped to its nearest colors, legacy subcommands swap it in index-for-index after dithering",
			},
			&cli.BoolFlag{
				Name:  "no-exif-rotation",
				Usage: "disable using the EXIF rotation flag before processing",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format: 'gif', 'png8', or 'apng'. Auto-detected from --out's extension when possible.",
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "output file path or directory",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "in",
				Aliases:  []string{"i"},
				Usage:    "input file path, specify multiple times for a frame sequence",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "no-overwrite",
				Usage: "stop before overwriting an existing output file",
			},
			&cli.StringFlag{
				Name:    "compression",
				Aliases: []string{"c"},
				Usage:   "PNG8/APNG zlib compression: 'default', 'no', 'speed', 'size'. The value is validated, but output is always written at zlib level 6",
				Value:   "default",
			},
			&cli.Float64Flag{
				Name:  "fps",
				Usage: "frames per second for animated output",
			},
			&cli.UintFlag{
				Name:  "loop",
				Usage: "number of times animated output should loop, 0 is infinite",
			},
			&cli.UintFlag{
				Name:    "width",
				Aliases: []string{"x"},
				Usage:   "resize input image(s) to this width BEFORE dithering",
			},
			&cli.UintFlag{
				Name:    "height",
				Aliases: []string{"y"},
				Usage:   "resize input image(s) to this height BEFORE dithering",
			},
			&cli.UintFlag{
				Name:    "upscale",
				Aliases: []string{"u"},
				Usage:   "pixel-replicate the output AFTER dithering by this integer factor",
				Value:   1,
			},
			&cli.Float64Flag{
				Name:  "scale",
				Usage: "resample input image(s) by this factor BEFORE dithering, using a high-quality filter",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "sample-colors",
				Usage: "number of colors palettor should extract when --palette sample is used",
				Value: 16,
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "get version info",
			},
		},
		Commands: []*cli.Command{
			orderedCommand,
			diffusionCommand,
			patternCommand,
			legacyCommand,
		},
		Before: preProcess,
		Action: func(c *cli.Context) error {
			return errors.New("no command specified")
		},
	}

	if len(os.Args) == 2 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println("rastercast", version)
		fmt.Println("Commit:", commit)
		fmt.Println("Built by:", builtBy)
		return
	}

	if err := app.Run(os.Args); err != nil {
		if len(os.Args) == 1 {
			return
		}
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "rastercast").Error())
		os.Exit(1)
	}
}

const description = `
Colors (for --palette and --recolor) are entered as a single quoted argument.
They can be separated by spaces and commas. Colors can be formatted as hex
codes (case-insensitive, with or without '#'), a single number 0-255 for
grayscale, or an SVG 1.1 color name. All colors are interpreted in sRGB.

--palette sample extracts a seed palette from the first input frame via
palettor. --palette @path loads a preload palette file in the format
palette.WritePreload writes.

Three algorithm-family subcommands select from the ~15 named dither
algorithms: 'ordered' (GRADIENT_NOISE, BLUE_NOISE, CHAOTIC_NOISE, ROBERTS,
LOAF), 'diffusion' (DIFFUSION, BURKES, SCATTER, NEUE, WOVEN, DODGY, WREN,
OVERBOARD), and 'pattern' (PATTERN). A 'legacy' subcommand group exposes
the underlying dither/v2 matrix/mapper API directly for algorithms outside
that list.
`
