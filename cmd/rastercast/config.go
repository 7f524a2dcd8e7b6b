package main

import "github.com/palettepress/rastercast/palette"

// cfg holds the parsed global-flag state, set once by preProcess and read
// by every subcommand action, mirroring the teacher's package-level
// config variables (palette, grayscale, saturation, inputImages, ...).
var cfg struct {
	strength float64

	grayscale  bool
	saturation float64
	brightness float64
	contrast   float64

	noExifRotation bool

	inputImages []string
	outPath     string
	outFormat   string
	noOverwrite bool

	compression string

	loopCount int

	width, height int
	upscale       int
	scale         float64

	sampleColors int

	pal      *palette.Palette
	recolor  *palette.Palette
	delayCs  int
	fpsFlag  float64
}
