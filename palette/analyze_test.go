package palette

import "testing"

func solidFramePixmap(w, h int, r, g, b uint8) Pixmap {
	px := make([]uint32, w*h)
	c := packRGBA(r, g, b, 255)
	for i := range px {
		px[i] = c
	}
	return Pixmap{Width: w, Height: h, Pixels: px}
}

func TestAnalyzeSolidFrame(t *testing.T) {
	pm := solidFramePixmap(4, 4, 128, 64, 32)
	p, err := Analyze(pm, 6.0, 16)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if p.ColorCount() < 1 {
		t.Fatal("expected at least one color")
	}
	r, g, b, a := p.EntryRGBA(0)
	if a != 255 {
		t.Fatalf("expected opaque entry, got alpha %d", a)
	}
	_ = r
	_ = g
	_ = b
}

func TestAnalyzeColorCountMonotonic(t *testing.T) {
	// A gradient frame with many distinct colors should yield more
	// palette entries as colorCount increases, up to the distinct-color
	// ceiling.
	w, h := 16, 16
	px := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px[y*w+x] = packRGBA(uint8(x*16), uint8(y*16), 128, 255)
		}
	}
	pm := Pixmap{Width: w, Height: h, Pixels: px}

	small, err := Analyze(pm, 6.0, 4)
	if err != nil {
		t.Fatalf("Analyze(small): %v", err)
	}
	large, err := Analyze(pm, 6.0, 64)
	if err != nil {
		t.Fatalf("Analyze(large): %v", err)
	}
	if large.ColorCount() < small.ColorCount() {
		t.Errorf("larger colorCount produced fewer colors: %d < %d", large.ColorCount(), small.ColorCount())
	}
}

func TestAnalyzeLowColorCountFallsBackToBlackAndWhite(t *testing.T) {
	pm := solidFramePixmap(2, 2, 1, 2, 3)
	p, err := Analyze(pm, 6.0, 1)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if p.ColorCount() != 2 {
		t.Fatalf("ColorCount = %d, want 2 (black+white fallback)", p.ColorCount())
	}
}

func TestAnalyzeFramesAggregatesAcrossFrames(t *testing.T) {
	f1 := solidFramePixmap(2, 2, 255, 0, 0)
	f2 := solidFramePixmap(2, 2, 0, 255, 0)
	p, err := AnalyzeFrames([]Pixmap{f1, f2}, 6.0, 8)
	if err != nil {
		t.Fatalf("AnalyzeFrames: %v", err)
	}
	if p.ColorCount() < 2 {
		t.Fatalf("expected at least 2 colors aggregated across frames, got %d", p.ColorCount())
	}
}

func TestAnalyzeTranslucentReservesTransparentSlot(t *testing.T) {
	px := []uint32{
		packRGBA(255, 0, 0, 255),
		packRGBA(0, 255, 0, 64), // translucent
		packRGBA(0, 0, 255, 255),
		packRGBA(255, 255, 0, 255),
	}
	pm := Pixmap{Width: 2, Height: 2, Pixels: px}
	p, err := Analyze(pm, 6.0, 8)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !p.HasTransparent() {
		t.Fatal("expected HasTransparent() true when source has translucent pixels")
	}
	if p.Entry(0) != 0 {
		t.Fatalf("Entry(0) = %#08x, want 0 (reserved transparent slot)", p.Entry(0))
	}
}

func TestAnalyzeHueWiseCoversDistinctHues(t *testing.T) {
	// Four saturated primaries in distinct hue sectors; all should survive
	// a modest colorCount budget.
	px := []uint32{
		packRGBA(255, 0, 0, 255),
		packRGBA(0, 255, 0, 255),
		packRGBA(0, 0, 255, 255),
		packRGBA(255, 255, 0, 255),
	}
	pm := Pixmap{Width: 2, Height: 2, Pixels: px}
	p, err := AnalyzeHueWise(pm, 6.0, 8)
	if err != nil {
		t.Fatalf("AnalyzeHueWise: %v", err)
	}
	if p.ColorCount() < 4 {
		t.Errorf("ColorCount = %d, want at least 4 distinct hue representatives", p.ColorCount())
	}
}

func TestAnalyzeReductiveRespectsColorCount(t *testing.T) {
	pm := solidFramePixmap(4, 4, 10, 20, 30)
	p, err := AnalyzeReductive(pm, 32)
	if err != nil {
		t.Fatalf("AnalyzeReductive: %v", err)
	}
	if p.ColorCount() > 32 {
		t.Errorf("ColorCount = %d, exceeds requested 32", p.ColorCount())
	}
}

func TestDefaultPaletteIsUsable(t *testing.T) {
	p := Default()
	if p.ColorCount() == 0 {
		t.Fatal("Default palette has no colors")
	}
	if !p.HasTransparent() {
		t.Error("Default palette should reserve a transparent slot")
	}
	// Must not panic across the full RGB cube at a coarse stride.
	for r := int32(0); r <= 255; r += 51 {
		for g := int32(0); g <= 255; g += 51 {
			for b := int32(0); b <= 255; b += 51 {
				_ = p.Nearest(r, g, b)
			}
		}
	}
}
