package palette

import (
	"bytes"
	"testing"
)

func TestExactRoundTrip(t *testing.T) {
	colors := []uint32{
		packRGBA(255, 0, 0, 255),
		packRGBA(0, 255, 0, 255),
		packRGBA(0, 0, 255, 255),
	}
	p, err := Exact(colors)
	if err != nil {
		t.Fatalf("Exact: %v", err)
	}
	if p.ColorCount() != 3 {
		t.Fatalf("ColorCount = %d, want 3", p.ColorCount())
	}
	for i, want := range colors {
		if got := p.Entry(i); got != want {
			t.Errorf("Entry(%d) = %#08x, want %#08x", i, got, want)
		}
	}
}

func TestExactTooManyColors(t *testing.T) {
	colors := make([]uint32, MaxColors+1)
	for i := range colors {
		colors[i] = packRGBA(uint8(i), 0, 0, 255)
	}
	if _, err := Exact(colors); err == nil {
		t.Fatal("expected ErrTooManyColors, got nil")
	}
}

func TestExactAllTransparent(t *testing.T) {
	colors := []uint32{0, 0, 0}
	if _, err := Exact(colors); err == nil {
		t.Fatal("expected ErrAllTransparent, got nil")
	}
}

// TestNearestIsTotal checks that Nearest never panics and always returns
// a valid index, across the full RGB555 key space, for a small palette.
func TestNearestIsTotal(t *testing.T) {
	p, err := Exact([]uint32{
		packRGBA(0, 0, 0, 255),
		packRGBA(255, 255, 255, 255),
	})
	if err != nil {
		t.Fatalf("Exact: %v", err)
	}
	for r := int32(0); r <= 255; r += 17 {
		for g := int32(0); g <= 255; g += 17 {
			for b := int32(0); b <= 255; b += 17 {
				idx := p.Nearest(r, g, b)
				if int(idx) >= p.ColorCount() {
					t.Fatalf("Nearest(%d,%d,%d) = %d, out of range for %d colors", r, g, b, idx, p.ColorCount())
				}
			}
		}
	}
}

func TestNearestPicksCloserColor(t *testing.T) {
	p, err := Exact([]uint32{
		packRGBA(0, 0, 0, 255),
		packRGBA(255, 255, 255, 255),
	})
	if err != nil {
		t.Fatalf("Exact: %v", err)
	}
	if idx := p.Nearest(10, 10, 10); idx != 0 {
		t.Errorf("Nearest(10,10,10) = %d, want 0 (black)", idx)
	}
	if idx := p.Nearest(250, 250, 250); idx != 1 {
		t.Errorf("Nearest(250,250,250) = %d, want 1 (white)", idx)
	}
}

func TestWithStrengthSharesMapping(t *testing.T) {
	p, err := Exact([]uint32{packRGBA(0, 0, 0, 255), packRGBA(255, 255, 255, 255)})
	if err != nil {
		t.Fatalf("Exact: %v", err)
	}
	p2 := p.WithStrength(0.5)
	if p2.DitherStrength() != 0.5 {
		t.Errorf("DitherStrength() = %v, want 0.5", p2.DitherStrength())
	}
	if p.DitherStrength() != 1.0 {
		t.Errorf("original palette mutated: DitherStrength() = %v, want 1.0", p.DitherStrength())
	}
	// Mapping is shared, not recomputed: same nearest-index behavior.
	if p.Nearest(10, 10, 10) != p2.Nearest(10, 10, 10) {
		t.Error("WithStrength changed Nearest's behavior, mapping should be shared")
	}
}

func TestPreloadRoundTrip(t *testing.T) {
	p, err := Exact([]uint32{
		packRGBA(10, 20, 30, 255),
		packRGBA(200, 100, 50, 255),
		packRGBA(0, 0, 0, 0),
	})
	if err != nil {
		t.Fatalf("Exact: %v", err)
	}

	var buf bytes.Buffer
	if err := p.WritePreload(&buf); err != nil {
		t.Fatalf("WritePreload: %v", err)
	}

	loaded, err := LoadPreload(&buf)
	if err != nil {
		t.Fatalf("LoadPreload: %v", err)
	}
	if loaded.ColorCount() != p.ColorCount() {
		t.Fatalf("ColorCount after round trip = %d, want %d", loaded.ColorCount(), p.ColorCount())
	}
	for i := 0; i < p.ColorCount(); i++ {
		if loaded.Entry(i) != p.Entry(i) {
			t.Errorf("Entry(%d) after round trip = %#08x, want %#08x", i, loaded.Entry(i), p.Entry(i))
		}
	}
	for r := int32(0); r <= 255; r += 31 {
		for g := int32(0); g <= 255; g += 31 {
			for b := int32(0); b <= 255; b += 31 {
				if loaded.Nearest(r, g, b) != p.Nearest(r, g, b) {
					t.Fatalf("Nearest(%d,%d,%d) diverged after preload round trip", r, g, b)
				}
			}
		}
	}
}
