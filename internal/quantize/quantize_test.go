package quantize

import (
	"image"
	"image/color"
	"slices"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / (w - 1)), G: uint8(y * 255 / (h - 1)), B: uint8((x + y) % 256), A: 0xff})
		}
	}
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func TestMedianCut_FewColorsExact(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	fill(img, image.Rect(0, 0, 4, 2), red)
	fill(img, image.Rect(0, 2, 4, 4), blue)

	p := MedianCut(img, 256)
	if len(p) != 2 {
		t.Fatalf("palette size = %d, want 2", len(p))
	}
	if !slices.Contains(p, color.Color(red)) || !slices.Contains(p, color.Color(blue)) {
		t.Errorf("palette = %v, want red and blue", p)
	}
}

func TestMedianCut_LimitsColors(t *testing.T) {
	img := gradient(64, 64)
	tests := []struct {
		n, want int
	}{
		{256, 256},
		{16, 16},
		{1, 1},
		{0, 1},
		{1000, 256},
	}
	for _, tt := range tests {
		if got := len(MedianCut(img, tt.n)); got != tt.want {
			t.Errorf("MedianCut(n=%d) size = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestMedianCut_SplitsAlongWidestChannel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 1))
	for x := range 8 {
		// red varies widely, green a little, blue not at all
		img.SetRGBA(x, 0, color.RGBA{R: uint8(x * 32), G: uint8(x), A: 255})
	}
	p := MedianCut(img, 2)
	if len(p) != 2 {
		t.Fatalf("palette size = %d", len(p))
	}
	lo := p[0].(color.RGBA)
	hi := p[1].(color.RGBA)
	if lo.R >= hi.R {
		t.Errorf("boxes not split on red: %v %v", lo, hi)
	}
	// weighted means of {0,32,64,96} and {128,160,192,224}
	if lo.R != 48 || hi.R != 176 {
		t.Errorf("means = %d, %d, want 48, 176", lo.R, hi.R)
	}
}

func TestMedianCut_Deterministic(t *testing.T) {
	img := gradient(50, 30)
	a := MedianCut(img, 64)
	b := MedianCut(img, 64)
	if !slices.Equal(a, b) {
		t.Error("MedianCut is not deterministic")
	}
}

func TestMedianCut_IgnoresAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, A: 255})
	p := MedianCut(img, 8)
	if len(p) != 1 || p[0].(color.RGBA).A != 255 {
		t.Errorf("palette = %v, want one opaque color", p)
	}
}

func TestMedianCut_Empty(t *testing.T) {
	p := MedianCut(image.NewRGBA(image.Rect(0, 0, 0, 0)), 256)
	if len(p) != 1 {
		t.Errorf("empty image palette size = %d, want 1", len(p))
	}
}

func TestRemap_ExactPaletteIsLossless(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	fill(img, image.Rect(0, 0, 3, 6), color.RGBA{R: 10, G: 20, B: 30, A: 255})
	fill(img, image.Rect(3, 0, 6, 6), color.RGBA{R: 250, G: 240, B: 230, A: 255})
	p := MedianCut(img, 256)

	for _, dither := range []bool{false, true} {
		out := Remap(img, p, dither)
		for y := range 6 {
			for x := range 6 {
				want := img.RGBAAt(x, y)
				if got := out.At(x, y).(color.RGBA); got != want {
					t.Fatalf("dither=%v (%d,%d) = %v, want %v", dither, x, y, got, want)
				}
			}
		}
	}
}

func TestRemap_NearestUsesGivenPalette(t *testing.T) {
	p := color.Palette{color.RGBA{A: 255}, color.RGBA{R: 255, G: 255, B: 255, A: 255}}
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 30, G: 30, B: 30, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 220, G: 220, B: 220, A: 255})

	out := Remap(img, p, false)
	if out.ColorIndexAt(0, 0) != 0 || out.ColorIndexAt(1, 0) != 1 {
		t.Errorf("indices = %d,%d, want 0,1", out.ColorIndexAt(0, 0), out.ColorIndexAt(1, 0))
	}
	if len(out.Palette) != 2 {
		t.Errorf("output palette size = %d", len(out.Palette))
	}
}
