package convert

import (
	"image"
	"image/color"
	"image/draw"
)

// toRGB returns an opaque copy of img. Alpha is dropped, not composited: a
// half-transparent red pixel becomes full red.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			s := src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)]
			d := out.Pix[out.PixOffset(b.Min.X, y):out.PixOffset(b.Max.X, y)]
			copy(d, s)
			for i := 3; i < len(d); i += 4 {
				d[i] = 0xff
			}
		}
	case *image.YCbCr, *image.Gray:
		draw.Draw(out, b, src, b.Min, draw.Src)
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
			}
		}
	}
	return out
}
