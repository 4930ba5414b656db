package convert

import (
	"image"
	"image/color"
	"image/gif"
	"io"

	"github.com/backmassage/webpconv/internal/jpegenc"
	"github.com/backmassage/webpconv/internal/quantize"
	"github.com/backmassage/webpconv/internal/webp"
)

// gifDelay converts milliseconds to GIF centiseconds, rounding to nearest.
func gifDelay(ms int) int {
	return (max(ms, 0) + 5) / 10
}

// encodeJPEG writes frame flattened to RGB at the given quality, 4:4:4 with
// optimized Huffman tables.
func encodeJPEG(w io.Writer, fr webp.Frame, quality int) error {
	if quality == 0 {
		quality = 100
	}
	return jpegenc.Encode(w, toRGB(fr.Image), &jpegenc.Options{Quality: quality})
}

// gifBuilder maps every frame onto one palette computed from the first
// frame. Mapping of the first frame waits until the frame count is known: a
// still image takes the nearest palette color, animation frames are dithered
// when requested.
type gifBuilder struct {
	dither bool
	pal    color.Palette
	first  *image.RGBA
	images []*image.Paletted
	delays []int
}

func (b *gifBuilder) add(fr webp.Frame) {
	rgb := toRGB(fr.Image)
	if b.pal == nil {
		b.first = rgb
		b.pal = quantize.MedianCut(rgb, quantize.MaxColors)
		b.images = append(b.images, nil)
	} else {
		b.images = append(b.images, quantize.Remap(rgb, b.pal, b.dither))
	}
	b.delays = append(b.delays, gifDelay(fr.Duration))
}

// finish maps the first frame and returns the GIF to encode.
func (b *gifBuilder) finish() *gif.GIF {
	b.images[0] = quantize.Remap(b.first, b.pal, b.dither && len(b.images) > 1)
	b.first = nil

	bounds := b.images[0].Bounds()
	g := &gif.GIF{
		Image:     b.images,
		Delay:     b.delays,
		LoopCount: 0,
		Config: image.Config{
			ColorModel: b.pal,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		},
	}
	if len(b.images) > 1 {
		g.Disposal = make([]byte, len(b.images))
		for i := range g.Disposal {
			g.Disposal[i] = gif.DisposalBackground
		}
	}
	return g
}

// encodeGIF writes g as a static image when it has one frame and as an
// infinitely looping animation otherwise.
func encodeGIF(w io.Writer, g *gif.GIF) error {
	if len(g.Image) == 1 {
		return gif.Encode(w, g.Image[0], nil)
	}
	return gif.EncodeAll(w, g)
}
