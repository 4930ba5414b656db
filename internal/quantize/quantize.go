// Package quantize reduces images to a palette of at most 256 colors with
// median cut, and maps images onto an existing palette.
package quantize

import (
	"cmp"
	"image"
	"image/color"
	"image/draw"
	"slices"
)

// MaxColors is the largest palette a GIF can carry.
const MaxColors = 256

type entry struct {
	c [3]uint8
	n int
}

func (e entry) key() uint32 { return uint32(e.c[0])<<16 | uint32(e.c[1])<<8 | uint32(e.c[2]) }

type box struct {
	entries []entry
	pixels  int
	axis    int // channel with the widest spread
	spread  int
}

func newBox(entries []entry) box {
	b := box{entries: entries}
	lo := [3]int{255, 255, 255}
	hi := [3]int{}
	for _, e := range entries {
		b.pixels += e.n
		for ch := range 3 {
			v := int(e.c[ch])
			lo[ch] = min(lo[ch], v)
			hi[ch] = max(hi[ch], v)
		}
	}
	b.spread = -1
	for ch := range 3 {
		if s := hi[ch] - lo[ch]; s > b.spread {
			b.axis, b.spread = ch, s
		}
	}
	return b
}

// split cuts the box at the pixel-weighted median of its widest channel.
// Both halves are non-empty.
func (b box) split() (box, box) {
	axis := b.axis
	slices.SortFunc(b.entries, func(x, y entry) int {
		if c := cmp.Compare(x.c[axis], y.c[axis]); c != 0 {
			return c
		}
		return cmp.Compare(x.key(), y.key())
	})
	half := b.pixels / 2
	acc, cut := 0, 1
	for i, e := range b.entries[:len(b.entries)-1] {
		acc += e.n
		cut = i + 1
		if acc >= half {
			break
		}
	}
	return newBox(b.entries[:cut]), newBox(b.entries[cut:])
}

func (b box) mean() color.RGBA {
	var sum [3]int
	for _, e := range b.entries {
		for ch := range 3 {
			sum[ch] += int(e.c[ch]) * e.n
		}
	}
	half := b.pixels / 2
	return color.RGBA{
		R: uint8((sum[0] + half) / b.pixels),
		G: uint8((sum[1] + half) / b.pixels),
		B: uint8((sum[2] + half) / b.pixels),
		A: 0xff,
	}
}

// MedianCut computes a palette of at most n colors (clamped to 1..256) for
// img. Alpha is ignored. An image that already has n or fewer distinct colors
// gets exactly those colors. The result depends only on the pixel values.
func MedianCut(img image.Image, n int) color.Palette {
	n = max(1, min(n, MaxColors))
	entries := histogram(img)
	if len(entries) == 0 {
		return color.Palette{color.RGBA{A: 0xff}}
	}

	if len(entries) <= n {
		slices.SortFunc(entries, func(x, y entry) int { return cmp.Compare(x.key(), y.key()) })
		p := make(color.Palette, len(entries))
		for i, e := range entries {
			p[i] = color.RGBA{R: e.c[0], G: e.c[1], B: e.c[2], A: 0xff}
		}
		return p
	}

	boxes := []box{newBox(entries)}
	for len(boxes) < n {
		pick := -1
		for i, b := range boxes {
			if len(b.entries) < 2 {
				continue
			}
			if pick < 0 || b.spread > boxes[pick].spread ||
				(b.spread == boxes[pick].spread && b.pixels > boxes[pick].pixels) {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		lo, hi := boxes[pick].split()
		boxes[pick] = lo
		boxes = slices.Insert(boxes, pick+1, hi)
	}

	p := make(color.Palette, len(boxes))
	for i, b := range boxes {
		p[i] = b.mean()
	}
	return p
}

func histogram(img image.Image) []entry {
	counts := make(map[uint32]int)
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, y):rgba.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				counts[uint32(row[i])<<16|uint32(row[i+1])<<8|uint32(row[i+2])]++
			}
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				counts[(r>>8)<<16|(g>>8)<<8|bl>>8]++
			}
		}
	}
	out := make([]entry, 0, len(counts))
	for k, n := range counts {
		out = append(out, entry{c: [3]uint8{uint8(k >> 16), uint8(k >> 8), uint8(k)}, n: n})
	}
	return out
}

// Remap maps img onto p. With dither, quantization error is diffused with
// Floyd-Steinberg; otherwise each pixel takes its nearest palette color.
func Remap(img image.Image, p color.Palette, dither bool) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(b, p)
	if dither {
		draw.FloydSteinberg.Draw(dst, b, img, b.Min)
		return dst
	}

	cache := make(map[color.RGBA]uint8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 0xff}
			idx, ok := cache[c]
			if !ok {
				idx = uint8(p.Index(c))
				cache[c] = idx
			}
			dst.SetColorIndex(x, y, idx)
		}
	}
	return dst
}
