// Package jpegenc writes baseline JPEG images without chroma subsampling
// (4:4:4) and with Huffman tables optimized for each image.
//
// The standard library encoder always subsamples chroma 4:2:0 and uses the
// Annex K example Huffman tables; this encoder trades a second pass over the
// coefficients for smaller files at full chroma resolution. Output is a pure
// function of the pixels and the quality.
package jpegenc

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
)

// DefaultQuality is used when Options is nil.
const DefaultQuality = 100

// Options are the encoding parameters.
type Options struct {
	// Quality ranges from 1 to 100 inclusive, higher is better.
	Quality int
}

var errBadSize = errors.New("jpegenc: image dimensions must be 1..65535")

// dctCos[u][x] = C(u)/2 * cos((2x+1)u*pi/16)
var dctCos [8][8]float64

func init() {
	for u := range 8 {
		cu := 1.0
		if u == 0 {
			cu = 1 / math.Sqrt2
		}
		for x := range 8 {
			dctCos[u][x] = cu / 2 * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16)
		}
	}
}

// Encode writes m to w as a baseline 4:4:4 JPEG. Alpha is ignored.
func Encode(w io.Writer, m image.Image, o *Options) error {
	quality := DefaultQuality
	if o != nil {
		quality = min(100, max(1, o.Quality))
	}
	b := m.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 || b.Dx() > 0xffff || b.Dy() > 0xffff {
		return errBadSize
	}

	e := &encoder{
		img:   m,
		quant: scaleQuant(quality),
		bw:    (b.Dx() + 7) / 8,
		bh:    (b.Dy() + 7) / 8,
	}
	e.transform()

	var freq [4][257]int
	e.scan(func(table int, sym byte, _ uint32, _ uint8) { freq[table][sym]++ })
	for i := range e.tables {
		e.tables[i] = buildTable(&freq[i])
	}

	bw := bufio.NewWriter(w)
	e.w = bw
	e.writeHeaders()
	e.scan(e.emitSymbol)
	e.flush()
	e.write([]byte{0xff, 0xd9})
	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

// Table indices: DC and AC for luma and chroma.
const (
	dcLuma = iota
	acLuma
	dcChroma
	acChroma
)

type encoder struct {
	img    image.Image
	quant  [2][64]int
	bw, bh int // size in 8x8 blocks

	// coeffs holds quantized coefficients in zigzag order, 3 components per
	// block, blocks in raster order.
	coeffs []int16
	tables [4]*huffTable

	w     *bufio.Writer
	err   error
	bits  uint32
	nbits uint8
}

func (e *encoder) transform() {
	e.coeffs = make([]int16, e.bw*e.bh*3*64)
	var planes [3][64]float64
	var dct [64]float64
	for by := range e.bh {
		for bx := range e.bw {
			e.loadBlock(bx, by, &planes)
			base := (by*e.bw + bx) * 3 * 64
			for c := range 3 {
				fdct(&planes[c], &dct)
				q := &e.quant[min(c, 1)]
				out := e.coeffs[base+c*64 : base+c*64+64]
				for k, nat := range zigzag {
					v := math.Round(dct[nat] / float64(q[nat]))
					limit := 1023.0
					if k == 0 {
						limit = 2047
					}
					out[k] = int16(max(-limit, min(limit, v)))
				}
			}
		}
	}
}

// loadBlock converts one 8x8 block to level-shifted Y, Cb, Cr samples,
// replicating edge pixels past the image bounds.
func (e *encoder) loadBlock(bx, by int, planes *[3][64]float64) {
	b := e.img.Bounds()
	rgba, fast := e.img.(*image.RGBA)
	for j := range 8 {
		y := min(b.Min.Y+by*8+j, b.Max.Y-1)
		for i := range 8 {
			x := min(b.Min.X+bx*8+i, b.Max.X-1)
			var r, g, bl uint8
			if fast {
				p := rgba.Pix[rgba.PixOffset(x, y):]
				r, g, bl = p[0], p[1], p[2]
			} else {
				r32, g32, b32, _ := e.img.At(x, y).RGBA()
				r, g, bl = uint8(r32>>8), uint8(g32>>8), uint8(b32>>8)
			}
			yy, cb, cr := color.RGBToYCbCr(r, g, bl)
			planes[0][j*8+i] = float64(yy) - 128
			planes[1][j*8+i] = float64(cb) - 128
			planes[2][j*8+i] = float64(cr) - 128
		}
	}
}

// fdct computes the 2-D forward DCT of an 8x8 block in natural order.
func fdct(in, out *[64]float64) {
	var tmp [64]float64
	for y := range 8 {
		for u := range 8 {
			var s float64
			for x := range 8 {
				s += dctCos[u][x] * in[y*8+x]
			}
			tmp[y*8+u] = s
		}
	}
	for u := range 8 {
		for v := range 8 {
			var s float64
			for y := range 8 {
				s += dctCos[v][y] * tmp[y*8+u]
			}
			out[v*8+u] = s
		}
	}
}

// scan walks every block in interleaved component order and reports each
// Huffman symbol with its extra bits.
func (e *encoder) scan(emit func(table int, sym byte, extra uint32, n uint8)) {
	var prevDC [3]int
	for blk := range e.bw * e.bh {
		for c := range 3 {
			dcTable, acTable := dcLuma, acLuma
			if c > 0 {
				dcTable, acTable = dcChroma, acChroma
			}
			coef := e.coeffs[(blk*3+c)*64 : (blk*3+c)*64+64]

			diff := int(coef[0]) - prevDC[c]
			prevDC[c] = int(coef[0])
			n, extra := magnitude(diff)
			emit(dcTable, n, extra, n)

			run := 0
			for k := 1; k < 64; k++ {
				v := int(coef[k])
				if v == 0 {
					run++
					continue
				}
				for run > 15 {
					emit(acTable, 0xf0, 0, 0)
					run -= 16
				}
				n, extra := magnitude(v)
				emit(acTable, byte(run<<4)|n, extra, n)
				run = 0
			}
			if run > 0 {
				emit(acTable, 0x00, 0, 0)
			}
		}
	}
}

// magnitude returns the size category of v and its extra-bit encoding.
func magnitude(v int) (uint8, uint32) {
	a := v
	if a < 0 {
		a = -a
		v--
	}
	n := uint8(0)
	for a > 0 {
		n++
		a >>= 1
	}
	return n, uint32(v) & (1<<n - 1)
}

func (e *encoder) emitSymbol(table int, sym byte, extra uint32, n uint8) {
	t := e.tables[table]
	e.emitBits(uint32(t.code[sym]), t.size[sym])
	if n > 0 {
		e.emitBits(extra, n)
	}
}

func (e *encoder) emitBits(v uint32, n uint8) {
	e.bits = e.bits<<n | v&(1<<n-1)
	e.nbits += n
	for e.nbits >= 8 {
		c := byte(e.bits >> (e.nbits - 8))
		e.writeByte(c)
		if c == 0xff {
			e.writeByte(0)
		}
		e.nbits -= 8
	}
	e.bits &= 1<<e.nbits - 1
}

// flush pads the final partial byte with 1 bits.
func (e *encoder) flush() {
	if e.nbits > 0 {
		pad := 8 - e.nbits
		e.emitBits(1<<pad-1, pad)
	}
}

func (e *encoder) writeByte(c byte) {
	if e.err == nil {
		e.err = e.w.WriteByte(c)
	}
}

func (e *encoder) write(p []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(p)
	}
}

func (e *encoder) marker(m byte, payload []byte) {
	if len(payload)+2 > 0xffff {
		e.err = fmt.Errorf("jpegenc: marker %#x segment too long", m)
		return
	}
	n := len(payload) + 2
	e.write([]byte{0xff, m, byte(n >> 8), byte(n)})
	e.write(payload)
}

func (e *encoder) writeHeaders() {
	b := e.img.Bounds()
	w, h := b.Dx(), b.Dy()

	e.write([]byte{0xff, 0xd8})
	e.marker(0xe0, []byte{'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0})

	dqt := make([]byte, 0, 2*65)
	for t := range 2 {
		dqt = append(dqt, byte(t))
		for _, nat := range zigzag {
			dqt = append(dqt, byte(e.quant[t][nat]))
		}
	}
	e.marker(0xdb, dqt)

	e.marker(0xc0, []byte{
		8, byte(h >> 8), byte(h), byte(w >> 8), byte(w), 3,
		1, 0x11, 0,
		2, 0x11, 1,
		3, 0x11, 1,
	})

	var dht []byte
	for i, class := range [4]byte{0x00, 0x10, 0x01, 0x11} {
		t := e.tables[i]
		dht = append(dht, class)
		for l := 1; l <= 16; l++ {
			dht = append(dht, byte(t.bits[l]))
		}
		dht = append(dht, t.vals...)
	}
	e.marker(0xc4, dht)

	e.marker(0xda, []byte{3, 1, 0x00, 2, 0x11, 3, 0x11, 0, 63, 0})
}
