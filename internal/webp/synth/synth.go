// Package synth builds small, valid WebP files in memory.
//
// Images are solid-color lossless (VP8L) bitstreams whose prefix codes each
// have a single symbol, so every pixel costs zero bits. That is enough to
// exercise containers, animation compositing and the conversion pipeline
// without a WebP encoder.
package synth

import (
	"bytes"
	"encoding/binary"
	"image/color"
)

// VP8L returns a lossless bitstream (without chunk header) of a w x h image
// filled with c. Dimensions are limited to 1..16384.
func VP8L(w, h int, c color.NRGBA) []byte {
	var bw bitWriter
	bw.write(0x2f, 8)
	bw.write(uint32(w-1), 14)
	bw.write(uint32(h-1), 14)
	alpha := uint32(0)
	if c.A != 0xff {
		alpha = 1
	}
	bw.write(alpha, 1)
	bw.write(0, 3) // version

	bw.write(0, 1) // no transform
	bw.write(0, 1) // no color cache
	bw.write(0, 1) // no meta prefix codes

	// green, red, blue, alpha: one 8-bit symbol each
	for _, v := range []uint8{c.G, c.R, c.B, c.A} {
		bw.write(1, 1) // simple code
		bw.write(0, 1) // one symbol
		bw.write(1, 1) // 8-bit symbol
		bw.write(uint32(v), 8)
	}
	// distance: one 1-bit symbol, 0
	bw.write(1, 1)
	bw.write(0, 1)
	bw.write(0, 1)
	bw.write(0, 1)

	return bw.bytes()
}

// Solid returns a simple-format lossless WebP file.
func Solid(w, h int, c color.NRGBA) []byte {
	return riff(chunk{"VP8L", VP8L(w, h, c)})
}

// Extended returns a still image in the extended (VP8X) format, with the
// alpha flag set when c is translucent.
func Extended(w, h int, c color.NRGBA) []byte {
	var flags byte
	if c.A != 0xff {
		flags |= 0x10
	}
	return riff(
		chunk{"VP8X", vp8x(flags, w, h)},
		chunk{"VP8L", VP8L(w, h, c)},
	)
}

// Frame describes one animation frame. X and Y must be even.
type Frame struct {
	X, Y          int
	Width, Height int
	Color         color.NRGBA
	Duration      int // milliseconds
	NoBlend       bool
	Dispose       bool
}

// Animated returns an animated WebP with the given canvas, loop count
// (0 = forever) and frames.
func Animated(width, height, loops int, frames ...Frame) []byte {
	chunks := []chunk{
		{"VP8X", vp8x(0x02|0x10, width, height)},
		{"ANIM", anim(loops)},
	}
	for _, f := range frames {
		chunks = append(chunks, chunk{"ANMF", anmf(f)})
	}
	return riff(chunks...)
}

// SolidFrames returns n full-canvas opaque frames of distinct colors, each
// shown for duration ms.
func SolidFrames(width, height, n, duration int) []Frame {
	out := make([]Frame, n)
	for i := range out {
		out[i] = Frame{
			Width:    width,
			Height:   height,
			Color:    color.NRGBA{R: uint8(40 * i), G: uint8(255 - 40*i), B: uint8(90 + 20*i), A: 0xff},
			Duration: duration,
		}
	}
	return out
}

type chunk struct {
	id   string
	data []byte
}

func vp8x(flags byte, w, h int) []byte {
	b := make([]byte, 10)
	b[0] = flags
	putU24(b[4:], w-1)
	putU24(b[7:], h-1)
	return b
}

func anim(loops int) []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint16(b[4:], uint16(loops))
	return b
}

func anmf(f Frame) []byte {
	b := make([]byte, 16)
	putU24(b[0:], f.X/2)
	putU24(b[3:], f.Y/2)
	putU24(b[6:], f.Width-1)
	putU24(b[9:], f.Height-1)
	putU24(b[12:], f.Duration)
	if f.NoBlend {
		b[15] |= 0x02
	}
	if f.Dispose {
		b[15] |= 0x01
	}
	var buf bytes.Buffer
	buf.Write(b)
	writeChunk(&buf, chunk{"VP8L", VP8L(f.Width, f.Height, f.Color)})
	return buf.Bytes()
}

func riff(chunks ...chunk) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	for _, c := range chunks {
		writeChunk(&body, c)
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeChunk(buf *bytes.Buffer, c chunk) {
	buf.WriteString(c.id)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(c.data)))
	buf.Write(c.data)
	if len(c.data)%2 == 1 {
		buf.WriteByte(0)
	}
}

func putU24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// bitWriter packs values least-significant bit first, as VP8L expects.
type bitWriter struct {
	buf   []byte
	acc   uint64
	nbits uint
}

func (w *bitWriter) write(v uint32, n uint) {
	w.acc |= uint64(v&(1<<n-1)) << w.nbits
	w.nbits += n
	for w.nbits >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.nbits -= 8
	}
}

// bytes flushes the partial byte and appends padding so decoders that read
// ahead never hit EOF.
func (w *bitWriter) bytes() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc, w.nbits = 0, 0
	}
	return append(w.buf, 0, 0, 0, 0)
}
