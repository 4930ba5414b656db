package webp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/riff"
)

// Sentinel errors. Decode failures wrap one of these or an underlying I/O error.
var (
	ErrNotWebP    = errors.New("webp: not a RIFF/WEBP file")
	ErrMalformed  = errors.New("webp: malformed container")
	ErrNoFrames   = errors.New("webp: no image data")
	ErrConsumed   = errors.New("webp: frame sequence already consumed")
	ErrTooLarge   = errors.New("webp: image too large")
	errBadBitsize = errors.New("webp: bitstream header does not match frame size")
)

var (
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccALPH = riff.FourCC{'A', 'L', 'P', 'H'}
	fccANIM = riff.FourCC{'A', 'N', 'I', 'M'}
	fccANMF = riff.FourCC{'A', 'N', 'M', 'F'}
)

// VP8X feature flags.
const (
	flagAnimation = 1 << 1
	flagAlpha     = 1 << 4
)

// ANMF frame flags.
const (
	anmfDispose = 1 << 0
	anmfNoBlend = 1 << 1
)

const (
	vp8xLen       = 10
	animLen       = 6
	anmfHeaderLen = 16

	// maxChunk bounds a single chunk read; larger chunks are rejected rather
	// than buffered.
	maxChunk = 256 << 20

	// MaxPixels caps the area of a canvas or bitstream the decoder will
	// allocate, so a forged header cannot demand gigabytes.
	MaxPixels = 1 << 27
)

type chunk struct {
	id   riff.FourCC
	data []byte
}

// extHeader is the decoded VP8X chunk.
type extHeader struct {
	flags         byte
	width, height int
}

func (h extHeader) animated() bool { return h.flags&flagAnimation != 0 }
func (h extHeader) alpha() bool    { return h.flags&flagAlpha != 0 }

// anmfHeader is the fixed prefix of an ANMF chunk.
type anmfHeader struct {
	x, y, width, height int
	duration            int
	blend, dispose      bool
}

// checkArea rejects w x h images larger than MaxPixels.
func checkArea(w, h int) error {
	if int64(w)*int64(h) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, w, h, MaxPixels)
	}
	return nil
}

func u24(b []byte) int { return int(b[0]) | int(b[1])<<8 | int(b[2])<<16 }

func putU24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func readChunk(r io.Reader, n uint32) ([]byte, error) {
	if n > maxChunk {
		return nil, fmt.Errorf("%w: chunk of %d bytes", ErrMalformed, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return buf, nil
}

func parseExtHeader(b []byte) (extHeader, error) {
	if len(b) < vp8xLen {
		return extHeader{}, fmt.Errorf("%w: VP8X chunk too short", ErrMalformed)
	}
	return extHeader{
		flags:  b[0],
		width:  u24(b[4:7]) + 1,
		height: u24(b[7:10]) + 1,
	}, nil
}

func parseANMF(b []byte) (anmfHeader, []byte, error) {
	if len(b) < anmfHeaderLen {
		return anmfHeader{}, nil, fmt.Errorf("%w: ANMF chunk too short", ErrMalformed)
	}
	flags := b[15]
	return anmfHeader{
		x:        2 * u24(b[0:3]),
		y:        2 * u24(b[3:6]),
		width:    u24(b[6:9]) + 1,
		height:   u24(b[9:12]) + 1,
		duration: u24(b[12:15]),
		blend:    flags&anmfNoBlend == 0,
		dispose:  flags&anmfDispose != 0,
	}, b[anmfHeaderLen:], nil
}

// subChunks splits the payload of an ANMF chunk into its nested chunks.
func subChunks(b []byte) ([]chunk, error) {
	var out []chunk
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, fmt.Errorf("%w: truncated frame chunk header", ErrMalformed)
		}
		var id riff.FourCC
		copy(id[:], b[:4])
		n := int(binary.LittleEndian.Uint32(b[4:8]))
		b = b[8:]
		if n > len(b) {
			return nil, fmt.Errorf("%w: frame chunk %q overruns ANMF", ErrMalformed, id[:])
		}
		out = append(out, chunk{id: id, data: b[:n]})
		b = b[n:]
		if n%2 == 1 && len(b) > 0 {
			b = b[1:]
		}
	}
	return out, nil
}

// bitstream picks the optional ALPH and the image bitstream out of chunks.
func bitstream(chunks []chunk) (alph, img *chunk) {
	for i := range chunks {
		switch chunks[i].id {
		case fccALPH:
			alph = &chunks[i]
		case fccVP8, fccVP8L:
			return alph, &chunks[i]
		}
	}
	return nil, nil
}

// vp8Size reads the frame dimensions from a VP8 key frame header.
func vp8Size(b []byte) (int, int, error) {
	if len(b) < 10 || b[3] != 0x9d || b[4] != 0x01 || b[5] != 0x2a {
		return 0, 0, fmt.Errorf("%w: bad VP8 frame header", ErrMalformed)
	}
	w := int(binary.LittleEndian.Uint16(b[6:8]) & 0x3fff)
	h := int(binary.LittleEndian.Uint16(b[8:10]) & 0x3fff)
	return w, h, nil
}

// vp8lSize reads the dimensions and alpha hint from a VP8L header.
func vp8lSize(b []byte) (w, h int, alpha bool, err error) {
	if len(b) < 5 || b[0] != 0x2f {
		return 0, 0, false, fmt.Errorf("%w: bad VP8L signature", ErrMalformed)
	}
	bits := binary.LittleEndian.Uint32(b[1:5])
	w = int(bits&0x3fff) + 1
	h = int((bits>>14)&0x3fff) + 1
	alpha = (bits>>28)&1 == 1
	return w, h, alpha, nil
}

// wrap builds a standalone WebP file around one bitstream so that
// x/image/webp can decode it. VP8L carries its own alpha and is emitted in
// the simple format; VP8 with ALPH needs an extended header sized to the
// VP8 frame.
func wrap(alph, img *chunk) ([]byte, error) {
	chunks := []chunk{*img}
	if img.id == fccVP8 && alph != nil {
		w, h, err := vp8Size(img.data)
		if err != nil {
			return nil, err
		}
		x := make([]byte, vp8xLen)
		x[0] = flagAlpha
		putU24(x[4:7], w-1)
		putU24(x[7:10], h-1)
		chunks = []chunk{{id: fccVP8X, data: x}, *alph, *img}
	}
	return encodeRIFF(chunks), nil
}

func encodeRIFF(chunks []chunk) []byte {
	size := 4
	for _, c := range chunks {
		size += 8 + len(c.data) + len(c.data)%2
	}
	var buf bytes.Buffer
	buf.Grow(8 + size)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(size))
	buf.Write(fccWEBP[:])
	for _, c := range chunks {
		buf.Write(c.id[:])
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(c.data)))
		buf.Write(c.data)
		if len(c.data)%2 == 1 {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}
