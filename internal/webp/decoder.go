package webp

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"iter"
	"sync/atomic"

	"github.com/spf13/afero"
	"golang.org/x/image/riff"
	xwebp "golang.org/x/image/webp"
)

// DefaultDuration is the display time in milliseconds given to frames of
// still images, which carry no timing of their own.
const DefaultDuration = 100

// Frame is one decoded raster and how long it is shown, in milliseconds.
type Frame struct {
	Image    image.Image
	Duration int
}

// Frames returns the frames of the WebP file at path in display order.
//
// The file is opened when iteration starts and closed when it stops, whether
// the sequence was exhausted, the caller broke out early, or decoding failed.
// A decode failure is yielded once as a non-nil error and ends the sequence.
// The sequence can be ranged over only once; a second pass yields ErrConsumed.
func Frames(fsys afero.Fs, path string) iter.Seq2[Frame, error] {
	var used atomic.Bool
	return func(yield func(Frame, error) bool) {
		if used.Swap(true) {
			yield(Frame{}, ErrConsumed)
			return
		}

		f, err := fsys.Open(path)
		if err != nil {
			yield(Frame{}, err)
			return
		}
		defer f.Close()

		d, err := newDecoder(bufio.NewReader(f))
		if err != nil {
			yield(Frame{}, err)
			return
		}
		for {
			fr, err := d.next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Frame{}, fmt.Errorf("frame %d: %w", d.index, err))
				return
			}
			if !yield(fr, nil) {
				return
			}
		}
	}
}

// First decodes only the first frame of the file at path.
func First(fsys afero.Fs, path string) (Frame, error) {
	for fr, err := range Frames(fsys, path) {
		return fr, err
	}
	return Frame{}, ErrNoFrames
}

type decoder struct {
	rr    *riff.Reader
	head  chunk // first chunk: the bitstream of a simple file, or VP8X
	ext   extHeader
	index int
	done  bool

	// animation state
	canvas      *image.RGBA
	prev        image.Rectangle
	prevDispose bool
}

func newDecoder(r io.Reader) (*decoder, error) {
	form, rr, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWebP, err)
	}
	if form != fccWEBP {
		return nil, ErrNotWebP
	}
	id, n, cr, err := rr.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	data, err := readChunk(cr, n)
	if err != nil {
		return nil, err
	}

	d := &decoder{rr: rr, head: chunk{id: id, data: data}}
	switch id {
	case fccVP8, fccVP8L:
	case fccVP8X:
		if d.ext, err = parseExtHeader(data); err != nil {
			return nil, err
		}
		if err := checkArea(d.ext.width, d.ext.height); err != nil {
			return nil, err
		}
		if d.ext.animated() {
			d.canvas = image.NewRGBA(image.Rect(0, 0, d.ext.width, d.ext.height))
		}
	default:
		return nil, fmt.Errorf("%w: unexpected first chunk %q", ErrMalformed, id[:])
	}
	return d, nil
}

func (d *decoder) next() (Frame, error) {
	if d.done {
		return Frame{}, io.EOF
	}
	if d.canvas == nil {
		d.done = true
		img, err := d.still()
		if err != nil {
			return Frame{}, err
		}
		d.index++
		return Frame{Image: img, Duration: DefaultDuration}, nil
	}

	for {
		id, n, cr, err := d.rr.Next()
		if err == io.EOF {
			d.done = true
			if d.index == 0 {
				return Frame{}, ErrNoFrames
			}
			return Frame{}, io.EOF
		}
		if err != nil {
			d.done = true
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if id != fccANMF {
			continue
		}
		data, err := readChunk(cr, n)
		if err != nil {
			d.done = true
			return Frame{}, err
		}
		fr, err := d.frame(data)
		if err != nil {
			d.done = true
			return Frame{}, err
		}
		d.index++
		return fr, nil
	}
}

// still decodes a single-image file, simple or extended.
func (d *decoder) still() (image.Image, error) {
	if d.head.id != fccVP8X {
		return decodeBitstream(nil, &d.head)
	}
	var alph *chunk
	for {
		id, n, cr, err := d.rr.Next()
		if err == io.EOF {
			return nil, ErrNoFrames
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch id {
		case fccALPH, fccVP8, fccVP8L:
		default:
			continue
		}
		data, err := readChunk(cr, n)
		if err != nil {
			return nil, err
		}
		c := chunk{id: id, data: data}
		if id == fccALPH {
			alph = &c
			continue
		}
		return decodeBitstream(alph, &c)
	}
}

// frame decodes one ANMF chunk and composites it onto the canvas.
func (d *decoder) frame(data []byte) (Frame, error) {
	h, payload, err := parseANMF(data)
	if err != nil {
		return Frame{}, err
	}
	chunks, err := subChunks(payload)
	if err != nil {
		return Frame{}, err
	}
	alph, bits := bitstream(chunks)
	if bits == nil {
		return Frame{}, fmt.Errorf("%w: ANMF without bitstream", ErrMalformed)
	}
	img, err := decodeBitstream(alph, bits)
	if err != nil {
		return Frame{}, err
	}
	if b := img.Bounds(); b.Dx() != h.width || b.Dy() != h.height {
		return Frame{}, fmt.Errorf("%w: %dx%d in a %dx%d frame", errBadBitsize, b.Dx(), b.Dy(), h.width, h.height)
	}

	if d.prevDispose {
		draw.Draw(d.canvas, d.prev, image.Transparent, image.Point{}, draw.Src)
	}
	rect := image.Rect(h.x, h.y, h.x+h.width, h.y+h.height).Intersect(d.canvas.Bounds())
	op := draw.Over
	if !h.blend {
		op = draw.Src
	}
	draw.Draw(d.canvas, rect, img, img.Bounds().Min, op)
	d.prev, d.prevDispose = rect, h.dispose

	snap := image.NewRGBA(d.canvas.Bounds())
	copy(snap.Pix, d.canvas.Pix)
	return Frame{Image: snap, Duration: h.duration}, nil
}

func decodeBitstream(alph, bits *chunk) (image.Image, error) {
	file, err := wrap(alph, bits)
	if err != nil {
		return nil, err
	}
	cfg, err := xwebp.DecodeConfig(bytes.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("webp: decode %s header: %w", bytes.TrimSpace(bits.id[:]), err)
	}
	if err := checkArea(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, err := xwebp.Decode(bytes.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("webp: decode %s bitstream: %w", bytes.TrimSpace(bits.id[:]), err)
	}
	return img, nil
}
