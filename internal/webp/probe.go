package webp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Info describes a WebP file without decoding its pixels.
type Info struct {
	Width, Height int
	Animated      bool
	Frames        int
	Alpha         bool
	Lossless      bool
	// Loops is the animation loop count; 0 means forever.
	Loops int
	Size  int64
}

// Pixels returns the canvas area.
func (i Info) Pixels() int { return i.Width * i.Height }

// Probe reads the container headers of the file at path.
func Probe(fsys afero.Fs, path string) (Info, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	var info Info
	if st, err := f.Stat(); err == nil {
		info.Size = st.Size()
	}

	d, err := newDecoder(bufio.NewReader(f))
	if err != nil {
		return Info{}, err
	}

	switch d.head.id {
	case fccVP8:
		if info.Width, info.Height, err = vp8Size(d.head.data); err != nil {
			return Info{}, err
		}
		info.Frames = 1
		return info, checkArea(info.Width, info.Height)
	case fccVP8L:
		if info.Width, info.Height, info.Alpha, err = vp8lSize(d.head.data); err != nil {
			return Info{}, err
		}
		info.Lossless = true
		info.Frames = 1
		return info, checkArea(info.Width, info.Height)
	}

	info.Width, info.Height = d.ext.width, d.ext.height
	info.Alpha = d.ext.alpha()
	info.Animated = d.ext.animated()
	for {
		id, n, cr, err := d.rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch id {
		case fccANIM:
			data, err := readChunk(cr, n)
			if err != nil {
				return Info{}, err
			}
			if len(data) >= animLen {
				info.Loops = int(binary.LittleEndian.Uint16(data[4:6]))
			}
		case fccANMF:
			info.Frames++
			if info.Frames > 1 {
				continue
			}
			data, err := readChunk(cr, n)
			if err != nil {
				return Info{}, err
			}
			_, payload, err := parseANMF(data)
			if err != nil {
				return Info{}, err
			}
			chunks, err := subChunks(payload)
			if err != nil {
				return Info{}, err
			}
			if _, bits := bitstream(chunks); bits != nil {
				info.Lossless = bits.id == fccVP8L
			}
		case fccVP8:
			info.Frames = 1
		case fccVP8L:
			info.Frames = 1
			info.Lossless = true
		}
	}
	if info.Frames == 0 {
		return Info{}, ErrNoFrames
	}
	return info, nil
}
