package webp

import (
	"errors"
	"image"
	"image/color"
	"os"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"github.com/backmassage/webpconv/internal/webp/synth"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
)

// writeFile stores data in a fresh in-memory filesystem.
func writeFile(t *testing.T, name string, data []byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, name, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return fs
}

// trackingFs counts files that are open.
type trackingFs struct {
	afero.Fs
	open atomic.Int32
}

func (t *trackingFs) Open(name string) (afero.File, error) {
	f, err := t.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	t.open.Add(1)
	return &trackedFile{File: f, fs: t}, nil
}

type trackedFile struct {
	afero.File
	fs *trackingFs
}

func (f *trackedFile) Close() error {
	f.fs.open.Add(-1)
	return f.File.Close()
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func collect(t *testing.T, fs afero.Fs, name string) []Frame {
	t.Helper()
	var out []Frame
	for fr, err := range Frames(fs, name) {
		if err != nil {
			t.Fatalf("Frames(%s): %v", name, err)
		}
		out = append(out, fr)
	}
	return out
}

func TestFrames_Still(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want color.NRGBA
	}{
		{"simple lossless", synth.Solid(6, 4, red), red},
		{"extended opaque", synth.Extended(6, 4, green), green},
		{"extended with alpha", synth.Extended(6, 4, color.NRGBA{B: 0xff, A: 0x80}), color.NRGBA{B: 0xff, A: 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := writeFile(t, "still.webp", tt.data)
			frames := collect(t, fs, "still.webp")
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(frames))
			}
			fr := frames[0]
			if b := fr.Image.Bounds(); b.Dx() != 6 || b.Dy() != 4 {
				t.Errorf("bounds = %v, want 6x4", b)
			}
			if fr.Duration != DefaultDuration {
				t.Errorf("duration = %d, want %d", fr.Duration, DefaultDuration)
			}
			if got := nrgbaAt(fr.Image, 3, 2); got != tt.want {
				t.Errorf("pixel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrames_Animated(t *testing.T) {
	data := synth.Animated(8, 8, 0, synth.SolidFrames(8, 8, 4, 80)...)
	fs := writeFile(t, "anim.webp", data)

	frames := collect(t, fs, "anim.webp")
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	want := synth.SolidFrames(8, 8, 4, 80)
	for i, fr := range frames {
		if fr.Duration != 80 {
			t.Errorf("frame %d duration = %d, want 80", i, fr.Duration)
		}
		if got := nrgbaAt(fr.Image, 4, 4); got != want[i].Color {
			t.Errorf("frame %d pixel = %v, want %v", i, got, want[i].Color)
		}
	}
}

func TestFrames_Compositing(t *testing.T) {
	data := synth.Animated(8, 8, 0,
		synth.Frame{Width: 8, Height: 8, Color: red, Duration: 50},
		// Blended 4x4 patch at (2,2); disposed before the next frame.
		synth.Frame{X: 2, Y: 2, Width: 4, Height: 4, Color: green, Duration: 50, Dispose: true},
		// Overwrites the top-left 2x2 with half-transparent blue.
		synth.Frame{Width: 2, Height: 2, Color: color.NRGBA{B: 0xff, A: 0x80}, Duration: 50, NoBlend: true},
	)
	fs := writeFile(t, "comp.webp", data)
	frames := collect(t, fs, "comp.webp")
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}

	if got := nrgbaAt(frames[1].Image, 3, 3); got != green {
		t.Errorf("frame 1 patch = %v, want green", got)
	}
	if got := nrgbaAt(frames[1].Image, 0, 7); got != red {
		t.Errorf("frame 1 outside patch = %v, want red", got)
	}

	// Patch disposed to transparent, rest of frame 0 remains.
	if got := nrgbaAt(frames[2].Image, 3, 3); got.A != 0 {
		t.Errorf("frame 2 disposed area = %v, want transparent", got)
	}
	if got := nrgbaAt(frames[2].Image, 7, 0); got != red {
		t.Errorf("frame 2 untouched area = %v, want red", got)
	}
	// NoBlend keeps the source alpha instead of compositing over red.
	got := nrgbaAt(frames[2].Image, 1, 1)
	if got.A < 0x7e || got.A > 0x81 || got.R != 0 {
		t.Errorf("frame 2 overwritten pixel = %v, want ~{0 0 255 128}", got)
	}

	// Snapshots are independent.
	if got := nrgbaAt(frames[0].Image, 3, 3); got != red {
		t.Errorf("frame 0 mutated by later frames: %v", got)
	}
}

func TestFrames_EarlyBreak(t *testing.T) {
	fs := &trackingFs{Fs: writeFile(t, "anim.webp", synth.Animated(4, 4, 0, synth.SolidFrames(4, 4, 5, 40)...))}
	n := 0
	for _, err := range Frames(fs, "anim.webp") {
		if err != nil {
			t.Fatal(err)
		}
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("iterated %d frames, want 2", n)
	}
	if open := fs.open.Load(); open != 0 {
		t.Errorf("%d file handles still open after early break", open)
	}
}

func TestFrames_NotRestartable(t *testing.T) {
	fs := writeFile(t, "a.webp", synth.Solid(2, 2, red))
	seq := Frames(fs, "a.webp")
	for range seq {
	}
	for _, err := range seq {
		if !errors.Is(err, ErrConsumed) {
			t.Errorf("second pass error = %v, want ErrConsumed", err)
		}
	}
}

func TestFrames_Errors(t *testing.T) {
	truncated := synth.Animated(4, 4, 0, synth.SolidFrames(4, 4, 2, 40)...)
	truncated = truncated[:len(truncated)-10]

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"garbage", []byte("this is not an image at all"), ErrNotWebP},
		{"wrong form", append([]byte("RIFF\x04\x00\x00\x00AVI "), 0), ErrNotWebP},
		{"animation without frames", synth.Animated(4, 4, 0), ErrNoFrames},
		{"truncated", truncated, nil},
		{"oversized canvas", synth.Animated(16384, 16384, 0, synth.Frame{Width: 2, Height: 2, Color: red, Duration: 100}), ErrTooLarge},
		{"oversized extended still", synth.Extended(16384, 16384, red), ErrTooLarge},
		{"oversized lossless bitstream", synth.Solid(16384, 16384, red), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &trackingFs{Fs: writeFile(t, "bad.webp", tt.data)}
			var got error
			for _, err := range Frames(fs, "bad.webp") {
				if err != nil {
					got = err
				}
			}
			if got == nil {
				t.Fatal("no error yielded")
			}
			if tt.wantErr != nil && !errors.Is(got, tt.wantErr) {
				t.Errorf("error = %v, want %v", got, tt.wantErr)
			}
			if open := fs.open.Load(); open != 0 {
				t.Errorf("%d file handles still open after error", open)
			}
		})
	}
}

// loadTestdata copies a checked-in fixture into a fresh in-memory filesystem.
func loadTestdata(t *testing.T, name string) afero.Fs {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatal(err)
	}
	return writeFile(t, name, data)
}

func within(got, want color.NRGBA, tol int) bool {
	d := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	return d(got.R, want.R) <= tol && d(got.G, want.G) <= tol && d(got.B, want.B) <= tol && d(got.A, want.A) <= tol
}

func TestFrames_Lossy(t *testing.T) {
	tests := []struct {
		name          string
		file          string
		width, height int
		x, y          int
		want          color.NRGBA
		clearX        int // a fully transparent pixel on row 5, or -1
	}{
		{"simple VP8", "lossy.webp", 150, 103, 75, 51, color.NRGBA{R: 164, G: 79, B: 0, A: 0xff}, -1},
		{"VP8 with ALPH", "lossy-alpha.webp", 400, 301, 200, 150, color.NRGBA{R: 153, G: 75, B: 1, A: 0xff}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := loadTestdata(t, tt.file)
			frames := collect(t, fs, tt.file)
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(frames))
			}
			img := frames[0].Image
			if b := img.Bounds(); b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("bounds = %v, want %dx%d", b, tt.width, tt.height)
			}
			if got := nrgbaAt(img, tt.x, tt.y); !within(got, tt.want, 32) {
				t.Errorf("pixel (%d,%d) = %v, want about %v", tt.x, tt.y, got, tt.want)
			}
			if tt.clearX >= 0 {
				if got := nrgbaAt(img, tt.clearX, 5); got.A > 16 {
					t.Errorf("pixel (%d,5) alpha = %d, want transparent", tt.clearX, got.A)
				}
			}
		})
	}
}

func TestInfo_Lossy(t *testing.T) {
	tests := []struct {
		file string
		want Info
	}{
		{"lossy.webp", Info{Width: 150, Height: 103, Frames: 1}},
		{"lossy-alpha.webp", Info{Width: 400, Height: 301, Frames: 1, Alpha: true}},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := Probe(loadTestdata(t, tt.file), tt.file)
			if err != nil {
				t.Fatal(err)
			}
			got.Size = 0
			if got != tt.want {
				t.Errorf("Probe = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInfo_TooLarge(t *testing.T) {
	for name, data := range map[string][]byte{
		"lossless": synth.Solid(16384, 16384, red),
		"extended": synth.Extended(16384, 16384, red),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Probe(writeFile(t, "big.webp", data), "big.webp"); !errors.Is(err, ErrTooLarge) {
				t.Errorf("Probe error = %v, want ErrTooLarge", err)
			}
		})
	}
}

func TestFrames_MissingFile(t *testing.T) {
	if _, err := First(afero.NewMemMapFs(), "nope.webp"); err == nil {
		t.Fatal("First on missing file = nil error")
	}
}

func TestFirst(t *testing.T) {
	fs := writeFile(t, "anim.webp", synth.Animated(4, 4, 0, synth.SolidFrames(4, 4, 3, 40)...))
	fr, err := First(fs, "anim.webp")
	if err != nil {
		t.Fatal(err)
	}
	if got := nrgbaAt(fr.Image, 0, 0); got != synth.SolidFrames(4, 4, 1, 40)[0].Color {
		t.Errorf("first frame pixel = %v", got)
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Info
	}{
		{"simple", synth.Solid(10, 20, red), Info{Width: 10, Height: 20, Frames: 1, Lossless: true}},
		{"simple alpha", synth.Solid(3, 3, color.NRGBA{A: 1}), Info{Width: 3, Height: 3, Frames: 1, Lossless: true, Alpha: true}},
		{"extended", synth.Extended(7, 5, blue), Info{Width: 7, Height: 5, Frames: 1, Lossless: true}},
		{"animated", synth.Animated(16, 9, 3, synth.SolidFrames(16, 9, 4, 80)...),
			Info{Width: 16, Height: 9, Frames: 4, Animated: true, Alpha: true, Lossless: true, Loops: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := writeFile(t, "p.webp", tt.data)
			got, err := Probe(fs, "p.webp")
			if err != nil {
				t.Fatal(err)
			}
			tt.want.Size = int64(len(tt.data))
			if got != tt.want {
				t.Errorf("Probe = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVP8Size(t *testing.T) {
	hdr := []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x40, 0x01, 0xf0, 0x00}
	w, h, err := vp8Size(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if w != 320 || h != 240 {
		t.Errorf("vp8Size = %dx%d, want 320x240", w, h)
	}
	if _, _, err := vp8Size([]byte{0, 0, 0, 1, 2, 3, 0, 0, 0, 0}); !errors.Is(err, ErrMalformed) {
		t.Errorf("bad start code error = %v", err)
	}
}

func TestWrap_VP8WithAlpha(t *testing.T) {
	vp8 := chunk{id: fccVP8, data: []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x08, 0x00, 0x04, 0x00}}
	alph := chunk{id: fccALPH, data: []byte{0}}
	file, err := wrap(&alph, &vp8)
	if err != nil {
		t.Fatal(err)
	}
	if string(file[12:16]) != "VP8X" {
		t.Fatalf("first chunk = %q, want VP8X", file[12:16])
	}
	ext, err := parseExtHeader(file[20:30])
	if err != nil {
		t.Fatal(err)
	}
	if !ext.alpha() || ext.width != 8 || ext.height != 4 {
		t.Errorf("VP8X = %+v, want alpha 8x4", ext)
	}

	file, err = wrap(&alph, &chunk{id: fccVP8L, data: []byte{0x2f, 0, 0, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if string(file[12:16]) != "VP8L" {
		t.Errorf("lossless wrap first chunk = %q, want VP8L", file[12:16])
	}
}
