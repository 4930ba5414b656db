// Package check provides the codec self-test (check command) and the
// pre-run validation (CheckCodecs) that fails fast when the in-process
// WebP decoder or GIF/JPEG encoders are broken on this platform.
package check

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"runtime"

	"github.com/spf13/afero"

	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/convert"
	"github.com/backmassage/webpconv/internal/webp"
	"github.com/backmassage/webpconv/internal/webp/synth"
)

// Sentinel errors returned by CheckCodecs when a codec self-test fails.
var (
	ErrWebPDecode = errors.New("WebP decode self-test failed")
	ErrGIFEncode  = errors.New("GIF encode self-test failed")
	ErrJPEGEncode = errors.New("JPEG encode self-test failed")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...any)
	Success(string, ...any)
	Warn(string, ...any)
	Error(string, ...any)
}

const (
	fixtureSize   = 16
	fixtureFrames = 3
	fixtureDelay  = 120 // ms
)

var fixtureColor = color.NRGBA{R: 30, G: 144, B: 255, A: 255}

type selfTest struct {
	name     string
	sentinel error
	run      func(fs afero.Fs) error
}

var selfTests = []selfTest{
	{"WebP decode (lossless still and animation)", ErrWebPDecode, testDecode},
	{"GIF encode (median cut palette, animation)", ErrGIFEncode, testGIF},
	{"JPEG encode (baseline 4:4:4)", ErrJPEGEncode, testJPEG},
}

// RunCheck runs the interactive check flow: prints the environment and the
// result of each codec self-test. Returns false if any self-test failed.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")
	log.Info("Go runtime: %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	log.Info("Hardware threads: %d (workers: %d)", runtime.NumCPU(), cfg.ResolvedWorkers())
	if dir := config.ConfigDir(); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			log.Info("Config directory: %s", dir)
		} else {
			log.Info("Config directory: %s (not present, using defaults)", dir)
		}
	}

	ok := true
	for _, st := range selfTests {
		if err := st.run(afero.NewMemMapFs()); err != nil {
			log.Error("%s: %v", st.name, err)
			ok = false
			continue
		}
		log.Success("%s", st.name)
	}
	if !ok {
		log.Warn("Conversions are likely to fail on this system")
	}
	return ok
}

// CheckCodecs is the pre-run validation: it runs every codec self-test in
// memory and returns the sentinel of the first one that fails.
func CheckCodecs() error {
	for _, st := range selfTests {
		if err := st.run(afero.NewMemMapFs()); err != nil {
			return fmt.Errorf("%w: %v", st.sentinel, err)
		}
	}
	return nil
}

// --- self-tests ---

func testDecode(fs afero.Fs) error {
	if err := writeFixtures(fs); err != nil {
		return err
	}
	still, err := webp.First(fs, "/still.webp")
	if err != nil {
		return err
	}
	if err := expectColor(still.Image, fixtureColor, 0); err != nil {
		return fmt.Errorf("still: %w", err)
	}

	want := synth.SolidFrames(fixtureSize, fixtureSize, fixtureFrames, fixtureDelay)
	n := 0
	for fr, err := range webp.Frames(fs, "/anim.webp") {
		if err != nil {
			return err
		}
		if n >= len(want) {
			return fmt.Errorf("more than %d frames", len(want))
		}
		if err := expectColor(fr.Image, want[n].Color, 0); err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}
		if fr.Duration != fixtureDelay {
			return fmt.Errorf("frame %d: duration %dms, want %dms", n, fr.Duration, fixtureDelay)
		}
		n++
	}
	if n != len(want) {
		return fmt.Errorf("decoded %d frames, want %d", n, len(want))
	}
	return nil
}

func testGIF(fs afero.Fs) error {
	if err := writeFixtures(fs); err != nil {
		return err
	}
	res := convertFixture(fs, "/anim.webp", convert.FormatGIF)
	if !res.Success {
		return res.Err
	}
	f, err := fs.Open(res.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		return err
	}
	if len(g.Image) != fixtureFrames {
		return fmt.Errorf("%d frames, want %d", len(g.Image), fixtureFrames)
	}
	if g.LoopCount != 0 {
		return fmt.Errorf("loop count %d, want 0 (forever)", g.LoopCount)
	}
	if want := (fixtureDelay + 5) / 10; g.Delay[0] != want {
		return fmt.Errorf("delay %d, want %d", g.Delay[0], want)
	}
	return nil
}

func testJPEG(fs afero.Fs) error {
	if err := writeFixtures(fs); err != nil {
		return err
	}
	res := convertFixture(fs, "/still.webp", convert.FormatJPEG)
	if !res.Success {
		return res.Err
	}
	f, err := fs.Open(res.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return err
	}
	if ycc, ok := img.(*image.YCbCr); ok && ycc.SubsampleRatio != image.YCbCrSubsampleRatio444 {
		return fmt.Errorf("chroma subsampling %v, want 4:4:4", ycc.SubsampleRatio)
	}
	return expectColor(img, fixtureColor, 8)
}

func writeFixtures(fs afero.Fs) error {
	if err := afero.WriteFile(fs, "/still.webp", synth.Solid(fixtureSize, fixtureSize, fixtureColor), 0o644); err != nil {
		return err
	}
	frames := synth.SolidFrames(fixtureSize, fixtureSize, fixtureFrames, fixtureDelay)
	return afero.WriteFile(fs, "/anim.webp", synth.Animated(fixtureSize, fixtureSize, 0, frames...), 0o644)
}

func convertFixture(fs afero.Fs, src string, format convert.Format) convert.Result {
	opts := convert.DefaultOptions()
	opts.Format = format
	return convert.New(fs).Convert(context.Background(), convert.Task{SourcePath: src, Options: opts})
}

// expectColor checks the center pixel of img against want, per channel
// within tol.
func expectColor(img image.Image, want color.NRGBA, tol int) error {
	b := img.Bounds()
	got := color.NRGBAModel.Convert(img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)).(color.NRGBA)
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	if diff(got.R, want.R) > tol || diff(got.G, want.G) > tol || diff(got.B, want.B) > tol {
		return fmt.Errorf("pixel %v, want %v", got, want)
	}
	return nil
}
