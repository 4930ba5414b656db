package cmd

import (
	"bytes"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/webp/synth"
)

var blue = color.NRGBA{R: 20, G: 40, B: 220, A: 255}

// executeCommand runs a fresh command tree with args and returns captured output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Cleanup(viper.Reset)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append(args, "--color", "never"))
	err := root.Execute()
	return buf.String(), err
}

func writeWebP(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	if root.Use != "webpconv" {
		t.Errorf("root.Use = %q, want webpconv", root.Use)
	}
	cmds := make(map[string]*cobra.Command)
	for _, c := range root.Commands() {
		cmds[c.Name()] = c
	}
	for _, want := range []string{"convert", "watch", "analyze", "check", "version"} {
		if cmds[want] == nil {
			t.Errorf("subcommand %q not found", want)
		}
	}
	for _, name := range []string{"format", "delete", "recursive", "exclude", "workers", "dry-run"} {
		if cmds["convert"].Flags().Lookup(name) == nil {
			t.Errorf("convert is missing --%s", name)
		}
	}
	if cmds["watch"].Flags().Lookup("settle") == nil {
		t.Error("watch is missing --settle")
	}
}

func TestConvert_JPEGFolder(t *testing.T) {
	dir := t.TempDir()
	writeWebP(t, dir, "a.webp", synth.Solid(8, 8, blue))
	writeWebP(t, dir, "b.webp", synth.Animated(8, 8, 0, synth.SolidFrames(8, 8, 2, 100)...))

	if _, err := executeCommand(t, "convert", "-f", "jpeg", "-w", "2", dir); err != nil {
		t.Fatalf("convert: %v", err)
	}
	for _, name := range []string{"a.jpg", "b.jpg"} {
		if !exists(filepath.Join(dir, name)) {
			t.Errorf("%s not written", name)
		}
	}
	if !exists(filepath.Join(dir, "a.webp")) {
		t.Error("original deleted without --delete")
	}
}

func TestConvert_DeleteAndReport(t *testing.T) {
	dir := t.TempDir()
	src := writeWebP(t, dir, "a.webp", synth.Solid(8, 8, blue))
	report := filepath.Join(t.TempDir(), "run.yaml")

	if _, err := executeCommand(t, "convert", "--delete", "--report", report, src); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !exists(filepath.Join(dir, "a.gif")) {
		t.Error("a.gif not written")
	}
	if exists(src) {
		t.Error("original kept with --delete")
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(string(b), "converted: 1") {
		t.Errorf("report:\n%s", b)
	}
}

func TestConvert_FailureExitCode(t *testing.T) {
	dir := t.TempDir()
	writeWebP(t, dir, "good.webp", synth.Solid(4, 4, blue))
	writeWebP(t, dir, "bad.webp", []byte("RIFF nonsense"))

	_, err := executeCommand(t, "convert", dir)
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("convert error = %v, want ErrFailed", err)
	}
	if !exists(filepath.Join(dir, "good.gif")) {
		t.Error("good file not converted alongside the failure")
	}
}

func TestConvert_RejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"convert", "-f", "png", dir}},
		{"quality", []string{"convert", "--quality", "0", dir}},
		{"exclude", []string{"convert", "-x", "[unclosed", dir}},
		{"no paths", []string{"convert"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, tt.args...); err == nil {
				t.Error("Execute() = nil, want error")
			}
		})
	}
}

func TestConvert_EnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeWebP(t, dir, "a.webp", synth.Solid(4, 4, blue))
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("convert:\n  format: gif\n  skip_existing: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Environment beats the config file.
	t.Setenv("WEBPCONV_CONVERT_FORMAT", "jpeg")
	if _, err := executeCommand(t, "convert", "--config", cfgFile, dir); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !exists(filepath.Join(dir, "a.jpg")) || exists(filepath.Join(dir, "a.gif")) {
		t.Error("WEBPCONV_CONVERT_FORMAT did not override the config file")
	}

	// A flag beats the environment.
	if _, err := executeCommand(t, "convert", "--config", cfgFile, "-f", "gif", dir); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !exists(filepath.Join(dir, "a.gif")) {
		t.Error("-f gif did not override the environment")
	}
}

func TestConvert_MissingConfigFile(t *testing.T) {
	if _, err := executeCommand(t, "convert", "--config", filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir()); err == nil {
		t.Error("missing explicit config file accepted")
	}
}

func TestBindFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addConvertFlags(fs)
	if err := fs.Parse([]string{"--no-dither", "-w", "3", "-x", "*_a.webp", "-x", "*_b.webp", "-r"}); err != nil {
		t.Fatal(err)
	}
	if err := bindFlags(fs); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Convert.Dither {
		t.Error("--no-dither left dithering on")
	}
	if cfg.Convert.Workers != 3 || !cfg.Discovery.Recursive {
		t.Errorf("convert = %+v, discovery = %+v", cfg.Convert, cfg.Discovery)
	}
	if len(cfg.Discovery.Exclude) != 2 {
		t.Errorf("exclude = %v, want two patterns", cfg.Discovery.Exclude)
	}
	if cfg.Convert.Format != config.FormatGIF || cfg.Convert.Quality != 100 {
		t.Errorf("unset flags changed defaults: %+v", cfg.Convert)
	}
}

func TestEnumValues(t *testing.T) {
	format := config.FormatGIF
	fv := &formatValue{&format}
	if err := fv.Set("JPG"); err != nil || format != config.FormatJPEG || fv.String() != "jpeg" {
		t.Errorf("format Set(JPG) -> %q, %v", format, err)
	}
	if err := fv.Set("bmp"); err == nil {
		t.Error("format accepted bmp")
	}

	mode := config.ColorAuto
	cv := &colorValue{&mode}
	if err := cv.Set("off"); err != nil || mode != config.ColorNever {
		t.Errorf("color Set(off) -> %q, %v", mode, err)
	}
	if err := cv.Set("rainbow"); err == nil {
		t.Error("color accepted rainbow")
	}
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	writeWebP(t, dir, "a.webp", synth.Solid(4, 4, blue))
	if _, err := executeCommand(t, "analyze", dir); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := executeCommand(t, "analyze", t.TempDir()); !errors.Is(err, ErrFailed) {
		t.Errorf("analyze of an empty dir = %v, want ErrFailed", err)
	}
}

func TestCheckCommand(t *testing.T) {
	if _, err := executeCommand(t, "check"); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3", "abc123")
	t.Cleanup(func() { SetVersion("dev", "unknown") })
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "webpconv 1.2.3 (abc123)") {
		t.Errorf("version output = %q", out)
	}
}
