package term

import (
	"os"
	"strings"
	"testing"

	"github.com/muesli/termenv"

	"github.com/backmassage/webpconv/internal/config"
)

func TestConfigure_Never(t *testing.T) {
	Configure(config.ColorNever)
	if Enabled() {
		t.Fatal("colors enabled with ColorNever")
	}
	if Profile() != termenv.Ascii {
		t.Errorf("profile = %v, want Ascii", Profile())
	}
	if got := Paint(Red, "[ERROR]"); got != "[ERROR]" {
		t.Errorf("Paint with colors off = %q, want plain text", got)
	}
}

func TestConfigure_Always(t *testing.T) {
	Configure(config.ColorAlways)
	t.Cleanup(func() { Configure(config.ColorNever) })

	if !Enabled() {
		t.Fatal("colors disabled with ColorAlways")
	}
	got := Paint(Green, "ok")
	if !strings.Contains(got, "ok") || !strings.Contains(got, "\x1b[") {
		t.Errorf("Paint with colors on = %q, want ANSI-wrapped text", got)
	}
}

func TestConfigure_AutoRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	Configure(config.ColorAuto)
	if Enabled() {
		t.Error("colors enabled despite NO_COLOR")
	}
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("regular file reported as terminal")
	}
	if IsTerminal(nil) {
		t.Error("nil file reported as terminal")
	}
}

func TestWidth_Fallback(t *testing.T) {
	if w := Width(); w <= 0 {
		t.Errorf("Width() = %d, want positive", w)
	}
}
