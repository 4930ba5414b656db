// Package term provides color styles and terminal detection.
//
// Styles are package-level because multiple packages (logging, display,
// pipeline) need them for output formatting. [Configure] sets them once
// during startup; when colors are disabled [Paint] returns text unchanged.
package term

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	xterm "golang.org/x/term"

	"github.com/backmassage/webpconv/internal/config"
)

// Styles for each log level and highlight. Zero styles until Configure runs.
var (
	Red     lipgloss.Style
	Green   lipgloss.Style
	Yellow  lipgloss.Style
	Orange  lipgloss.Style
	Blue    lipgloss.Style
	Cyan    lipgloss.Style
	Magenta lipgloss.Style
)

var (
	enabled bool
	profile = termenv.Ascii
)

// Configure resolves the color mode and rebuilds the styles on a renderer
// bound to stdout. Call once during startup (from [logging.NewLogger]).
func Configure(mode config.ColorMode) {
	enabled = resolve(mode)
	profile = termenv.Ascii
	if enabled {
		profile = termenv.ANSI256
	}

	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(profile)

	Red = r.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	Green = r.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	Yellow = r.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	Orange = r.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	Blue = r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	Cyan = r.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	Magenta = r.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
}

// Enabled reports whether colors are currently active.
func Enabled() bool { return enabled }

// Profile returns the active color profile (Ascii when colors are off).
func Profile() termenv.Profile { return profile }

// Paint renders s with style when colors are enabled.
func Paint(style lipgloss.Style, s string) string {
	if !enabled {
		return s
	}
	return style.Render(s)
}

// resolve determines whether colors should be enabled based on the configured
// mode, TTY detection, and the NO_COLOR env var (https://no-color.org).
func resolve(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return IsTerminal(os.Stdout) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return xterm.IsTerminal(int(f.Fd()))
}

// Width returns the stdout terminal width, or 80 when it cannot be determined.
func Width() int {
	if w, _, err := xterm.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
