package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/backmassage/webpconv/internal/term"
)

// ProgressLine renders batch progress as "[completed/total] <bar> name".
// On a terminal the line is redrawn in place; otherwise each update is a
// separate line without the bar.
type ProgressLine struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	width int
	bar   progress.Model
	drawn bool
}

// NewProgressLine creates a progress line writing to w. width is the
// terminal width (see term.Width); tty selects in-place redraws.
func NewProgressLine(w io.Writer, tty bool, width int) *ProgressLine {
	barWidth := width / 3
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 40 {
		barWidth = 40
	}
	return &ProgressLine{
		w:     w,
		tty:   tty,
		width: width,
		bar: progress.New(
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
			progress.WithSolidFill("13"),
			progress.WithColorProfile(term.Profile()),
		),
	}
}

// Counter formats the "[completed/total]" prefix, padded so the column does
// not shift as completed grows.
func Counter(completed, total int) string {
	digits := len(fmt.Sprint(total))
	return fmt.Sprintf("[%*d/%d]", digits, completed, total)
}

// Fraction returns completed/total clamped to [0,1]; an empty batch is complete.
func Fraction(completed, total int) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(completed) / float64(total)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// Update draws the current state. label is usually the file that just finished.
func (p *ProgressLine) Update(completed, total int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	counter := Counter(completed, total)
	if !p.tty {
		fmt.Fprintf(p.w, "%s %s\n", counter, label)
		return
	}

	line := counter + " " + p.bar.ViewAs(Fraction(completed, total))
	room := p.width - len(counter) - p.bar.Width - 3
	if room > 0 && label != "" {
		line += " " + truncate(label, room)
	}
	fmt.Fprint(p.w, "\r\033[K"+line)
	p.drawn = true
}

// Clear erases the in-place line so a log line can be printed cleanly.
// Call Update again afterwards to redraw.
func (p *ProgressLine) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && p.drawn {
		fmt.Fprint(p.w, "\r\033[K")
		p.drawn = false
	}
}

// Finish terminates the in-place line with a newline.
func (p *ProgressLine) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

// truncate shortens s to at most n runes, keeping the tail (the file name).
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[len(r)-n:])
	}
	return "…" + strings.TrimLeft(string(r[len(r)-n+1:]), " ")
}
