package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/display"
	"github.com/backmassage/webpconv/internal/logging"
	"github.com/backmassage/webpconv/internal/term"
	"github.com/backmassage/webpconv/internal/webp"
)

// fileRow holds the probed per-file data for the analysis table.
type fileRow struct {
	Name string
	Info webp.Info
}

func (r fileRow) bytesPerPixel() float64 {
	if r.Info.Pixels() <= 0 {
		return 0
	}
	return float64(r.Info.Size) / float64(r.Info.Pixels())
}

// Analyze discovers WebP files, probes each container, and prints a table of
// dimensions, frames, alpha and density, flagging bytes-per-pixel outliers.
// It returns the number of files that could be probed.
func Analyze(ctx context.Context, cfg *config.Config, log *logging.Logger, inputs []string) int {
	return analyze(ctx, cfg, log, inputs, osEnv())
}

func analyze(ctx context.Context, cfg *config.Config, log *logging.Logger, inputs []string, e env) int {
	files, err := Discover(e.fs, inputs, cfg.Discovery)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		return 0
	}
	if len(files) == 0 {
		log.Warn("No .webp files found in %s", strings.Join(inputs, ", "))
		return 0
	}

	total := len(files)
	log.Info("Analyzing %d files …", total)

	line := display.NewProgressLine(e.out, e.tty, e.width)
	var rows []fileRow
	var bpp []float64
	for i, path := range files {
		if ctx.Err() != nil {
			line.Clear()
			log.Warn("Interrupted")
			return len(rows)
		}
		if e.tty {
			line.Update(i, total, filepath.Base(path))
		}

		info, err := webp.Probe(e.fs, path)
		if err != nil {
			line.Clear()
			log.Warn("Skip (probe failed): %s: %v", filepath.Base(path), err)
			continue
		}
		row := fileRow{Name: filepath.Base(path), Info: info}
		rows = append(rows, row)
		if v := row.bytesPerPixel(); v > 0 {
			bpp = append(bpp, v)
		}
	}
	line.Clear()

	if len(rows) == 0 {
		log.Warn("No files could be probed")
		return 0
	}

	stats := computeStats(bpp)
	printAnalysisTable(e.out, rows, stats)
	printAnalysisSummary(log, rows, stats)
	return len(rows)
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

func printAnalysisTable(w io.Writer, rows []fileRow, stats iqrBounds) {
	headers := []string{"File", "Size", "Frames", "Alpha", "Codec", "Bytes", "Density"}
	cells := make([][]string, len(rows))
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for i, r := range rows {
		cells[i] = []string{
			r.Name,
			fmt.Sprintf("%dx%d", r.Info.Width, r.Info.Height),
			frameCell(r.Info),
			yesNo(r.Info.Alpha),
			codecLabel(r.Info),
			display.FormatBytes(r.Info.Size),
			display.FormatBytesPerPixel(r.Info.Size, r.Info.Pixels()),
		}
		for j, c := range cells[i] {
			widths[j] = max(widths[j], len([]rune(c)))
		}
	}
	widths[0] = min(widths[0], 50)

	var header strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&header, "  %-*s", widths[i], h)
	}
	fmt.Fprintln(w, header.String())
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header.String())-2))

	for i, r := range rows {
		class := stats.classify(r.bytesPerPixel())
		var b strings.Builder
		for j, c := range cells[i] {
			if j == 0 && len([]rune(c)) > widths[0] {
				c = string([]rune(c)[:widths[0]-1]) + "…"
			}
			padded := fmt.Sprintf("%-*s", widths[j], c)
			if j == len(cells[i])-1 {
				// Pad the plain text first so escape bytes do not count as width.
				padded = colorCell(padded, class)
			}
			b.WriteString("  " + padded)
		}
		if f := formatFlag(class); f != "" {
			b.WriteString("  " + f)
		}
		fmt.Fprintln(w, b.String())
	}
	fmt.Fprintln(w)
}

func printAnalysisSummary(log *logging.Logger, rows []fileRow, stats iqrBounds) {
	var outliers, extremes, animated int
	for _, r := range rows {
		if r.Info.Animated {
			animated++
		}
		switch stats.classify(r.bytesPerPixel()) {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
	}

	log.Info("Analyzed %d files (%d animated)", len(rows), animated)
	if stats.valid {
		log.Info("  Density IQR: %.2f – %.2f B/px (outlier < %.2f or > %.2f)",
			stats.q1, stats.q3, stats.outlierLo, stats.outlierHi)
	}
	if outliers > 0 {
		log.Outlier("  %d outlier(s) flagged [*]", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme outlier(s) flagged [!]", extremes)
	}
	if outliers == 0 && extremes == 0 {
		log.Success("  No outliers detected")
	}
}

func frameCell(i webp.Info) string {
	if !i.Animated {
		return "1"
	}
	loops := "∞"
	if i.Loops > 0 {
		loops = fmt.Sprintf("x%d", i.Loops)
	}
	return fmt.Sprintf("%d %s", i.Frames, loops)
}

func codecLabel(i webp.Info) string {
	switch {
	case i.Animated:
		return "anim"
	case i.Lossless:
		return "lossless"
	default:
		return "lossy"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatFlag(class string) string {
	switch class {
	case "extreme":
		return term.Paint(term.Red, "[!]")
	case "outlier":
		return term.Paint(term.Orange, "[*]")
	default:
		return ""
	}
}

func colorCell(s, class string) string {
	switch class {
	case "extreme":
		return term.Paint(term.Red, s)
	case "outlier":
		return term.Paint(term.Orange, s)
	default:
		return s
	}
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
