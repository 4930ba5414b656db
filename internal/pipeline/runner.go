package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/backmassage/webpconv/internal/batch"
	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/convert"
	"github.com/backmassage/webpconv/internal/display"
	"github.com/backmassage/webpconv/internal/logging"
	"github.com/backmassage/webpconv/internal/term"
)

// env is where a run reads files and draws progress.
type env struct {
	fs    afero.Fs
	out   io.Writer
	tty   bool
	width int
}

func osEnv() env {
	return env{
		fs:    afero.NewOsFs(),
		out:   os.Stdout,
		tty:   term.IsTerminal(os.Stdout),
		width: term.Width(),
	}
}

// ConvertOptions maps the conversion section of cfg onto per-task options.
func ConvertOptions(cfg *config.Config) convert.Options {
	return convert.Options{
		Format:         convert.Format(cfg.Convert.Format),
		DeleteOriginal: cfg.Convert.DeleteOriginal,
		Quality:        cfg.Convert.Quality,
		Dither:         cfg.Convert.Dither,
		SkipExisting:   cfg.Convert.SkipExisting,
		DryRun:         cfg.Convert.DryRun,
	}
}

// Run is the batch runner: discover inputs, configure one batch, convert it
// on the worker pool while logging each result and drawing progress, then
// print the summary and write the optional report. It returns once every
// task has reported; cancelling ctx fails the tasks that have not started.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, inputs []string) RunStats {
	return run(ctx, cfg, log, inputs, osEnv())
}

func run(ctx context.Context, cfg *config.Config, log *logging.Logger, inputs []string, e env) RunStats {
	var stats RunStats

	files, err := Discover(e.fs, inputs, cfg.Discovery)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		stats.Err = err
		return stats
	}
	if len(files) == 0 {
		log.Warn("No .webp files found in %s", strings.Join(inputs, ", "))
		return stats
	}

	b, err := batch.Configure(files, ConvertOptions(cfg))
	if err != nil {
		log.Error("%v", err)
		stats.Err = err
		return stats
	}
	b.Workers = cfg.ResolvedWorkers()
	stats.BatchID = b.ID
	stats.Total = b.Total()

	blog := log.WithBatch(b.ID)
	logBatchHeader(cfg, blog, &stats)

	line := display.NewProgressLine(e.out, e.tty, e.width)
	started := time.Now()
	err = b.Run(ctx, convert.New(e.fs), func(ev batch.Event) {
		line.Clear()
		stats.record(ev.Result)
		logResult(blog, ev, cfg.Convert.DryRun)
		if e.tty {
			line.Update(ev.Completed, ev.Total, filepath.Base(ev.Result.SourcePath))
		}
	}, func(s batch.Summary) {
		line.Finish()
		blog.Debug("Batch %s complete (%d tasks)", s.BatchID, s.Total)
	})
	if err != nil {
		blog.Error("%v", err)
		stats.Err = err
		return stats
	}
	finished := time.Now()

	if ctx.Err() != nil && stats.Canceled > 0 {
		blog.Warn("Interrupted: %d file(s) not converted", stats.Canceled)
	}
	logSummary(cfg, blog, &stats, finished.Sub(started))

	if cfg.Convert.Report != "" {
		r := NewReport(cfg, &stats, started, finished)
		if err := WriteReport(e.fs, cfg.Convert.Report, r); err != nil {
			blog.Error("Report: %v", err)
		} else {
			blog.Info("Report written to %s", cfg.Convert.Report)
		}
	}
	return stats
}

func logResult(log *logging.Logger, ev batch.Event, dryRun bool) {
	r := ev.Result
	counter := display.Counter(ev.Completed, ev.Total)
	name := filepath.Base(r.SourcePath)

	switch {
	case convert.IsCanceled(r):
		log.Warn("%s Canceled: %s", counter, name)
	case !r.Success:
		log.Error("%s Failed: %s", counter, r.Error())
	case r.Skipped:
		log.Info("%s Skip (output exists): %s", counter, filepath.Base(r.OutputPath))
	case dryRun:
		log.Info("%s Dry run: %s -> %s (%s)", counter, name, filepath.Base(r.OutputPath), frameLabel(r.Frames))
	default:
		ratio := int64(0)
		if r.InputBytes > 0 {
			ratio = r.OutputBytes * 100 / r.InputBytes
		}
		log.Success("%s %s -> %s in %s (%s, %d%% of original)",
			counter, name, filepath.Base(r.OutputPath),
			display.FormatElapsed(r.Elapsed), frameLabel(r.Frames), ratio)
		log.Debug("  %s -> %s", display.FormatBytes(r.InputBytes), display.FormatBytes(r.OutputBytes))
	}
	if r.Warning != nil {
		log.Warn("  Original kept: %v", r.Warning)
	}
}

func frameLabel(n int) string {
	if n == 1 {
		return "1 frame"
	}
	return fmt.Sprintf("%d frames", n)
}

// --- Logging helpers ---

func logBatchHeader(cfg *config.Config, log *logging.Logger, stats *RunStats) {
	log.Info("Found %d files (batch %s)", stats.Total, stats.BatchID)

	switch cfg.Convert.Format {
	case config.FormatJPEG:
		log.Info("Output: JPEG, quality %d, 4:4:4", cfg.Convert.Quality)
	default:
		dither := "nearest color"
		if cfg.Convert.Dither {
			dither = "Floyd-Steinberg"
		}
		log.Info("Output: GIF, palette from first frame, %s for animation frames", dither)
	}
	log.Info("Workers: %d", cfg.ResolvedWorkers())
	if cfg.Convert.DeleteOriginal {
		log.Info("Originals: deleted after successful conversion")
	}
	if cfg.Convert.SkipExisting {
		log.Info("Existing outputs: skipped")
	}
	if cfg.Convert.DryRun {
		log.Info("Dry run: nothing will be written or deleted")
	}
}

func logSummary(cfg *config.Config, log *logging.Logger, stats *RunStats, elapsed time.Duration) {
	log.Info("==============================")
	log.Info("Done: %d converted, %d skipped, %d failed", stats.Converted, stats.Skipped, stats.Failed)
	log.Info("Summary report:")
	log.Info("  Total files processed: %d in %s", stats.Completed, display.FormatElapsed(elapsed))
	if stats.Deleted > 0 {
		log.Info("  Originals deleted: %d", stats.Deleted)
	}
	if len(stats.Warnings) > 0 {
		log.Warn("  Warnings: %d", len(stats.Warnings))
	}

	if cfg.Convert.DryRun {
		log.Info("  Total space saved: n/a (dry run)")
		return
	}

	saved := stats.SpaceSaved()
	if saved >= 0 {
		log.Success("  Total space saved: %s (input %s -> output %s)",
			display.FormatBytes(saved),
			display.FormatBytes(stats.TotalInputBytes),
			display.FormatBytes(stats.TotalOutputBytes))
	} else {
		log.Warn("  Total space saved: %s (overall output is larger)",
			display.FormatBytesWithSign(saved))
	}
}
