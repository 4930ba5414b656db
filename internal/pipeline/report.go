package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/webpconv/internal/config"
)

// Report is the machine-readable record of one run, written as YAML when
// --report is set.
type Report struct {
	BatchID  string        `yaml:"batch_id"`
	Started  time.Time     `yaml:"started"`
	Finished time.Time     `yaml:"finished"`
	Options  ReportOptions `yaml:"options"`
	Counts   ReportCounts  `yaml:"counts"`
	Bytes    ReportBytes   `yaml:"bytes"`
	Failures []FileIssue   `yaml:"failures,omitempty"`
	Warnings []FileIssue   `yaml:"warnings,omitempty"`
}

// ReportOptions echoes the conversion settings the run used.
type ReportOptions struct {
	Format         string `yaml:"format"`
	Quality        int    `yaml:"quality,omitempty"`
	Dither         bool   `yaml:"dither"`
	DeleteOriginal bool   `yaml:"delete_original"`
	SkipExisting   bool   `yaml:"skip_existing"`
	DryRun         bool   `yaml:"dry_run"`
	Workers        int    `yaml:"workers"`
}

type ReportCounts struct {
	Total     int `yaml:"total"`
	Converted int `yaml:"converted"`
	Skipped   int `yaml:"skipped"`
	Failed    int `yaml:"failed"`
	Canceled  int `yaml:"canceled"`
	Deleted   int `yaml:"deleted"`
}

type ReportBytes struct {
	Input  int64 `yaml:"input"`
	Output int64 `yaml:"output"`
	Saved  int64 `yaml:"saved"`
}

// NewReport builds a report from the finished run.
func NewReport(cfg *config.Config, stats *RunStats, started, finished time.Time) Report {
	r := Report{
		BatchID:  stats.BatchID,
		Started:  started.UTC().Truncate(time.Second),
		Finished: finished.UTC().Truncate(time.Second),
		Options: ReportOptions{
			Format:         string(cfg.Convert.Format),
			Dither:         cfg.Convert.Dither,
			DeleteOriginal: cfg.Convert.DeleteOriginal,
			SkipExisting:   cfg.Convert.SkipExisting,
			DryRun:         cfg.Convert.DryRun,
			Workers:        cfg.ResolvedWorkers(),
		},
		Counts: ReportCounts{
			Total:     stats.Total,
			Converted: stats.Converted,
			Skipped:   stats.Skipped,
			Failed:    stats.Failed,
			Canceled:  stats.Canceled,
			Deleted:   stats.Deleted,
		},
		Bytes: ReportBytes{
			Input:  stats.TotalInputBytes,
			Output: stats.TotalOutputBytes,
			Saved:  stats.SpaceSaved(),
		},
		Failures: stats.Failures,
		Warnings: stats.Warnings,
	}
	if cfg.Convert.Format == config.FormatJPEG {
		r.Options.Quality = cfg.Convert.Quality
	}
	return r
}

// WriteReport marshals r to path, creating the parent directory.
func WriteReport(fsys afero.Fs, path string, r Report) error {
	b, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := afero.WriteFile(fsys, path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
