package convert

import (
	"time"
)

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
)

// Ext returns the output file extension without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "gif"
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool { return f == FormatJPEG || f == FormatGIF }

// Options control how every task of a batch is converted. A copy is attached
// to each Task.
type Options struct {
	Format         Format
	DeleteOriginal bool
	// Quality is the JPEG quality, 1..100. Zero means 100.
	Quality int
	// Dither selects Floyd-Steinberg error diffusion when animated GIF frames
	// are mapped onto the shared palette.
	Dither bool
	// SkipExisting leaves tasks whose output already exists untouched. The
	// source of a skipped task is never deleted, even with DeleteOriginal;
	// the result then carries an ErrOutputExists warning.
	SkipExisting bool
	// DryRun validates the source container but writes and deletes nothing.
	DryRun bool
}

// DefaultOptions returns GIF output with dithering and maximum JPEG quality.
func DefaultOptions() Options {
	return Options{Format: FormatGIF, Quality: 100, Dither: true}
}

// Task is one unit of work: a source file and where its output goes.
type Task struct {
	SourcePath string
	OutputPath string
	Options    Options
}

// Result is the outcome of one Task.
type Result struct {
	SourcePath string
	OutputPath string
	Success    bool
	// Err is set when Success is false.
	Err error
	// Warning is set on a successful result whose source could not be
	// deleted, or was kept because the task was skipped.
	Warning error
	Skipped bool
	Deleted bool

	Frames      int
	InputBytes  int64
	OutputBytes int64
	Elapsed     time.Duration
}

// Error returns the failure message, or "" for a successful result.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
