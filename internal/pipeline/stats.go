package pipeline

import (
	"github.com/backmassage/webpconv/internal/convert"
)

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	BatchID          string
	Total            int
	Completed        int
	Converted        int
	Skipped          int
	Failed           int
	Canceled         int
	Deleted          int
	TotalInputBytes  int64
	TotalOutputBytes int64

	Failures []FileIssue
	Warnings []FileIssue

	// Err is set when the run could not start (discovery or configuration).
	Err error
}

// FileIssue records one failed or warned file.
type FileIssue struct {
	Path    string `yaml:"path"`
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs
// of converted files. Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

// OK reports whether the run started and no file failed.
func (s *RunStats) OK() bool {
	return s.Err == nil && s.Failed == 0 && s.Canceled == 0
}

func (s *RunStats) record(r convert.Result) {
	s.Completed++
	switch {
	case convert.IsCanceled(r):
		s.Canceled++
	case !r.Success:
		s.Failed++
		s.Failures = append(s.Failures, newIssue(r.SourcePath, r.Err))
	case r.Skipped:
		s.Skipped++
	default:
		s.Converted++
		s.TotalInputBytes += r.InputBytes
		s.TotalOutputBytes += r.OutputBytes
	}
	if r.Deleted {
		s.Deleted++
	}
	if r.Warning != nil {
		s.Warnings = append(s.Warnings, newIssue(r.SourcePath, r.Warning))
	}
}

func newIssue(path string, err error) FileIssue {
	kind := "error"
	if k := convert.KindOf(err); k != 0 {
		kind = k.String()
	}
	return FileIssue{Path: path, Kind: kind, Message: err.Error()}
}
