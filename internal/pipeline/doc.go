// Package pipeline is the command-line caller of the batch engine: it
// expands input paths, runs one batch over them, and turns the per-file
// results into log lines, a progress line, a summary and an optional YAML
// report. Analyze is the probe-only variant used by the analyze command.
package pipeline
