// Package watch converts .webp files as they appear in watched directories.
//
// A file is handed on once it has gone a full settle period without create
// or write events, so files still being copied in are not picked up early.
// Files present when watching starts are left alone.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/backmassage/webpconv/internal/naming"
)

// Logger is the subset of the CLI logger the watcher uses.
type Logger interface {
	Info(string, ...any)
	Warn(string, ...any)
	Debug(string, ...any)
}

// Options configure a Watcher.
type Options struct {
	// Settle is the quiet period a file needs before it is converted.
	Settle time.Duration
	// Recursive also watches subdirectories, including ones created later.
	Recursive bool
	Exclude   *naming.Excluder
	Log       Logger
}

// BatchFunc receives one group of settled paths, sorted. It runs on the
// watcher's goroutine; events that arrive meanwhile are queued.
type BatchFunc func(ctx context.Context, paths []string)

// Watcher tracks pending files and hands settled groups to a BatchFunc.
type Watcher struct {
	dirs    []string
	opts    Options
	onBatch BatchFunc

	fsw     *fsnotify.Watcher
	pending map[string]time.Time
}

// New creates a watcher for dirs. Every dir must exist and be a directory.
func New(dirs []string, opts Options, onBatch BatchFunc) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no directories to watch")
	}
	if opts.Settle <= 0 {
		return nil, errors.New("settle time must be positive")
	}
	for _, d := range dirs {
		st, err := os.Stat(d)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", d)
		}
	}
	if opts.Log == nil {
		opts.Log = nopLogger{}
	}
	return &Watcher{
		dirs:    dirs,
		opts:    opts,
		onBatch: onBatch,
		pending: make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is done. Watcher errors are logged and watching
// continues; only setup failures are returned.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	defer fsw.Close()

	for _, d := range w.dirs {
		if err := w.add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	w.opts.Log.Info("Watching %d director%s (settle %s)", len(w.dirs), plural(len(w.dirs), "y", "ies"), w.opts.Settle)
	if patterns := w.opts.Exclude.Patterns(); len(patterns) > 0 {
		w.opts.Log.Info("Excluding: %s", strings.Join(patterns, ", "))
	}

	tick := time.NewTicker(max(w.opts.Settle/4, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Log.Warn("Watcher: %v", err)

		case now := <-tick.C:
			if ready := w.settled(now); len(ready) > 0 {
				w.onBatch(ctx, ready)
			}
		}
	}
}

// add watches dir, and its subdirectories when recursive.
func (w *Watcher) add(dir string) error {
	if !w.opts.Recursive {
		return w.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		delete(w.pending, ev.Name)

	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if ev.Has(fsnotify.Create) && w.opts.Recursive {
			if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
				if err := w.add(ev.Name); err != nil {
					w.opts.Log.Warn("Watch %s: %v", ev.Name, err)
				}
				return
			}
		}
		if !w.opts.Exclude.Candidate(ev.Name) {
			return
		}
		if _, seen := w.pending[ev.Name]; !seen {
			w.opts.Log.Debug("Pending: %s", ev.Name)
		}
		w.pending[ev.Name] = time.Now()
	}
}

// settled removes and returns, sorted, every pending path that has been
// quiet for the settle period and still exists as a regular file.
func (w *Watcher) settled(now time.Time) []string {
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) < w.opts.Settle {
			continue
		}
		delete(w.pending, path)
		if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
