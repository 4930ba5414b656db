package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/backmassage/webpconv/internal/convert"
	"github.com/backmassage/webpconv/internal/naming"
)

var (
	// ErrNotWebP is returned by Configure for a path without a .webp extension.
	ErrNotWebP = errors.New("not a .webp file")
	// ErrFormat is returned by Configure for an unsupported output format.
	ErrFormat = errors.New("unsupported output format")
	// ErrAlreadyRun is returned when a batch is run a second time.
	ErrAlreadyRun = errors.New("batch already run")
)

// Summary is published once when a batch completes.
type Summary struct {
	BatchID string
	Total   int
}

// Batch is a validated set of tasks sharing one Options value.
type Batch struct {
	ID      string
	Options convert.Options
	// Workers is the pool size used by Run; 0 means one per hardware thread.
	Workers int

	tasks []convert.Task
	agg   atomic.Pointer[Aggregator]
	ran   atomic.Bool
}

// Configure validates paths and creates one task per distinct path, in the
// order given. Every path must end in .webp (any case). Inputs whose outputs
// would collide, such as a.webp and a.WEBP, get distinct output names.
func Configure(paths []string, opts convert.Options) (*Batch, error) {
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrFormat, opts.Format)
	}

	b := &Batch{ID: uuid.NewString(), Options: opts}
	seen := make(map[string]bool, len(paths))
	resolver := naming.NewCollisionResolver()
	for _, p := range paths {
		if p == "" || !naming.IsWebP(p) {
			return nil, fmt.Errorf("%w: %q", ErrNotWebP, p)
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out := resolver.Resolve(p, naming.OutputPath(p, opts.Format.Ext()))
		b.tasks = append(b.tasks, convert.Task{SourcePath: p, OutputPath: out, Options: opts})
	}
	return b, nil
}

// Total returns the number of tasks.
func (b *Batch) Total() int { return len(b.tasks) }

// Tasks returns a copy of the tasks.
func (b *Batch) Tasks() []convert.Task {
	return append([]convert.Task(nil), b.tasks...)
}

// Progress returns the current counters; before Run it is {Total, 0}.
func (b *Batch) Progress() Progress {
	if a := b.agg.Load(); a != nil {
		return a.Progress()
	}
	return Progress{Total: b.Total()}
}

// Run converts every task with conv and blocks until all have reported.
// onEach receives one Event per result in completion order; onDone fires
// exactly once, after the last onEach, even when tasks failed or the batch
// is empty. Callbacks are never invoked concurrently; either may be nil.
func (b *Batch) Run(ctx context.Context, conv Converter, onEach func(Event), onDone func(Summary)) error {
	if b.ran.Swap(true) {
		return ErrAlreadyRun
	}
	b.run(ctx, conv, onEach, onDone)
	return nil
}

// Stream starts the batch in the background and returns its events. The
// channel carries one event per result followed by a final event with
// Terminal set, and is then closed. It is buffered for the whole batch, so
// a slow reader never stalls the workers.
func (b *Batch) Stream(ctx context.Context, conv Converter) (<-chan Event, error) {
	if b.ran.Swap(true) {
		return nil, ErrAlreadyRun
	}
	ch := make(chan Event, b.Total()+1)
	go func() {
		defer close(ch)
		b.run(ctx, conv,
			func(e Event) { ch <- e },
			func(s Summary) {
				ch <- Event{Progress: Progress{Total: s.Total, Completed: s.Total}, Terminal: true}
			})
	}()
	return ch, nil
}

func (b *Batch) run(ctx context.Context, conv Converter, onEach func(Event), onDone func(Summary)) {
	agg := NewAggregator(onEach, func(p Progress) {
		if onDone != nil {
			onDone(Summary{BatchID: b.ID, Total: p.Total})
		}
	})
	b.agg.Store(agg)
	agg.Reset(b.Total())
	if b.Total() == 0 {
		return
	}
	NewDispatcher(conv, b.Workers).Run(ctx, b.tasks, agg.OnResult)
}
