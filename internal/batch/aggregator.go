package batch

import (
	"sync"

	"github.com/backmassage/webpconv/internal/convert"
)

// Progress is the {completed, total} pair of a batch.
type Progress struct {
	Total     int
	Completed int
}

// Done reports whether every task has reported.
func (p Progress) Done() bool { return p.Completed >= p.Total }

// Event is published once per result. The final event of a stream carries
// Terminal and a zero Result.
type Event struct {
	Progress
	Result   convert.Result
	Terminal bool
}

// Aggregator counts results and publishes progress. Increment and the
// terminal check happen under one lock, and callbacks run under it too, so
// callbacks observe progress in order and the terminal callback fires once.
type Aggregator struct {
	mu         sync.Mutex
	p          Progress
	done       bool
	onProgress func(Event)
	onDone     func(Progress)
}

// NewAggregator returns an aggregator publishing to the given callbacks;
// either may be nil.
func NewAggregator(onProgress func(Event), onDone func(Progress)) *Aggregator {
	return &Aggregator{onProgress: onProgress, onDone: onDone}
}

// Reset starts a new batch of total tasks. An empty batch is complete at
// once and publishes its terminal notification immediately.
func (a *Aggregator) Reset(total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.p = Progress{Total: max(total, 0)}
	a.done = false
	if a.p.Total == 0 {
		a.finish()
	}
}

// OnResult counts one result, whatever its outcome. Results arriving after
// the batch is complete are ignored.
func (a *Aggregator) OnResult(r convert.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.p.Completed++
	if a.onProgress != nil {
		a.onProgress(Event{Progress: a.p, Result: r})
	}
	if a.p.Completed == a.p.Total {
		a.finish()
	}
}

// Progress returns a snapshot of the counters.
func (a *Aggregator) Progress() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.p
}

func (a *Aggregator) finish() {
	a.done = true
	if a.onDone != nil {
		a.onDone(a.p)
	}
}
