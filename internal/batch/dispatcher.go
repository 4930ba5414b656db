package batch

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/backmassage/webpconv/internal/convert"
)

// Converter performs one conversion. *convert.Converter implements it.
type Converter interface {
	Convert(ctx context.Context, t convert.Task) convert.Result
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, t convert.Task) convert.Result

// Convert calls f.
func (f ConverterFunc) Convert(ctx context.Context, t convert.Task) convert.Result {
	return f(ctx, t)
}

// Dispatcher runs tasks on a bounded pool of goroutines.
type Dispatcher struct {
	conv    Converter
	workers int
}

// NewDispatcher returns a dispatcher with the given pool size; workers <= 0
// means one per hardware thread.
func NewDispatcher(conv Converter, workers int) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Dispatcher{conv: conv, workers: workers}
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int { return d.workers }

// Run converts every task and calls deliver once per task with its result,
// in completion order, always from the calling goroutine. It returns after
// the last result has been delivered.
//
// Tasks are submitted from a separate goroutine, so the caller is busy only
// draining results. If ctx is canceled, tasks that have not started yet
// report a failed result carrying ctx's error; tasks already running finish.
func (d *Dispatcher) Run(ctx context.Context, tasks []convert.Task, deliver func(convert.Result)) {
	results := make(chan convert.Result, len(tasks))

	p := pool.New().WithMaxGoroutines(d.workers)
	go func() {
		for _, t := range tasks {
			p.Go(func() { results <- d.runOne(ctx, t) })
		}
		p.Wait()
		close(results)
	}()

	for r := range results {
		deliver(r)
	}
}

// runOne always yields exactly one result for t.
func (d *Dispatcher) runOne(ctx context.Context, t convert.Task) (res convert.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = convert.Result{
				SourcePath: t.SourcePath,
				OutputPath: t.OutputPath,
				Err:        fmt.Errorf("worker panic: %v", r),
			}
		}
	}()
	if err := ctx.Err(); err != nil {
		return convert.Result{SourcePath: t.SourcePath, OutputPath: t.OutputPath, Err: err}
	}
	return d.conv.Convert(ctx, t)
}
