// Package batch runs many conversions in parallel and reports progress.
//
// A [Batch] is built by [Configure] from caller-supplied paths. [Batch.Run]
// hands its tasks to a [Dispatcher], which fans them out over a bounded
// worker pool and fans the results back in over a channel drained by one
// goroutine. That goroutine feeds an [Aggregator], the only owner of the
// {completed, total} counters, which publishes one [Event] per result and a
// single terminal notification once every task has reported, successful or
// not.
package batch
