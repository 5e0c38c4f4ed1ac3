// Package worker provides a generic bounded worker pool for background
// processing.
//
// # Overview
//
// A Pool runs a fixed number of goroutines that consume work items of any
// type T from a bounded queue. Counters for submitted, processed, failed,
// and dropped items are always tracked with atomics; Prometheus collectors
// are opt-in through WithMetrics.
//
// # Lifecycle
//
// Build a pool with NewPool, start it with Start, and shut it down with
// Stop. The context given to Start is passed to every processor call:
// cancelling it aborts the workers immediately, abandoning whatever is
// still queued. Stop is the drain path: it closes the queue, lets workers
// finish the backlog, and waits up to the given timeout.
//
// # Backpressure
//
// Submit never blocks. When the queue is full the item is dropped, the
// dropped counter incremented, and ErrQueueFull returned. Callers decide
// whether that is a retry, a log line, or a rejected request.
//
// # Example
//
//	type persistJob struct {
//		runID string
//	}
//
//	pool, err := worker.NewPool[persistJob](4, 256,
//		func(ctx context.Context, job persistJob) error {
//			return store.Save(ctx, job.runID)
//		},
//		worker.WithMetrics[persistJob](registry, "run_persist"),
//	)
//	if err != nil {
//		return err
//	}
//	if err := pool.Start(ctx); err != nil {
//		return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(persistJob{runID: id}); err != nil {
//		logger.Warn("run history write dropped", "run", id, "error", err)
//	}
//
// # Observability
//
// Stats returns a PoolStats snapshot at any time. Processed counts every
// attempt and Failed the subset whose processor returned an error, so
// Processed - Failed is the success count. With WithMetrics the pool also
// exports queue depth, utilization, throughput counters, and a processing
// duration histogram labeled by status.
package worker
