// Package worker provides a generic, bounded worker pool.
//
// A fixed number of goroutines drain a bounded queue. Submit never blocks:
// when the queue is full it returns ErrQueueFull and the item is counted as
// dropped. Processor errors and panics are counted, reported to the optional
// error handler, and never stop the pool.
//
//	pool, err := worker.NewPool[message.Notification](2, 64,
//	    func(ctx context.Context, n message.Notification) error {
//	        return sink.Deliver(ctx, n)
//	    },
//	    worker.WithErrorHandler[message.Notification](func(n message.Notification, err error) {
//	        logger.Warn("delivery failed", "id", n.ID, "error", err)
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Statistics are always tracked with atomics; Prometheus metrics are enabled
// with WithMetricsRegistry.
package worker
