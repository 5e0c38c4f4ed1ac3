// Package retry provides exponential backoff with jitter for transient
// failures.
//
// # Overview
//
// Do runs an operation until it succeeds, sleeping between attempts on a
// schedule that a Config controls. DoWithResult is the same for operations
// that return a value. There is no error classification here: the caller
// marks errors that must not be retried with NonRetryable, and everything
// else is treated as transient.
//
// # Presets
//
//   - DefaultConfig: 3 attempts, 100ms growing to a 5s cap
//   - Quick: 10 attempts, 50ms growing to a 1s cap, for startup paths that
//     wait on a dependency coming up
//
// # Examples
//
// Connecting at startup:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//		return client.Connect()
//	})
//
// Opening a bucket, keeping the handle:
//
//	bucket, err := retry.DoWithResult(ctx, retry.DefaultConfig(),
//		func() (jetstream.KeyValue, error) {
//			return js.KeyValue(ctx, bucketName)
//		})
//
// Refusing to retry a validation failure:
//
//	err := retry.Do(ctx, cfg, func() error {
//		data, err := build()
//		if err != nil {
//			return retry.NonRetryable(err)
//		}
//		return publish(data)
//	})
//
// # Cancellation
//
// Do watches the context both between attempts and during the backoff
// sleep, and returns a wrapped context error as soon as it is cancelled.
//
// # Thread Safety
//
// All functions are safe for concurrent use.
package retry
