// Package retry provides bounded retries with backoff for device actions.
//
// A failed tap usually means the app UI has not settled, so retries wait a
// short, jittered exponential backoff before trying again. Lifecycle and
// store errors are never retried here; only transient action and device
// errors are.
//
// Basic usage:
//
//	err := retry.Do(func() error {
//	    return exec.TapFollow(ctx)
//	}, nil)
//
//	// Reusable retrier bound to configuration
//	retrier := retry.NewRetrier(&retry.Config{
//	    MaxAttempts: 3,
//	    Backoff:     retry.DefaultExponentialBackoff(),
//	    RetryIf:     retry.DefaultRetryIf,
//	})
//	err := retrier.WithContext(ctx).Do(op)
package retry
