// Package resilience retries transient backend failures with exponential
// backoff. Remote filesystems use it around open and list calls:
//
//	body, err := resilience.Retry(ctx, opts.Retry, func() (io.ReadCloser, error) {
//	    return fetch(ctx, url)
//	})
//
// Errors that carry an AppError code are retried only when the code is
// retryable; context cancellation is never retried.
package resilience
