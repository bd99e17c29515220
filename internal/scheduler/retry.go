package scheduler

import (
	"context"
	"time"

	"github.com/DanielPopoola/job-scraper/internal/logger"
	"github.com/DanielPopoola/job-scraper/internal/scraper"
)

// RetryCoordinator wraps one task's scrape with bounded
// retry-on-transient-failure: up to maxRetries additional attempts, each
// preceded by retryDelay. Fatal failures and context cancellation stop
// immediately.
type RetryCoordinator struct {
	maxRetries int
	retryDelay time.Duration
}

// NewRetryCoordinator creates a coordinator with the given budget.
func NewRetryCoordinator(maxRetries int, retryDelay time.Duration) *RetryCoordinator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryCoordinator{maxRetries: maxRetries, retryDelay: retryDelay}
}

// scrapeFunc runs one adapter invocation. Items returned alongside an
// error are the partial yield before the failure.
type scrapeFunc func(ctx context.Context) ([]scraper.JobItem, error)

// Execute invokes fn until it succeeds, the retry budget is exhausted, a
// fatal error occurs, or ctx is canceled. It returns the items from the
// last attempt (partial yields survive a late failure), the number of
// attempts made, and the final error if the task failed.
func (rc *RetryCoordinator) Execute(ctx context.Context, fn scrapeFunc) ([]scraper.JobItem, int, error) {
	maxAttempts := rc.maxRetries + 1

	var items []scraper.JobItem
	var err error
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		items, err = fn(ctx)
		if err == nil {
			return items, attempts, nil
		}
		if !scraper.IsTransient(err) {
			return items, attempts, err
		}
		if attempt == maxAttempts {
			break
		}

		logger.CtxWarn(ctx, "Transient scrape failure, retrying: attempt=%d/%d, error=%v",
			attempt, maxAttempts, err)

		select {
		case <-time.After(rc.retryDelay):
		case <-ctx.Done():
			return items, attempts, ctx.Err()
		}
	}

	return items, attempts, err
}
