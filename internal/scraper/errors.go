package scraper

import (
	"context"
	"errors"
	"net"
)

// TransientError marks a scrape failure worth retrying: rate limiting,
// timeouts, upstream hiccups. The retry coordinator retries these up to
// its configured budget.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return "transient scrape failure: " + e.Reason + ": " + e.Err.Error()
	}
	return "transient scrape failure: " + e.Reason
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a scrape failure that retrying cannot fix: blocked
// access, auth problems, a response shape the parser no longer
// understands. The task fails immediately.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return "fatal scrape failure: " + e.Reason + ": " + e.Err.Error()
	}
	return "fatal scrape failure: " + e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable scrape failure.
func NewTransient(reason string, err error) error {
	return &TransientError{Reason: reason, Err: err}
}

// NewFatal wraps err as a non-retryable scrape failure.
func NewFatal(reason string, err error) error {
	return &FatalError{Reason: reason, Err: err}
}

// IsTransient reports whether err should be retried. Network-level
// timeouts and context deadline expiry count as transient even when an
// adapter forgot to classify them.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// ClassifyHTTPStatus maps an HTTP response code to the scrape error
// taxonomy. 429 and 5xx are transient, 401/403 are fatal (blocked), and
// anything else unexpected is fatal.
func ClassifyHTTPStatus(code int, err error) error {
	switch {
	case code == 429:
		return NewTransient("rate limited", err)
	case code >= 500:
		return NewTransient("upstream error", err)
	case code == 401 || code == 403:
		return NewFatal("access blocked", err)
	default:
		return NewFatal("unexpected response status", err)
	}
}
