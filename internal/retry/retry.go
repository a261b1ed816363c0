// Package retry runs outbound calls with exponential backoff.
//
// Callers classify errors: transient ones (network failures, 429, 5xx) are
// retried until the policy's attempt budget runs out, everything else aborts
// immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy controls the retry schedule.
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	OnRetry         func(err error, next time.Duration)
}

// DefaultPolicy retries three times, starting at half a second.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Classify reports whether err is worth another attempt.
type Classify func(err error) bool

// Do runs op until it succeeds, fails permanently or the policy is exhausted.
func Do[T any](ctx context.Context, p Policy, retryable Classify, op func(context.Context) (T, error)) (T, error) {
	if p.MaxTries == 0 {
		p.MaxTries = 1
	}
	if retryable == nil {
		retryable = IsTransient
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxTries),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(p.OnRetry))
	}

	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)

	// A permanent failure on the last attempt comes back still wrapped.
	if perm, ok := err.(*backoff.PermanentError); ok {
		err = perm.Unwrap()
	}
	return v, err
}

// retryableError is implemented by HTTP errors that know whether their
// status code is transient.
type retryableError interface {
	Retryable() bool
}

// IsTransient treats network failures and retryable status errors as
// transient. Context cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var re retryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// NotSent reports whether err shows the request never reached the server:
// the connection could not be dialed or the host did not resolve. Requests
// that create something may only be repeated after such failures.
func NotSent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// StatusError is returned for unexpected HTTP response codes.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Retryable implements retryableError.
func (e *StatusError) Retryable() bool {
	return RetryableStatus(e.StatusCode)
}

// TruncateBody shortens a response body for inclusion in error messages.
func TruncateBody(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
