// Package errorrecovery retries transient failures around a Client:
// connection establishment, bind, and submits the SMSC throttled. The
// session engine itself recovers nothing; retry policy lives out here with
// the caller, where the error taxonomy in pkg/smpp makes the
// retryable/permanent split mechanical.
package errorrecovery

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

// Config shapes the exponential backoff between attempts.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultConfig retries up to 3 times starting at 100ms, doubling with 10%
// jitter, capped at 30s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// IsRetryable reports whether err is worth another attempt. Connection
// errors always are. A command error is retryable only for the two
// statuses SMPP defines as transient: ESME_RTHROTTLED and ESME_RMSGQFUL.
// Encoding, state and registration errors are caller bugs and never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *smpp.ConnectionError
	if errors.As(err, &ce) {
		return true
	}
	var de *smpp.DecodingError
	if errors.As(err, &de) && de.IsCommandError() {
		return de.Status == smpp.StatusThrottled || de.Status == smpp.StatusMsgQFul
	}
	return false
}

// Result reports how an attempt series went.
type Result struct {
	Attempts int
	Duration time.Duration
	Error    error
}

// Retry runs fn until it succeeds, exhausts config.MaxRetries, hits a
// non-retryable error, or ctx is canceled.
func Retry(ctx context.Context, config Config, fn func() error) Result {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return Result{Attempts: attempt, Duration: time.Since(start), Error: ctx.Err()}
		default:
		}

		err := fn()
		if err == nil {
			return Result{Attempts: attempt + 1, Duration: time.Since(start)}
		}
		lastErr = err

		if attempt == config.MaxRetries || !IsRetryable(err) {
			return Result{Attempts: attempt + 1, Duration: time.Since(start), Error: lastErr}
		}

		select {
		case <-time.After(delay(config, attempt)):
		case <-ctx.Done():
			return Result{Attempts: attempt + 1, Duration: time.Since(start), Error: ctx.Err()}
		}
	}

	return Result{Attempts: config.MaxRetries + 1, Duration: time.Since(start), Error: lastErr}
}

func delay(config Config, attempt int) time.Duration {
	d := float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt))
	if d > float64(config.MaxDelay) {
		d = float64(config.MaxDelay)
	}
	if config.JitterFactor > 0 {
		d += (rand.Float64() - 0.5) * 2 * d * config.JitterFactor
	}
	return time.Duration(d)
}
