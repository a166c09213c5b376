package drupal

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
	maxJitter  = 500 * time.Millisecond
)

// SQLSTATE codes that retrying cannot fix.
var fatalCodes = map[string]bool{
	"28P01": true, // invalid_password
	"28000": true, // invalid_authorization_specification
	"3D000": true, // invalid_catalog_name
}

// connectWithRetry calls newInspectorOnce with exponential backoff.
// Retries on transient errors (connection refused, timeout).
// Fails fast on auth and configuration errors.
func connectWithRetry(ctx context.Context, cfg Config) (*Inspector, error) {
	var lastErr error

	for attempt := range maxRetries {
		inspector, err := newInspectorOnce(ctx, cfg)
		if err == nil {
			if attempt > 0 {
				slog.Info("connected after retry", "attempt", attempt+1)
			}
			return inspector, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}
		delay := backoffDelay(attempt)

		slog.Warn("connection failed, retrying",
			"attempt", attempt+1,
			"error", err,
			"retry_in", delay)

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "connect")
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// isRetryable classifies errors as retryable or fail-fast.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return !fatalCodes[pgErr.Code]
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) {
		return false
	}

	msg := err.Error()
	for _, s := range []string{
		"password authentication failed",
		"no pg_hba.conf entry",
		"no such host",
		"cannot parse",
	} {
		if strings.Contains(msg, s) {
			return false
		}
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "i/o timeout") ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	// Unknown errors may be transient.
	return true
}

// backoffDelay returns exponential backoff with jitter.
func backoffDelay(attempt int) time.Duration {
	delay := baseDelay << uint(attempt) // 1s, 2s, 4s
	jitter := time.Duration(rand.Int64N(int64(maxJitter)))
	return delay + jitter
}
