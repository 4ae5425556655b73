// Package retry provides bounded backoff for external tools that fail
// transiently, rsync against a remote target in particular.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Mode selects how the delay grows between attempts.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeLinear      Mode = "linear"
	ModeExponential Mode = "exponential"
)

// Policy holds backoff settings. Immutable after construction.
type Policy struct {
	Mode    Mode
	Initial time.Duration // base delay
	Max     time.Duration // cap for growth
	Retries int           // attempts after the first failure
}

// Default returns the policy the sync stage uses, linear growth from two
// seconds with two retries.
func Default() Policy {
	return Policy{Mode: ModeLinear, Initial: 2 * time.Second, Max: 30 * time.Second, Retries: 2}
}

// Delay returns the pause before the given retry, 1-based.
func (p Policy) Delay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}
	switch p.Mode {
	case ModeFixed:
		return p.Initial
	case ModeExponential:
		d := p.Initial * (1 << (retry - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retry) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Do runs fn until it succeeds or the retry budget is spent. Cancelling the
// context stops the loop between attempts; the running attempt is fn's own
// responsibility.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	if p.Retries <= 0 {
		return fn()
	}
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying", "operation", op, "attempt", attempt)
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == p.Retries {
			break
		}
		select {
		case <-time.After(p.Delay(attempt + 1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, p.Retries+1, lastErr)
}
