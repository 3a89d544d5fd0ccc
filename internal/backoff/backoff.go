// Package backoff provides exponential-backoff retry used by callers
// that restart a viewing session after a fault.
package backoff

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config controls the retry schedule.
type Config struct {
	MaxRetries int           // attempts before giving up
	Delay      time.Duration // initial delay
	MaxDelay   time.Duration // cap for the exponential delay
}

// DefaultConfig returns the standard schedule: 1s, 2s, 4s, 8s, 16s,
// then give up.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		Delay:      1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// AttemptFunc runs one attempt. A nil return ends the retry loop.
type AttemptFunc func(ctx context.Context) error

// Retry runs fn until it succeeds, the schedule is exhausted, or the
// context is cancelled. A success resets nothing external: the caller
// starts a fresh Retry for the next failure episode.
func Retry(ctx context.Context, fn AttemptFunc, cfg Config) error {
	retries := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("backoff: context cancelled, stopping retries")
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		slog.Error("backoff: attempt failed", "error", err)

		retries++
		if retries > cfg.MaxRetries {
			return fmt.Errorf("backoff: max retries exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := DelayFor(retries, cfg)

		slog.Warn("backoff: retrying",
			"attempt", retries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			slog.Info("backoff: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// DelayFor returns the delay before the given attempt:
// Delay * 2^(attempt-1), capped at MaxDelay.
func DelayFor(attempt int, cfg Config) time.Duration {
	delay := cfg.Delay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
