package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayFor(t *testing.T) {
	cfg := Config{Delay: 1 * time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := DelayFor(tt.attempt, cfg); got != tt.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	cfg := Config{MaxRetries: 5, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, cfg)

	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_ExhaustsSchedule(t *testing.T) {
	cfg := Config{MaxRetries: 2, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	boom := errors.New("boom")
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return boom
	}, cfg)

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped attempt error, got %v", err)
	}
	if attempts != 3 { // initial + 2 retries
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	cfg := Config{MaxRetries: 10, Delay: time.Hour, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func(ctx context.Context) error {
		return errors.New("fail")
	}, cfg)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
