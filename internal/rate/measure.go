package rate

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Measure consumes frame arrival times for the given duration and
// returns the observed delivery-rate statistics.
//
// The window lets a freshly started stream settle before its rate is
// trusted. An unstable result is reported through Stats.IsStable rather
// than an error; errors mean the measurement itself could not complete:
// the stream closed, fewer than 2 frames arrived, or the parent context
// was cancelled.
func Measure(ctx context.Context, arrivals <-chan time.Time, duration time.Duration) (*Stats, error) {
	slog.Info("rate: starting measurement window", "duration", duration)

	startTime := time.Now()
	frameTimes := make([]time.Time, 0, 128)

	window, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

collect:
	for {
		select {
		case <-window.Done():
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("rate: measurement cancelled: %w", err)
			}
			break collect

		case t, ok := <-arrivals:
			if !ok {
				return nil, fmt.Errorf("rate: stream closed during measurement")
			}
			frameTimes = append(frameTimes, t)
		}
	}

	elapsed := time.Since(startTime)

	if len(frameTimes) < 2 {
		return nil, fmt.Errorf("rate: not enough frames received (got %d, need at least 2)", len(frameTimes))
	}

	stats := Calculate(frameTimes, elapsed)

	slog.Info("rate: measurement complete",
		"frames", stats.FramesReceived,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.IsStable,
	)

	return stats, nil
}
