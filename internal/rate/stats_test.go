package rate

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

// generateFrameTimes generates frame timestamps with controlled jitter.
// jitterFraction is the random offset as a fraction of the inter-frame
// interval (0.0 = perfect cadence, 0.2 = 20% jitter).
func generateFrameTimes(numFrames int, targetFPS float64, jitterFraction float64) []time.Time {
	if numFrames < 1 {
		return []time.Time{}
	}

	expectedInterval := 1.0 / targetFPS
	frameTimes := make([]time.Time, numFrames)
	frameTimes[0] = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rng := rand.New(rand.NewSource(42))
	for i := 1; i < numFrames; i++ {
		jitterSeconds := (rng.Float64()*2 - 1) * jitterFraction * expectedInterval
		actualInterval := expectedInterval + jitterSeconds
		frameTimes[i] = frameTimes[i-1].Add(time.Duration(actualInterval*1000) * time.Millisecond)
	}

	return frameTimes
}

func TestCalculate_StabilityThresholds(t *testing.T) {
	t.Run("stable stream", func(t *testing.T) {
		frameTimes := generateFrameTimes(30, 1.0, 0.05)
		stats := Calculate(frameTimes, 30*time.Second)

		if !stats.IsStable {
			t.Errorf("expected stable stream, got IsStable=false (FPS stddev: %.2f%%, jitter: %.2f%%)",
				(stats.FPSStdDev/stats.FPSMean)*100,
				(stats.JitterMean/(1.0/stats.FPSMean))*100,
			)
		}
	})

	t.Run("unstable stream", func(t *testing.T) {
		frameTimes := generateFrameTimes(30, 1.0, 0.25)
		stats := Calculate(frameTimes, 30*time.Second)

		if stats.IsStable {
			t.Errorf("expected unstable stream (high jitter), got IsStable=true (jitter: %.2f%%)",
				(stats.JitterMean/(1.0/stats.FPSMean))*100,
			)
		}
	})
}

func TestCalculate_EdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		frameTimes []time.Time
		duration   time.Duration
		wantStable bool
	}{
		{
			name:       "zero frames",
			frameTimes: []time.Time{},
			duration:   1 * time.Second,
			wantStable: false,
		},
		{
			name:       "one frame",
			frameTimes: []time.Time{time.Now()},
			duration:   1 * time.Second,
			wantStable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Calculate(tt.frameTimes, tt.duration)

			if stats == nil {
				t.Fatal("Calculate returned nil")
			}
			if stats.FPSStdDev < 0 {
				t.Errorf("FPSStdDev should be >= 0, got %.2f", stats.FPSStdDev)
			}
			if stats.JitterMean < 0 {
				t.Errorf("JitterMean should be >= 0, got %.2f", stats.JitterMean)
			}
			if stats.IsStable != tt.wantStable {
				t.Errorf("expected IsStable=%v, got %v", tt.wantStable, stats.IsStable)
			}
		})
	}
}

// Property: FPSMin <= FPSMean <= FPSMax, all jitter metrics non-negative,
// and JitterMax >= JitterMean.
func TestCalculate_Bounds(t *testing.T) {
	f := func(fps float64, numFrames uint8) bool {
		if fps < 0.1 || fps > 30.0 {
			return true
		}
		if numFrames < 2 || numFrames > 100 {
			return true
		}

		frameTimes := generateFrameTimes(int(numFrames), fps, 0.1)
		duration := time.Duration(float64(numFrames)/fps*1000) * time.Millisecond

		stats := Calculate(frameTimes, duration)

		tolerance := 0.001
		if stats.FPSMin > stats.FPSMean+tolerance {
			t.Logf("FAIL: FPSMin (%.2f) > FPSMean (%.2f)", stats.FPSMin, stats.FPSMean)
			return false
		}
		if stats.FPSMax < stats.FPSMean-tolerance {
			t.Logf("FAIL: FPSMax (%.2f) < FPSMean (%.2f)", stats.FPSMax, stats.FPSMean)
			return false
		}
		if stats.JitterMean < 0 || stats.JitterStdDev < 0 || stats.JitterMax < 0 {
			t.Logf("FAIL: negative jitter metric with fps=%.2f, frames=%d", fps, numFrames)
			return false
		}
		if stats.JitterMax < stats.JitterMean {
			t.Logf("FAIL: JitterMax (%.6f) < JitterMean (%.6f)", stats.JitterMax, stats.JitterMean)
			return false
		}

		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 100}); err != nil {
		t.Errorf("property violated: %v", err)
	}
}

// Property: the measured mean rate tracks the generation rate.
func TestCalculate_DurationConsistency(t *testing.T) {
	f := func(fps float64, numFrames uint8) bool {
		if fps < 0.1 || fps > 30.0 {
			return true
		}
		if numFrames < 10 || numFrames > 100 {
			return true
		}

		frameTimes := generateFrameTimes(int(numFrames), fps, 0.05)
		duration := time.Duration(float64(numFrames)/fps*1000) * time.Millisecond

		stats := Calculate(frameTimes, duration)

		tolerance := fps * 0.10
		if math.Abs(stats.FPSMean-fps) > tolerance {
			t.Logf("FAIL: FPSMean (%.2f) deviates from expected (%.2f) by more than 10%%", stats.FPSMean, fps)
			return false
		}

		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Errorf("property violated: %v", err)
	}
}

func TestMeasure_StreamClosed(t *testing.T) {
	arrivals := make(chan time.Time)
	close(arrivals)

	_, err := Measure(context.Background(), arrivals, time.Second)
	if err == nil {
		t.Fatal("expected error when stream closes during measurement")
	}
}

func TestMeasure_NotEnoughFrames(t *testing.T) {
	arrivals := make(chan time.Time, 1)
	arrivals <- time.Now()

	_, err := Measure(context.Background(), arrivals, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected error with fewer than 2 frames")
	}
}

func BenchmarkCalculate(b *testing.B) {
	frameTimes := generateFrameTimes(100, 1.0, 0.1)
	duration := 100 * time.Second

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Calculate(frameTimes, duration)
	}
}
