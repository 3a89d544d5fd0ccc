package rate

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation
	// as a fraction of the mean. A stream is stable when stddev < 15% of
	// the mean rate (30 FPS mean -> stable if stddev < 4.5).
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a
	// fraction of the expected inter-frame interval. 30 FPS (33ms
	// interval) -> stable if jitter < 6.6ms.
	jitterStabilityThreshold = 0.20
)

// Stats describes the delivery rate observed over a measurement window.
type Stats struct {
	FramesReceived int           // frames seen during the window
	Duration       time.Duration // actual window length
	FPSMean        float64       // overall rate
	FPSStdDev      float64       // stddev of instantaneous rate
	FPSMin         float64       // minimum instantaneous rate
	FPSMax         float64       // maximum instantaneous rate
	IsStable       bool          // stddev < 15% of mean AND jitter < 20%
	JitterMean     float64       // mean inter-frame interval variance (seconds)
	JitterStdDev   float64       // stddev of jitter (seconds)
	JitterMax      float64       // worst jitter observed (seconds)
}

// Calculate derives rate statistics from frame arrival times.
//
// It computes the overall mean rate, per-interval instantaneous rates
// with min/max and standard deviation, and jitter as the absolute
// deviation of each interval from the expected one. Stability requires
// both the rate stddev and the mean jitter to be under their thresholds.
func Calculate(frameTimes []time.Time, totalDuration time.Duration) *Stats {
	n := len(frameTimes)

	if n == 0 {
		return &Stats{Duration: totalDuration}
	}

	fpsMean := float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}

	if len(instantaneous) == 0 {
		return &Stats{
			FramesReceived: n,
			Duration:       totalDuration,
			FPSMean:        fpsMean,
		}
	}

	fpsMin := instantaneous[0]
	fpsMax := instantaneous[0]
	for _, fps := range instantaneous {
		if fps < fpsMin {
			fpsMin = fps
		}
		if fps > fpsMax {
			fpsMax = fps
		}
	}

	var sumSquares float64
	for _, fps := range instantaneous {
		diff := fps - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(len(instantaneous)))

	// Jitter = deviation of each inter-frame interval from the expected one.
	expectedInterval := 1.0 / fpsMean

	jitters := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		actual := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		jitters = append(jitters, math.Abs(actual-expectedInterval))
	}

	var jitterSum float64
	jitterMax := 0.0
	for _, j := range jitters {
		jitterSum += j
		if j > jitterMax {
			jitterMax = j
		}
	}
	jitterMean := jitterSum / float64(len(jitters))

	var jitterSumSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSumSquares += diff * diff
	}
	jitterStdDev := math.Sqrt(jitterSumSquares / float64(len(jitters)))

	fpsStable := fpsStdDev < (fpsMean * fpsStabilityThreshold)
	jitterStable := jitterMean < (expectedInterval * jitterStabilityThreshold)

	return &Stats{
		FramesReceived: n,
		Duration:       totalDuration,
		FPSMean:        fpsMean,
		FPSStdDev:      fpsStdDev,
		FPSMin:         fpsMin,
		FPSMax:         fpsMax,
		IsStable:       fpsStable && jitterStable,
		JitterMean:     jitterMean,
		JitterStdDev:   jitterStdDev,
		JitterMax:      jitterMax,
	}
}
