package schedule

import "time"

// BlendState describes the gradual transition in progress: the active
// period's wallpaper fades toward the next period's wallpaper as Ratio
// advances from 0 at the window start to 1 at the window end.
type BlendState struct {
	From  Period
	To    Period
	Ratio float64
}

// Ratio returns the blend state for now within the given window. The
// ratio is linear in elapsed time and clamped to [0,1].
func Ratio(now time.Time, w Window) BlendState {
	return BlendState{
		From:  w.Period,
		To:    w.Period.Next(),
		Ratio: clamp01(elapsedRatio(now.Sub(w.Start), w.Duration())),
	}
}

// QuantizedRatio rounds elapsed time down to a multiple of granularity
// before computing the ratio, so every call within the same granularity
// bucket yields an identical value. The result never exceeds the true
// ratio and is monotonically non-decreasing as now advances.
func QuantizedRatio(now time.Time, w Window, granularity time.Duration) float64 {
	if granularity <= 0 {
		return Ratio(now, w).Ratio
	}
	elapsed := now.Sub(w.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	quantized := elapsed.Truncate(granularity)
	return clamp01(elapsedRatio(quantized, w.Duration()))
}

func elapsedRatio(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(elapsed) / float64(total)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
