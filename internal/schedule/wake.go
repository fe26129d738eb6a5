package schedule

import "time"

// WakeConfig controls how the next wake instant is computed.
type WakeConfig struct {
	// GradualEnabled turns on blend refresh ticks.
	GradualEnabled bool
	// Granularity is the blend refresh interval when gradual
	// transitions are enabled.
	Granularity time.Duration
	// Fallback bounds the maximum sleep regardless of mode, so clock
	// anomalies and suspend/resume self-correct within one interval.
	Fallback time.Duration
}

// NextWake returns the single instant the daemon loop must resume:
// the window end, the next granularity tick when gradual transitions
// are enabled, or the fallback ceiling, whichever comes first.
func NextWake(now time.Time, w Window, cfg WakeConfig) time.Time {
	wake := w.End
	if cfg.GradualEnabled && cfg.Granularity > 0 {
		if tick := now.Add(cfg.Granularity); tick.Before(wake) {
			wake = tick
		}
	}
	if cfg.Fallback > 0 {
		if ceil := now.Add(cfg.Fallback); ceil.Before(wake) {
			wake = ceil
		}
	}
	return wake
}
