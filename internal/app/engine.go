package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mholloway/switchback/internal/blend"
	"github.com/mholloway/switchback/internal/log"
	"github.com/mholloway/switchback/internal/schedule"
	"github.com/mholloway/switchback/internal/source"
)

// Setter applies a wallpaper. Satisfied by wallpaper.Manager.
type Setter interface {
	Set(ctx context.Context, path string) error
	Unload(ctx context.Context, path string) error
}

// windowSource yields the schedule window containing an instant.
type windowSource interface {
	CurrentWindow(now time.Time) (schedule.Window, error)
}

// State is a snapshot of one scheduling decision.
type State struct {
	Now         time.Time `json:"now"`
	Period      string    `json:"period"`
	NextPeriod  string    `json:"next_period"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Ratio       float64   `json:"ratio"`
	Image       string    `json:"image"`
	NextWake    time.Time `json:"next_wake"`
}

// Engine turns instants into wallpaper changes. Every step recomputes
// the full state from the clock, so a missed or late wake can never
// leave the wallpaper permanently wrong.
type Engine struct {
	windows windowSource
	src     source.Source
	setter  Setter
	wake    schedule.WakeConfig
	metrics *metrics

	// cache is nil when blend caching is off or has been disabled
	// after an IO failure.
	cache *blend.Cache

	mu      sync.Mutex
	last    State
	applied string
	scratch string
}

// NewEngine assembles an engine. cache may be nil.
func NewEngine(windows windowSource, src source.Source, setter Setter, cache *blend.Cache, wake schedule.WakeConfig, m *metrics) *Engine {
	return &Engine{
		windows: windows,
		src:     src,
		setter:  setter,
		cache:   cache,
		wake:    wake,
		metrics: m,
	}
}

// Compute derives the state for now without touching the wallpaper.
func (e *Engine) Compute(now time.Time) (State, error) {
	w, err := e.windows.CurrentWindow(now)
	if err != nil {
		return State{}, fmt.Errorf("computing schedule window: %w", err)
	}

	var ratio float64
	if e.wake.GradualEnabled {
		ratio = schedule.QuantizedRatio(now, w, e.wake.Granularity)
	}

	img, err := e.resolveImage(w, ratio)
	if err != nil {
		return State{}, err
	}

	return State{
		Now:         now,
		Period:      w.Period.String(),
		NextPeriod:  w.Period.Next().String(),
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Ratio:       ratio,
		Image:       img,
		NextWake:    schedule.NextWake(now, w, e.wake),
	}, nil
}

// Step computes the state for now, applies the wallpaper if it changed
// and returns when to wake next. Wallpaper IPC failures are logged and
// retried on the following wake rather than propagated.
func (e *Engine) Step(ctx context.Context, now time.Time) (time.Time, error) {
	if e.metrics != nil {
		e.metrics.wakes.Inc()
	}

	st, err := e.Compute(now)
	if err != nil {
		return time.Time{}, err
	}
	e.storeState(st)

	e.mu.Lock()
	applied := e.applied
	e.mu.Unlock()

	if st.Image != applied {
		if err := e.setter.Set(ctx, st.Image); err != nil {
			if e.metrics != nil {
				e.metrics.setFailures.Inc()
			}
			log.Warnf("setting wallpaper %s: %v", st.Image, err)
		} else {
			if e.metrics != nil {
				e.metrics.sets.Inc()
			}
			log.Infof("wallpaper set: period=%s ratio=%.4f image=%s", st.Period, st.Ratio, st.Image)
			e.finishApply(ctx, st.Image)
		}
	}
	return st.NextWake, nil
}

// resolveImage maps a window and blend ratio to an image path.
func (e *Engine) resolveImage(w schedule.Window, ratio float64) (string, error) {
	from, err := e.src.Wallpaper(w.Period)
	if err != nil {
		return "", err
	}
	if ratio <= 0 {
		return from, nil
	}
	to, err := e.src.Wallpaper(w.Period.Next())
	if err != nil {
		return "", err
	}
	if ratio >= 1 {
		return to, nil
	}
	return e.blendImage(from, to, ratio), nil
}

// blendImage produces the intermediate image, falling back to the
// period's unblended wallpaper when generation fails.
func (e *Engine) blendImage(from, to string, ratio float64) string {
	if e.cache != nil {
		path, hit, err := e.cache.GetOrCreate(from, to, ratio, image.Point{})
		switch {
		case err == nil:
			if e.metrics != nil {
				if hit {
					e.metrics.cacheHits.Inc()
				} else {
					e.metrics.cacheMisses.Inc()
				}
			}
			return path
		case errors.Is(err, blend.ErrOversizeEntry):
			log.Warnf("blend larger than the whole cache budget, keeping it anyway: %v", err)
			return path
		case errors.Is(err, blend.ErrGeneration):
			if e.metrics != nil {
				e.metrics.blendFailures.Inc()
			}
			log.Warnf("blend generation failed, using %s: %v", from, err)
			return from
		default:
			// Cache storage is misbehaving. Keep blending for the rest
			// of the run, just without the cache.
			log.Warnf("blend cache disabled after storage error: %v", err)
			e.cache = nil
		}
	}

	img, err := blend.Files(from, to, ratio, image.Point{})
	if err != nil {
		if e.metrics != nil {
			e.metrics.blendFailures.Inc()
		}
		log.Warnf("blend generation failed, using %s: %v", from, err)
		return from
	}
	path := filepath.Join(os.TempDir(), "switchback-"+uuid.NewString()+".jpg")
	if err := blend.WriteFile(path, img); err != nil {
		log.Warnf("writing blend: %v", err)
		return from
	}
	e.mu.Lock()
	if e.scratch != "" && e.scratch != path {
		os.Remove(e.scratch)
	}
	e.scratch = path
	e.mu.Unlock()
	return path
}

// finishApply records the applied image and releases the previously
// applied one from the compositor when it was an intermediate blend,
// keeping hyprpaper's image memory bounded across a transition.
func (e *Engine) finishApply(ctx context.Context, path string) {
	e.mu.Lock()
	prev := e.applied
	e.applied = path
	e.mu.Unlock()

	if prev == "" || prev == path {
		return
	}
	scratch := filepath.Dir(prev) == os.TempDir()
	cached := filepath.Base(filepath.Dir(prev)) == "blends"
	if scratch || cached {
		if err := e.setter.Unload(ctx, prev); err != nil {
			log.Debugf("unloading %s: %v", prev, err)
		}
	}
	if scratch {
		os.Remove(prev)
	}
}

func (e *Engine) storeState(st State) {
	e.mu.Lock()
	e.last = st
	e.mu.Unlock()
}

// LastState returns the most recently computed state.
func (e *Engine) LastState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}
