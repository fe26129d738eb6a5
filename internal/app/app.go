// Package app wires the schedule, blend and wallpaper components into
// the running daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mholloway/switchback/internal/blend"
	"github.com/mholloway/switchback/internal/log"
	"github.com/mholloway/switchback/internal/schedule"
	"github.com/mholloway/switchback/internal/source"
	"github.com/mholloway/switchback/internal/wallpaper"
	"github.com/mholloway/switchback/pkg/astro"
	"github.com/mholloway/switchback/pkg/config"
)

var errReload = errors.New("configuration reload requested")

// App represents the main application
type App struct {
	configProvider config.Provider
	configPath     string
	logger         *zap.SugaredLogger
}

// New creates a new application instance. configPath may be empty when
// the backing store is not a watchable file.
func New(configProvider config.Provider, configPath string, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		configPath:     configPath,
		logger:         logger,
	}
}

// runtime is everything built from one configuration snapshot. A reload
// tears the runtime down and builds a fresh one.
type runtime struct {
	cfg    *config.Data
	loc    *time.Location
	engine *Engine
	mgr    *wallpaper.Manager
	status *statusServer
}

// Run starts the daemon and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	reload := make(chan struct{}, 1)
	requestReload := func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			log.Info("SIGHUP received, reloading configuration")
			requestReload()
		}
	}()

	if a.configPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Warnf("config file watching unavailable: %v", err)
		} else {
			defer watcher.Close()
			// Watch the directory: editors replace the file, which
			// would orphan a watch on the path itself.
			if err := watcher.Add(filepath.Dir(a.configPath)); err != nil {
				log.Warnf("watching config directory: %v", err)
			}
			go a.watchConfig(ctx, watcher, requestReload)
		}
	}

	go func() {
		select {
		case <-sigs:
			log.Info("shutdown signal received, initiating graceful shutdown...")
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		rt, err := a.buildRuntime(ctx)
		if err != nil {
			return err
		}
		err = rt.loop(ctx, reload)
		rt.close()
		if errors.Is(err, errReload) {
			log.Info("configuration reloaded")
			continue
		}
		log.Info("shutdown complete")
		return err
	}
}

func (a *App) watchConfig(ctx context.Context, watcher *fsnotify.Watcher, requestReload func()) {
	target := filepath.Clean(a.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Infof("config file changed (%s), reloading", ev.Op)
				requestReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher: %v", err)
		}
	}
}

// buildRuntime loads the configuration and assembles the engine.
func (a *App) buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	loc, err := cfg.Location.Load()
	if err != nil {
		return nil, err
	}

	calc, err := astro.NewCalculator(cfg.Location.Latitude, cfg.Location.Longitude, loc)
	if err != nil {
		return nil, err
	}
	days := schedule.NewProvider(calc, loc)

	src, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	mgr := wallpaper.New(cfg.Settings.Monitor)
	if !mgr.Running(ctx) {
		log.Warn("hyprpaper does not appear to be running; wallpaper changes will be retried")
	} else if err := mgr.WaitReady(ctx, 10*time.Second); err != nil {
		log.Warnf("hyprpaper not ready: %v", err)
	}

	var cache *blend.Cache
	tr := cfg.Settings.Transitions
	if tr.Enabled && *tr.CacheBlends {
		cache, err = blend.Open(config.ExpandPath(tr.CacheDir), tr.MaxCacheSizeMB*1024*1024)
		if err != nil {
			log.Warnf("blend cache unavailable, blending without it: %v", err)
			cache = nil
		}
	}

	wake := schedule.WakeConfig{
		GradualEnabled: tr.Enabled,
		Granularity:    time.Duration(tr.Granularity) * time.Second,
		Fallback:       time.Duration(cfg.Settings.CheckIntervalFallback) * time.Second,
	}

	var reg *prometheus.Registry
	var m *metrics
	if cfg.Settings.StatusListen != "" {
		reg = prometheus.NewRegistry()
		m = newMetrics(reg)
	}

	engine := NewEngine(days, src, mgr, cache, wake, m)

	rt := &runtime{cfg: cfg, loc: loc, engine: engine, mgr: mgr}
	if reg != nil {
		rt.status = newStatusServer(cfg.Settings.StatusListen, engine, reg)
		rt.status.start()
	}

	if *cfg.Settings.PreloadAll && src.SupportsPreload() {
		rt.preload(ctx, src)
	}
	return rt, nil
}

func buildSource(cfg *config.Data) (source.Source, error) {
	switch cfg.Mode {
	case config.ModeGenerated:
		return source.NewGeneratedSource(*cfg.Generated,
			config.ExpandPath(cfg.Settings.Transitions.CacheDir), image.Point{})
	default:
		return source.NewFileSource(cfg.Wallpapers), nil
	}
}

// preload pushes every period's wallpaper into the compositor so the
// first change of each period is instant.
func (rt *runtime) preload(ctx context.Context, src source.Source) {
	var paths []string
	for _, p := range schedule.Periods() {
		path, err := src.Wallpaper(p)
		if err != nil {
			log.Warnf("resolving %s wallpaper for preload: %v", p, err)
			continue
		}
		paths = append(paths, path)
	}
	rt.mgr.PreloadAll(ctx, paths)
}

// loop drives the engine: step, sleep until the next wake, repeat.
// Returns errReload when a configuration reload was requested.
func (rt *runtime) loop(ctx context.Context, reload <-chan struct{}) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reload:
			return errReload
		case <-timer.C:
		}

		now := time.Now().In(rt.loc)
		next, err := rt.engine.Step(ctx, now)

		var sleep time.Duration
		if err != nil {
			sleep = time.Duration(rt.cfg.Settings.CheckIntervalFallback) * time.Second
			log.Errorf("scheduling step failed, retrying in %s: %v", sleep, err)
		} else {
			sleep = time.Until(next)
			if sleep < time.Second {
				sleep = time.Second
			}
			log.Debugf("sleeping %s until %s", sleep.Round(time.Second), next.Format(time.RFC3339))
		}
		timer.Reset(sleep)
	}
}

func (rt *runtime) close() {
	if rt.status != nil {
		rt.status.stop()
	}
}

// Once applies the wallpaper for the current instant (or for an
// explicitly named period) and exits.
func (a *App) Once(ctx context.Context, periodOverride string) error {
	rt, err := a.buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if periodOverride != "" {
		p, err := schedule.ParsePeriod(periodOverride)
		if err != nil {
			return err
		}
		path, err := rt.engine.src.Wallpaper(p)
		if err != nil {
			return err
		}
		if err := rt.mgr.Set(ctx, path); err != nil {
			return err
		}
		log.Infof("wallpaper set: period=%s image=%s", p, path)
		return nil
	}

	if _, err := rt.engine.Step(ctx, time.Now().In(rt.loc)); err != nil {
		return err
	}
	return nil
}

// PrintSchedule writes today's sun times and transition sequence to w.
func (a *App) PrintSchedule(w io.Writer) error {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location.Load()
	if err != nil {
		return err
	}
	calc, err := astro.NewCalculator(cfg.Location.Latitude, cfg.Location.Longitude, loc)
	if err != nil {
		return err
	}
	days := schedule.NewProvider(calc, loc)
	now := time.Now().In(loc)

	day, err := days.Day(now)
	if err != nil {
		return err
	}
	switch day.Polar {
	case schedule.PolarDay:
		fmt.Fprintf(w, "%s: polar day, the sun does not set\n", now.Format("2006-01-02"))
		return nil
	case schedule.PolarNight:
		fmt.Fprintf(w, "%s: polar night, the sun does not rise\n", now.Format("2006-01-02"))
		return nil
	}

	fmt.Fprintf(w, "Sun times for %s:\n", now.Format("2006-01-02"))
	fmt.Fprintf(w, "  sunrise  %s\n", day.Sunrise.Format("15:04:05"))
	fmt.Fprintf(w, "  noon     %s\n", day.Noon.Format("15:04:05"))
	fmt.Fprintf(w, "  sunset   %s\n", day.Sunset.Format("15:04:05"))

	seq, err := days.TransitionSequence(now)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Upcoming transitions:")
	for _, tr := range seq {
		fmt.Fprintf(w, "  %s  %s -> %s\n", tr.At.Format("2006-01-02 15:04:05"), tr.From, tr.To)
	}
	return nil
}
