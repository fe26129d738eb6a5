// Package wallpaper applies images as the desktop background through
// hyprpaper's hyprctl IPC interface. IPC failures are never fatal to
// the daemon; the next scheduled wake retries.
package wallpaper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mholloway/switchback/internal/log"
)

const commandTimeout = 5 * time.Second

// Runner executes an external command and returns its combined output.
// Swapped out in tests.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Manager drives hyprpaper for one monitor (empty string targets all).
type Manager struct {
	monitor   string
	run       Runner
	preloaded map[string]bool
	current   string
}

// New returns a Manager targeting the given monitor.
func New(monitor string) *Manager {
	return &Manager{
		monitor:   monitor,
		run:       execRunner,
		preloaded: make(map[string]bool),
	}
}

// NewWithRunner is used by tests to substitute the command runner.
func NewWithRunner(monitor string, run Runner) *Manager {
	m := New(monitor)
	m.run = run
	return m
}

// Running reports whether a hyprpaper process is alive.
func (m *Manager) Running(ctx context.Context) bool {
	_, err := m.run(ctx, "pgrep", "-x", "hyprpaper")
	return err == nil
}

// WaitReady polls until hyprpaper is running or maxWait elapses.
func (m *Manager) WaitReady(ctx context.Context, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		if m.Running(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("hyprpaper not ready after %s", maxWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// Preload asks hyprpaper to load the image into memory. Older hyprpaper
// releases reject the request over IPC; that is harmless, the wallpaper
// command loads images on demand.
func (m *Manager) Preload(ctx context.Context, path string) error {
	if m.preloaded[path] {
		return nil
	}
	if err := m.hyprctl(ctx, "preload", path); err != nil {
		log.Debugf("preload not supported or failed for %s: %v", path, err)
		return err
	}
	m.preloaded[path] = true
	return nil
}

// PreloadAll preloads every path, continuing past individual failures.
func (m *Manager) PreloadAll(ctx context.Context, paths []string) {
	for _, p := range paths {
		m.Preload(ctx, p)
	}
}

// Set makes path the active wallpaper.
func (m *Manager) Set(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("wallpaper file not found: %w", err)
	}
	if !m.preloaded[path] {
		m.Preload(ctx, path) // best effort
	}
	if err := m.hyprctl(ctx, "wallpaper", m.monitor+","+path); err != nil {
		return err
	}
	m.current = path
	return nil
}

// Unload releases a previously loaded image.
func (m *Manager) Unload(ctx context.Context, path string) error {
	if !m.preloaded[path] {
		return nil
	}
	if err := m.hyprctl(ctx, "unload", path); err != nil {
		return err
	}
	delete(m.preloaded, path)
	return nil
}

// Current returns the last successfully applied wallpaper path.
func (m *Manager) Current() string { return m.current }

func (m *Manager) hyprctl(ctx context.Context, args ...string) error {
	full := append([]string{"hyprpaper"}, args...)
	out, err := m.run(ctx, "hyprctl", full...)
	if err != nil {
		msg := strings.ToLower(string(out))
		if strings.Contains(msg, "disabled") || (strings.Contains(msg, "ipc") && strings.Contains(msg, "off")) {
			return fmt.Errorf("hyprpaper IPC is disabled (set ipc = on in hyprpaper.conf): %w", err)
		}
		return fmt.Errorf("hyprctl hyprpaper %s: %w (%s)", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
