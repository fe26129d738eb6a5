// Package source resolves the wallpaper image for a period, either from
// configured files or by synthesizing one from colors and a logo.
package source

import (
	"fmt"

	"github.com/mholloway/switchback/internal/schedule"
	"github.com/mholloway/switchback/pkg/config"
)

// Source yields the wallpaper path for a period.
type Source interface {
	Wallpaper(p schedule.Period) (string, error)
	// SupportsPreload reports whether paths are stable enough to be
	// preloaded into hyprpaper up front.
	SupportsPreload() bool
}

// FileSource serves the statically configured wallpaper files. The
// period mapping is total over the enumeration; config validation
// guarantees every path is set.
type FileSource struct {
	night     string
	morning   string
	afternoon string
}

// NewFileSource builds a FileSource from the configured wallpapers,
// expanding ~ and environment variables.
func NewFileSource(w config.Wallpapers) *FileSource {
	return &FileSource{
		night:     config.ExpandPath(w.Night),
		morning:   config.ExpandPath(w.Morning),
		afternoon: config.ExpandPath(w.Afternoon),
	}
}

// Wallpaper returns the configured path for p.
func (s *FileSource) Wallpaper(p schedule.Period) (string, error) {
	switch p {
	case schedule.Night:
		return s.night, nil
	case schedule.Morning:
		return s.morning, nil
	case schedule.Afternoon:
		return s.afternoon, nil
	default:
		return "", fmt.Errorf("no wallpaper for %s", p)
	}
}

// SupportsPreload reports that file wallpapers can be preloaded.
func (s *FileSource) SupportsPreload() bool { return true }
