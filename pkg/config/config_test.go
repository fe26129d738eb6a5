package config

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func touchWallpapers(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	for _, name := range []string{"night.jpg", "morning.jpg", "afternoon.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644))
	}
	return dir
}

func validYAML(dir string) string {
	return fmt.Sprintf(`
location:
  latitude: 37.7749
  longitude: -122.4194
  timezone: "America/Los_Angeles"
wallpapers:
  night: %[1]s/night.jpg
  morning: %[1]s/morning.jpg
  afternoon: %[1]s/afternoon.jpg
settings:
  check_interval_fallback: 120
  monitor: "DP-1"
  transitions:
    enabled: true
    granularity: 600
`, dir)
}

func TestYAMLProviderLoad(t *testing.T) {
	dir := touchWallpapers(t)
	p := NewYAMLProvider(writeConfig(t, validYAML(dir)))

	data, err := p.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 37.7749, data.Location.Latitude)
	assert.Equal(t, "America/Los_Angeles", data.Location.Timezone)
	assert.Equal(t, ModeWallpaper, data.Mode, "mode defaults to wallpaper")
	assert.Equal(t, filepath.Join(dir, "night.jpg"), data.Wallpapers.Night)
	assert.Equal(t, 120, data.Settings.CheckIntervalFallback)
	assert.Equal(t, "DP-1", data.Settings.Monitor)

	assert.True(t, data.Settings.Transitions.Enabled)
	assert.Equal(t, 600, data.Settings.Transitions.Granularity)
	require.NotNil(t, data.Settings.Transitions.CacheBlends)
	assert.True(t, *data.Settings.Transitions.CacheBlends, "cache_blends defaults on")
	assert.Equal(t, int64(500), data.Settings.Transitions.MaxCacheSizeMB)
	require.NotNil(t, data.Settings.PreloadAll)
	assert.True(t, *data.Settings.PreloadAll)

	assert.True(t, p.IsReadOnly())
	assert.NoError(t, p.Close())
}

func TestYAMLProviderRejects(t *testing.T) {
	dir := touchWallpapers(t)

	tests := []struct {
		name string
		body string
	}{
		{"latitude out of range", `
location: {latitude: 95, longitude: 0, timezone: "UTC"}
wallpapers: {night: ` + dir + `/night.jpg, morning: ` + dir + `/morning.jpg, afternoon: ` + dir + `/afternoon.jpg}
`},
		{"longitude out of range", `
location: {latitude: 0, longitude: -200, timezone: "UTC"}
wallpapers: {night: ` + dir + `/night.jpg, morning: ` + dir + `/morning.jpg, afternoon: ` + dir + `/afternoon.jpg}
`},
		{"bad timezone", `
location: {latitude: 0, longitude: 0, timezone: "Mars/Olympus"}
wallpapers: {night: ` + dir + `/night.jpg, morning: ` + dir + `/morning.jpg, afternoon: ` + dir + `/afternoon.jpg}
`},
		{"missing wallpaper period", `
location: {latitude: 0, longitude: 0, timezone: "UTC"}
wallpapers: {night: ` + dir + `/night.jpg, morning: ` + dir + `/morning.jpg}
`},
		{"wallpaper file missing", `
location: {latitude: 0, longitude: 0, timezone: "UTC"}
wallpapers: {night: ` + dir + `/night.jpg, morning: ` + dir + `/morning.jpg, afternoon: ` + dir + `/gone.jpg}
`},
		{"granularity too small", `
location: {latitude: 0, longitude: 0, timezone: "UTC"}
wallpapers: {night: ` + dir + `/night.jpg, morning: ` + dir + `/morning.jpg, afternoon: ` + dir + `/afternoon.jpg}
settings: {transitions: {granularity: 30}}
`},
		{"unknown mode", `
location: {latitude: 0, longitude: 0, timezone: "UTC"}
mode: slideshow
wallpapers: {night: ` + dir + `/night.jpg, morning: ` + dir + `/morning.jpg, afternoon: ` + dir + `/afternoon.jpg}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYAMLProvider(writeConfig(t, tt.body)).LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestGeneratedModeValidation(t *testing.T) {
	dir := t.TempDir()
	logo := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("img"), 0o644))

	body := fmt.Sprintf(`
location: {latitude: 0, longitude: 0, timezone: "UTC"}
mode: generated
generated:
  logo: %s
  background_colors: {night: "#0a0a2a", morning: "#ffd27f", afternoon: "#87ceeb"}
  logo_colors: {night: "#fefefe", morning: "#202020", afternoon: "#101010"}
`, logo)

	data, err := NewYAMLProvider(writeConfig(t, body)).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.3, data.Generated.LogoScale, "scale defaults to 0.3")
	assert.Equal(t, "center", data.Generated.LogoPosition)

	bad := fmt.Sprintf(`
location: {latitude: 0, longitude: 0, timezone: "UTC"}
mode: generated
generated:
  logo: %s
  background_colors: {night: "blue", morning: "#ffd27f", afternoon: "#87ceeb"}
  logo_colors: {night: "#fefefe", morning: "#202020", afternoon: "#101010"}
`, logo)
	_, err = NewYAMLProvider(writeConfig(t, bad)).LoadConfig()
	assert.Error(t, err, "non-hex color must be rejected")
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	dir := touchWallpapers(t)
	yamlProvider := NewYAMLProvider(writeConfig(t, validYAML(dir)))
	data, err := yamlProvider.LoadConfig()
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "config.db")
	sq, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	defer sq.Close()

	require.NoError(t, sq.SaveConfig(data))
	assert.False(t, sq.IsReadOnly())

	loaded, err := sq.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, data.Location, loaded.Location)
	assert.Equal(t, data.Wallpapers, loaded.Wallpapers)
	assert.Equal(t, data.Settings.Transitions.Enabled, loaded.Settings.Transitions.Enabled)
	assert.Equal(t, data.Settings.Transitions.Granularity, loaded.Settings.Transitions.Granularity)
	assert.Equal(t, data.Settings.Monitor, loaded.Settings.Monitor)
}

func TestSQLiteProviderEmpty(t *testing.T) {
	sq, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer sq.Close()

	_, err = sq.LoadConfig()
	assert.Error(t, err, "an empty database holds no configuration")
}

func TestWriteTemplate(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, WriteTemplate(p, false, FallbackLocation))

	assert.Error(t, WriteTemplate(p, false, FallbackLocation), "existing file must not be overwritten without force")

	detected := Location{Latitude: 59.3293, Longitude: 18.0686, Timezone: "Europe/Stockholm"}
	assert.NoError(t, WriteTemplate(p, true, detected))

	// The template must parse and carry the seeded location, even
	// though its wallpaper paths do not exist on this machine.
	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "location:")
	assert.Contains(t, string(raw), "latitude: 59.3293")
	assert.Contains(t, string(raw), `timezone: "Europe/Stockholm"`)
	assert.Contains(t, string(raw), "transitions:")
}

func TestDetectLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"lat":48.8566,"lon":2.3522,"timezone":"Europe/Paris"}`)
	}))
	defer srv.Close()

	orig := geoEndpoint
	geoEndpoint = srv.URL
	defer func() { geoEndpoint = orig }()

	loc, err := DetectLocation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.8566, loc.Latitude, 1e-9)
	assert.InDelta(t, 2.3522, loc.Longitude, 1e-9)
	assert.Equal(t, "Europe/Paris", loc.Timezone)
}

func TestDetectLocationRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"service error", `{}`, http.StatusServiceUnavailable},
		{"missing timezone", `{"lat":48.8,"lon":2.3}`, http.StatusOK},
		{"bogus coordinates", `{"lat":999,"lon":2.3,"timezone":"Europe/Paris"}`, http.StatusOK},
		{"not json", `<html>`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			orig := geoEndpoint
			geoEndpoint = srv.URL
			defer func() { geoEndpoint = orig }()

			_, err := DetectLocation(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("SWITCHBACK_TEST_DIR", "/opt/walls")
	assert.Equal(t, "/opt/walls/a.jpg", ExpandPath("$SWITCHBACK_TEST_DIR/a.jpg"))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.jpg"), ExpandPath("~/x.jpg"))
	assert.Equal(t, "/plain/path.jpg", ExpandPath("/plain/path.jpg"))
}
