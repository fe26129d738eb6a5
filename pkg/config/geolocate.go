package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// geoEndpoint is swapped by tests.
var geoEndpoint = "http://ip-api.com/json/?fields=lat,lon,timezone"

const geoTimeout = 5 * time.Second

// DetectLocation guesses the observer location from the machine's
// public IP. Best effort for seeding a new config file; the daemon
// never calls this.
func DetectLocation(ctx context.Context) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, geoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geoEndpoint, nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("querying geolocation service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geolocation service returned %s", resp.Status)
	}

	var body struct {
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
		Timezone string  `json:"timezone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decoding geolocation response: %w", err)
	}

	loc := Location{Latitude: body.Lat, Longitude: body.Lon, Timezone: body.Timezone}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return Location{}, fmt.Errorf("geolocation service returned invalid coordinates %v, %v", loc.Latitude, loc.Longitude)
	}
	if _, err := loc.Load(); err != nil {
		return Location{}, err
	}
	return loc, nil
}
