package astro

import (
	"errors"
	"math"
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%s): %v", name, err)
	}
	return loc
}

func TestSunTimesKnownLocations(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		tz       string
		date     [3]int
		// Expected local clock times, from the NOAA solar calculator.
		sunrise string
		noon    string
		sunset  string
	}{
		{
			name: "San Francisco summer solstice",
			lat:  37.7749, lon: -122.4194, tz: "America/Los_Angeles",
			date:    [3]int{2023, 6, 21},
			sunrise: "05:48", noon: "13:12", sunset: "20:35",
		},
		{
			name: "San Francisco winter",
			lat:  37.7749, lon: -122.4194, tz: "America/Los_Angeles",
			date:    [3]int{2026, 1, 9},
			sunrise: "07:25", noon: "12:17", sunset: "17:09",
		},
		{
			name: "London equinox",
			lat:  51.5074, lon: -0.1278, tz: "Europe/London",
			date:    [3]int{2024, 3, 20},
			sunrise: "06:01", noon: "12:08", sunset: "18:16",
		},
		{
			name: "Sydney southern summer",
			lat:  -33.8688, lon: 151.2093, tz: "Australia/Sydney",
			date:    [3]int{2024, 12, 21},
			sunrise: "05:41", noon: "12:56", sunset: "20:06",
		},
	}

	const toleranceMin = 4.0

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := mustLoc(t, tt.tz)
			calc, err := NewCalculator(tt.lat, tt.lon, loc)
			if err != nil {
				t.Fatalf("NewCalculator: %v", err)
			}

			sunrise, noon, sunset, err := calc.SunTimes(tt.date[0], time.Month(tt.date[1]), tt.date[2])
			if err != nil {
				t.Fatalf("SunTimes: %v", err)
			}

			checkClose(t, "sunrise", sunrise, tt.sunrise, toleranceMin)
			checkClose(t, "noon", noon, tt.noon, toleranceMin)
			checkClose(t, "sunset", sunset, tt.sunset, toleranceMin)
		})
	}
}

func checkClose(t *testing.T, label string, got time.Time, wantClock string, tolMin float64) {
	t.Helper()
	want, err := time.ParseInLocation("2006-01-02 15:04", got.Format("2006-01-02")+" "+wantClock, got.Location())
	if err != nil {
		t.Fatalf("parse %s: %v", wantClock, err)
	}
	diff := math.Abs(got.Sub(want).Minutes())
	if diff > tolMin {
		t.Errorf("%s = %s, expected within %.0f min of %s", label, got.Format("15:04:05"), tolMin, wantClock)
	}
}

func TestSunTimesOrdering(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")
	calc, err := NewCalculator(37.7749, -122.4194, loc)
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	// Ordering must hold on every day of the year.
	for d := time.Date(2025, 1, 1, 0, 0, 0, 0, loc); d.Year() == 2025; d = d.AddDate(0, 0, 1) {
		sunrise, noon, sunset, err := calc.SunTimes(d.Year(), d.Month(), d.Day())
		if err != nil {
			t.Fatalf("SunTimes(%s): %v", d.Format("2006-01-02"), err)
		}
		if !sunrise.Before(noon) || !noon.Before(sunset) {
			t.Errorf("%s: expected sunrise < noon < sunset, got %s / %s / %s",
				d.Format("2006-01-02"), sunrise.Format("15:04:05"), noon.Format("15:04:05"), sunset.Format("15:04:05"))
		}
		if sunrise.Day() != d.Day() || sunset.Day() != d.Day() {
			t.Errorf("%s: events landed on the wrong civil day: %s / %s",
				d.Format("2006-01-02"), sunrise.Format("2006-01-02"), sunset.Format("2006-01-02"))
		}
	}
}

func TestSunTimesPolar(t *testing.T) {
	loc := mustLoc(t, "Arctic/Longyearbyen")
	calc, err := NewCalculator(78.2232, 15.6267, loc)
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	_, _, _, err = calc.SunTimes(2024, time.January, 5)
	if !errors.Is(err, ErrPolarNight) {
		t.Errorf("January in Svalbard: expected ErrPolarNight, got %v", err)
	}

	_, _, _, err = calc.SunTimes(2024, time.June, 21)
	if !errors.Is(err, ErrPolarDay) {
		t.Errorf("June in Svalbard: expected ErrPolarDay, got %v", err)
	}

	// Spring equinox is outside the circumpolar window even at 78°N.
	_, _, _, err = calc.SunTimes(2024, time.April, 10)
	if err != nil {
		t.Errorf("April in Svalbard: expected normal day, got %v", err)
	}
}

func TestNewCalculatorValidation(t *testing.T) {
	loc := time.UTC
	if _, err := NewCalculator(91, 0, loc); err == nil {
		t.Error("expected error for latitude 91")
	}
	if _, err := NewCalculator(0, -181, loc); err == nil {
		t.Error("expected error for longitude -181")
	}
	if _, err := NewCalculator(0, 0, nil); err == nil {
		t.Error("expected error for nil location")
	}
}
