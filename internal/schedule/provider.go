package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/mholloway/switchback/pkg/astro"
)

// Source produces sun event times for a civil date at a fixed location.
// pkg/astro's Calculator satisfies this; tests substitute fixtures.
type Source interface {
	SunTimes(year int, month time.Month, day int) (sunrise, noon, sunset time.Time, err error)
}

// PolarKind marks degenerate days where the sun never crosses the horizon.
type PolarKind int

const (
	PolarNone PolarKind = iota
	PolarDay            // sun never sets: the whole day is Afternoon
	PolarNight          // sun never rises: the whole day is Night
)

// SolarDay holds the sun event times for one civil date. For polar days
// the three event times are zero and Polar records which degenerate
// window applies.
type SolarDay struct {
	Date    time.Time // midnight at the start of the civil date, in the configured zone
	Sunrise time.Time
	Noon    time.Time
	Sunset  time.Time
	Polar   PolarKind
}

// Provider computes SolarDays lazily, one per distinct civil date, and
// keeps a small bounded cache of recent results. The cache needs at
// least two entries because the Night window straddles midnight and
// always touches an adjacent day.
type Provider struct {
	src   Source
	loc   *time.Location
	max   int
	days  map[string]SolarDay
	order []string // insertion order, oldest first
}

// NewProvider returns a Provider caching up to four computed days.
func NewProvider(src Source, loc *time.Location) *Provider {
	return &Provider{
		src:  src,
		loc:  loc,
		max:  4,
		days: make(map[string]SolarDay),
	}
}

// Day returns the SolarDay for the civil date containing t. Polar dates
// are recovered locally into a degenerate all-Night or all-Afternoon
// day rather than reported as an error; only genuine source failures
// propagate.
func (p *Provider) Day(t time.Time) (SolarDay, error) {
	local := t.In(p.loc)
	key := local.Format("2006-01-02")
	if d, ok := p.days[key]; ok {
		return d, nil
	}

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
	day := SolarDay{Date: midnight}

	sunrise, noon, sunset, err := p.src.SunTimes(local.Year(), local.Month(), local.Day())
	switch {
	case err == nil:
		if !sunrise.Before(noon) || !noon.Before(sunset) {
			return SolarDay{}, fmt.Errorf("sun times for %s out of order: %v / %v / %v", key, sunrise, noon, sunset)
		}
		day.Sunrise = sunrise.In(p.loc)
		day.Noon = noon.In(p.loc)
		day.Sunset = sunset.In(p.loc)
	case errors.Is(err, astro.ErrPolarDay):
		day.Polar = PolarDay
	case errors.Is(err, astro.ErrPolarNight):
		day.Polar = PolarNight
	default:
		return SolarDay{}, fmt.Errorf("computing sun times for %s: %w", key, err)
	}

	p.store(key, day)
	return day, nil
}

func (p *Provider) store(key string, day SolarDay) {
	if len(p.order) >= p.max {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.days, oldest)
	}
	p.days[key] = day
	p.order = append(p.order, key)
}

// end returns the first instant of the following civil date.
func (d SolarDay) end() time.Time {
	return d.Date.AddDate(0, 0, 1)
}
