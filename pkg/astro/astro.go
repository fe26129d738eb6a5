// Package astro computes daily sun event times (sunrise, solar noon,
// sunset) for a fixed observer using the NOAA solar position equations.
// Accuracy is typically within a minute or two of published almanac
// times, which is more than enough for scheduling purposes.
package astro

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"
)

// Standard zenith for rise/set includes refraction and solar semi-diameter.
const standardZenithDeg = 90.833

// ErrPolarDay indicates the sun never sets on the requested date.
var ErrPolarDay = errors.New("polar day: sun never sets on this date")

// ErrPolarNight indicates the sun never rises on the requested date.
var ErrPolarNight = errors.New("polar night: sun never rises on this date")

// Calculator computes sun event times for one geographic location.
// Longitude follows the usual geographic convention: east positive.
type Calculator struct {
	Latitude  float64
	Longitude float64
	Loc       *time.Location
}

// NewCalculator validates the coordinates and returns a Calculator.
func NewCalculator(lat, lon float64, loc *time.Location) (*Calculator, error) {
	if lat < -90 || lat > 90 {
		return nil, fmt.Errorf("latitude must be between -90 and 90, got %v", lat)
	}
	if lon < -180 || lon > 180 {
		return nil, fmt.Errorf("longitude must be between -180 and 180, got %v", lon)
	}
	if loc == nil {
		return nil, errors.New("nil location")
	}
	return &Calculator{Latitude: lat, Longitude: lon, Loc: loc}, nil
}

// SunTimes returns sunrise, solar noon and sunset for the given civil
// date, expressed in the calculator's timezone. For circumpolar dates it
// returns ErrPolarDay or ErrPolarNight.
func (c *Calculator) SunTimes(year int, month time.Month, day int) (sunrise, noon, sunset time.Time, err error) {
	// Minutes are computed relative to 00:00 UTC on the civil date that
	// contains local noon, so the events land on the right local day even
	// far from the prime meridian.
	localNoon := time.Date(year, month, day, 12, 0, 0, 0, c.Loc)
	ud := localNoon.UTC()
	dateUTC := time.Date(ud.Year(), ud.Month(), ud.Day(), 0, 0, 0, 0, time.UTC)

	noonMin := c.refineNoon(dateUTC)
	noon = dateUTC.Add(minutes(noonMin)).In(c.Loc)

	riseMin, setMin, err := c.riseSetMinutes(dateUTC, noonMin)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, err
	}

	sunrise = dateUTC.Add(minutes(riseMin)).In(c.Loc)
	sunset = dateUTC.Add(minutes(setMin)).In(c.Loc)
	return sunrise, noon, sunset, nil
}

// refineNoon computes solar noon in minutes after 00:00 UTC, with one
// refinement pass evaluating the equation of time at the estimate itself.
func (c *Calculator) refineNoon(dateUTC time.Time) float64 {
	noonMin := 720.0 - 4.0*c.Longitude
	for i := 0; i < 2; i++ {
		_, eqTime := solarCoords(dateUTC.Add(minutes(noonMin)))
		noonMin = 720.0 - 4.0*c.Longitude - eqTime
	}
	return noonMin
}

func (c *Calculator) riseSetMinutes(dateUTC time.Time, noonMin float64) (riseMin, setMin float64, err error) {
	// First estimate from conditions at solar noon, then refine each
	// event against conditions at the estimated event time.
	haDeg, err := c.hourAngle(dateUTC.Add(minutes(noonMin)))
	if err != nil {
		return 0, 0, err
	}
	riseMin = noonMin - 4.0*haDeg
	setMin = noonMin + 4.0*haDeg

	if ha, herr := c.hourAngle(dateUTC.Add(minutes(riseMin))); herr == nil {
		riseMin = noonMin - 4.0*ha
	}
	if ha, herr := c.hourAngle(dateUTC.Add(minutes(setMin))); herr == nil {
		setMin = noonMin + 4.0*ha
	}
	return riseMin, setMin, nil
}

// hourAngle returns the half-arc of the sun above the standard zenith in
// degrees at time t, or a polar error when the sun is circumpolar.
func (c *Calculator) hourAngle(t time.Time) (float64, error) {
	declRad, _ := solarCoords(t)
	latRad := degToRad(c.Latitude)

	cosH := (math.Cos(degToRad(standardZenithDeg)) - math.Sin(latRad)*math.Sin(declRad)) /
		(math.Cos(latRad) * math.Cos(declRad))
	switch {
	case cosH > 1:
		return 0, ErrPolarNight
	case cosH < -1:
		return 0, ErrPolarDay
	}
	return radToDeg(math.Acos(cosH)), nil
}

// solarCoords returns the solar declination in radians and the equation
// of time in minutes for time t. Series terms follow Meeus, matching the
// NOAA solar calculator.
func solarCoords(t time.Time) (declRad, eqTimeMin float64) {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	L0 := unit.PMod(280.46646+T*(36000.76983+T*0.0003032), 360)
	M := unit.PMod(357.52911+T*(35999.05029-T*0.0001537), 360)
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)

	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	sunLong := L0 + C

	omega := 125.04 - 1934.136*T
	lambda := sunLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))

	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))

	declRad = math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda)))

	y := math.Tan(degToRad(eps)/2) * math.Tan(degToRad(eps)/2)
	eqTimeMin = radToDeg(y*math.Sin(2*degToRad(L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(2*degToRad(L0))-
		0.5*y*y*math.Sin(4*degToRad(L0))-
		1.25*e*e*math.Sin(2*degToRad(M))) * 4

	return declRad, eqTimeMin
}

func minutes(m float64) time.Duration {
	return time.Duration(math.Round(m * 60.0 * float64(time.Second)))
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
