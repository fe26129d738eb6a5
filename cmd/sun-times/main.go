package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mholloway/switchback/pkg/astro"
)

func main() {
	var (
		lat     float64
		lon     float64
		tz      string
		dateStr string
	)
	flag.Float64Var(&lat, "lat", 0, "Observer latitude in degrees (north positive)")
	flag.Float64Var(&lon, "lon", 0, "Observer longitude in degrees (east positive)")
	flag.StringVar(&tz, "tz", "Local", "IANA timezone for output (e.g., America/Los_Angeles)")
	flag.StringVar(&dateStr, "date", "", "Date to compute (YYYY-MM-DD, default today)")
	flag.Parse()

	loc, err := time.LoadLocation(tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timezone: %v\n", err)
		os.Exit(1)
	}

	var date time.Time
	if dateStr == "" {
		date = time.Now().In(loc)
	} else {
		date, err = time.ParseInLocation("2006-01-02", dateStr, loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			os.Exit(1)
		}
	}

	calc, err := astro.NewCalculator(lat, lon, loc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sunrise, noon, sunset, err := calc.SunTimes(date.Year(), date.Month(), date.Day())
	switch {
	case errors.Is(err, astro.ErrPolarDay):
		fmt.Printf("Sun times for %s at %.4f, %.4f\n", date.Format("2006-01-02"), lat, lon)
		fmt.Println("  Polar day: the sun does not set.")
		return
	case errors.Is(err, astro.ErrPolarNight):
		fmt.Printf("Sun times for %s at %.4f, %.4f\n", date.Format("2006-01-02"), lat, lon)
		fmt.Println("  Polar night: the sun does not rise.")
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sun times for %s at %.4f, %.4f\n", date.Format("2006-01-02"), lat, lon)
	fmt.Printf("  Sunrise:    %s\n", sunrise.Format("15:04:05 MST"))
	fmt.Printf("  Solar noon: %s\n", noon.Format("15:04:05 MST"))
	fmt.Printf("  Sunset:     %s\n", sunset.Format("15:04:05 MST"))
	fmt.Printf("  Day length: %s\n", sunset.Sub(sunrise).Round(time.Second))
}
