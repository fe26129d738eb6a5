// Package schedule derives the active wallpaper period, blend progress
// and next wake instant from daily sun event times.
package schedule

import "fmt"

// Period is the coarse wallpaper state. Exactly one period is active at
// any instant of the day cycle Night → Morning → Afternoon → Night.
type Period int

const (
	Night Period = iota
	Morning
	Afternoon
)

// Next returns the period that follows p in the daily cycle.
func (p Period) Next() Period {
	switch p {
	case Night:
		return Morning
	case Morning:
		return Afternoon
	default:
		return Night
	}
}

func (p Period) String() string {
	switch p {
	case Night:
		return "night"
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	default:
		return fmt.Sprintf("period(%d)", int(p))
	}
}

// ParsePeriod converts a period name to its Period value.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "night":
		return Night, nil
	case "morning":
		return Morning, nil
	case "afternoon":
		return Afternoon, nil
	default:
		return Night, fmt.Errorf("unknown period %q", s)
	}
}

// Periods lists all period values in cycle order starting at Night.
func Periods() []Period {
	return []Period{Night, Morning, Afternoon}
}
