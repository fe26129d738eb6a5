package schedule

import (
	"fmt"
	"time"
)

// Window is the time interval during which one period is active. The
// interval is inclusive of Start and exclusive of End, so a transition
// instant always belongs to the later period: at exactly sunrise the
// period is Morning.
type Window struct {
	Period Period
	Start  time.Time
	End    time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s → %s", w.Period,
		w.Start.Format("2006-01-02 15:04:05"), w.End.Format("15:04:05"))
}

// Transition is one entry of a day's transition sequence.
type Transition struct {
	At   time.Time
	From Period
	To   Period
}

// CurrentWindow returns the window containing now. The Night window
// straddles midnight, so computing it touches the previous day (before
// sunrise) or the next day (after sunset).
func (p *Provider) CurrentWindow(now time.Time) (Window, error) {
	now = now.In(p.loc)
	today, err := p.Day(now)
	if err != nil {
		return Window{}, err
	}

	switch today.Polar {
	case PolarNight:
		return Window{Period: Night, Start: today.Date, End: today.end()}, nil
	case PolarDay:
		return Window{Period: Afternoon, Start: today.Date, End: today.end()}, nil
	}

	switch {
	case now.Before(today.Sunrise):
		prev, err := p.Day(today.Date.AddDate(0, 0, -1))
		if err != nil {
			return Window{}, err
		}
		start := prev.Sunset
		if prev.Polar != PolarNone {
			// No sunset yesterday; the night began with today's civil date.
			start = today.Date
		}
		return Window{Period: Night, Start: start, End: today.Sunrise}, nil

	case now.Before(today.Noon):
		return Window{Period: Morning, Start: today.Sunrise, End: today.Noon}, nil

	case now.Before(today.Sunset):
		return Window{Period: Afternoon, Start: today.Noon, End: today.Sunset}, nil

	default:
		next, err := p.Day(today.end())
		if err != nil {
			return Window{}, err
		}
		end := next.Sunrise
		if next.Polar != PolarNone {
			// The neighbor is a degenerate whole-day window starting at
			// its own midnight; tonight ends where that window begins.
			end = next.Date
		}
		return Window{Period: Night, Start: today.Sunset, End: end}, nil
	}
}

// NextBoundary returns the instant the given window's period ends.
func NextBoundary(w Window) time.Time {
	return w.End
}

// TransitionSequence returns the ordered period transitions for the
// civil date containing t. A polar date has no transitions.
func (p *Provider) TransitionSequence(t time.Time) ([]Transition, error) {
	day, err := p.Day(t)
	if err != nil {
		return nil, err
	}
	if day.Polar != PolarNone {
		return nil, nil
	}
	return []Transition{
		{At: day.Sunrise, From: Night, To: Morning},
		{At: day.Noon, From: Morning, To: Afternoon},
		{At: day.Sunset, From: Afternoon, To: Night},
	}, nil
}
