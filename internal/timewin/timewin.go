package timewin

import (
	"fmt"
	"strings"
	"time"
)

// Config is the raw exclusion-window configuration as it appears in YAML.
type Config struct {
	// TimeRanges are daily clock windows in "HH:MM-HH:MM" form. A range
	// whose start is after its end wraps past midnight.
	TimeRanges []string `yaml:"time_ranges"`

	// Weekdays are full weekday names ("Sunday", "monday", ...).
	Weekdays []string `yaml:"weekdays"`

	// Dates are specific calendar dates in "2006-01-02" form.
	Dates []string `yaml:"dates"`
}

// Windows is the parsed, queryable form of a Config.
type Windows struct {
	ranges   []clockRange
	weekdays map[time.Weekday]bool
	dates    map[string]bool
}

// clockRange is a daily window in minutes since midnight, inclusive on both
// ends. start > end means the range wraps past midnight.
type clockRange struct {
	start, end int
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parse validates and compiles cfg. An all-empty Config yields Windows that
// exclude nothing.
func Parse(cfg Config) (*Windows, error) {
	w := &Windows{
		weekdays: make(map[time.Weekday]bool),
		dates:    make(map[string]bool),
	}

	for _, tr := range cfg.TimeRanges {
		r, err := parseClockRange(tr)
		if err != nil {
			return nil, err
		}
		w.ranges = append(w.ranges, r)
	}

	for _, name := range cfg.Weekdays {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("timewin: unknown weekday %q", name)
		}
		w.weekdays[day] = true
	}

	for _, d := range cfg.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("timewin: bad date %q: %w", d, err)
		}
		w.dates[d] = true
	}

	return w, nil
}

func parseClockRange(s string) (clockRange, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return clockRange{}, fmt.Errorf("timewin: bad time range %q", s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return clockRange{}, fmt.Errorf("timewin: bad time range %q: %w", s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return clockRange{}, fmt.Errorf("timewin: bad time range %q: %w", s, err)
	}
	return clockRange{start: start, end: end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Excludes reports whether t falls inside any configured window. A nil
// Windows excludes nothing.
func (w *Windows) Excludes(t time.Time) bool {
	if w == nil {
		return false
	}
	if w.weekdays[t.Weekday()] {
		return true
	}
	if w.dates[t.Format("2006-01-02")] {
		return true
	}
	minute := t.Hour()*60 + t.Minute()
	for _, r := range w.ranges {
		if r.contains(minute) {
			return true
		}
	}
	return false
}

func (r clockRange) contains(minute int) bool {
	if r.start <= r.end {
		return minute >= r.start && minute <= r.end
	}
	// wraps past midnight
	return minute >= r.start || minute <= r.end
}
