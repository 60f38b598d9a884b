package medication

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed dosing frequency.
type Schedule struct {
	Interval time.Duration
	Once     bool
}

var everyNHours = regexp.MustCompile(`^Q(\d{1,2})H$`)

var namedFrequencies = map[string]Schedule{
	"BID":   {Interval: 12 * time.Hour},
	"TID":   {Interval: 8 * time.Hour},
	"QID":   {Interval: 6 * time.Hour},
	"DAILY": {Interval: 24 * time.Hour},
	"QD":    {Interval: 24 * time.Hour},
	"ONCE":  {Once: true},
	"STAT":  {Once: true},
}

// ParseFrequency understands QxH (1 to 24 hours), BID, TID, QID, DAILY/QD
// and ONCE/STAT. Case and inner spaces are ignored.
func ParseFrequency(freq string) (Schedule, error) {
	f := strings.ToUpper(strings.ReplaceAll(freq, " ", ""))
	if s, ok := namedFrequencies[f]; ok {
		return s, nil
	}
	if m := everyNHours.FindStringSubmatch(f); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n >= 1 && n <= 24 {
			return Schedule{Interval: time.Duration(n) * time.Hour}, nil
		}
	}
	return Schedule{}, ErrInvalidFrequency
}

// advance computes the medication state after a dose given at `at`. The
// next dose is scheduled one interval after the previous due time, or after
// `at` when that would already be in the past.
func advance(m Medication, at time.Time) (nextDue *time.Time, status string) {
	if m.Category == CategoryPRN {
		return nil, m.Status
	}

	s, err := ParseFrequency(m.Frequency)
	if err != nil {
		// continuous infusions may carry a free-text rate instead of a schedule
		return m.NextDue, m.Status
	}
	if s.Once {
		return nil, StatusCompleted
	}

	base := at
	if m.NextDue != nil && m.NextDue.After(at.Add(-s.Interval)) {
		base = *m.NextDue
	}
	next := base.Add(s.Interval)
	if !next.After(at) {
		next = at.Add(s.Interval)
	}
	return &next, m.Status
}
