package pipeline

import (
	"time"

	"github.com/pkg/errors"
)

// Interval is the data interval a run is responsible for.
type Interval struct {
	Start time.Time
	End   time.Time
}

// IntervalFor returns the interval of a run triggered at the given time: the whole previous day, in UTC.
func IntervalFor(triggeredAt time.Time) Interval {
	yesterday := triggeredAt.UTC().AddDate(0, 0, -1)
	start := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 23, 59, 59, 999999999, time.UTC)

	return Interval{Start: start, End: end}
}

// ParseInterval builds an interval out of user given dates. Either date may be empty, in which case the default
// interval for the given trigger time is used for it.
func ParseInterval(startDate, endDate string, triggeredAt time.Time) (Interval, error) {
	interval := IntervalFor(triggeredAt)

	if startDate != "" {
		start, err := parseDate(startDate)
		if err != nil {
			return Interval{}, errors.Wrapf(err, "invalid start date '%s'", startDate)
		}
		interval.Start = start
	}

	if endDate != "" {
		end, err := parseDate(endDate)
		if err != nil {
			return Interval{}, errors.Wrapf(err, "invalid end date '%s'", endDate)
		}
		interval.End = end
	}

	if interval.End.Before(interval.Start) {
		return Interval{}, errors.Errorf("end date %s is before start date %s", interval.End.Format(time.DateTime), interval.Start.Format(time.DateTime))
	}

	return interval, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.DateTime, time.RFC3339} {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, errors.New("expected YYYY-MM-DD, YYYY-MM-DD HH:MM:SS or RFC3339")
}

// ShouldTrigger reports whether a scheduled run at the given time is allowed: runs before the start date are
// skipped.
func (d *Definition) ShouldTrigger(at time.Time) bool {
	return !at.UTC().Before(d.StartDate.UTC())
}
