package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odontoplus/scheduling/internal/appointment"
)

// Granularity selects how wide a calendar view is.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("invalid granularity %q (want day, week, or month)", s)
}

// ViewSession is the full input to a calendar fetch: which dentist, the
// anchor date, the view width, and which statuses to project. It is a
// plain value; period navigation returns a new session and mutates
// nothing.
type ViewSession struct {
	DentistID   string
	Anchor      appointment.Date
	Granularity Granularity
	Statuses    []appointment.Status
}

// Range returns the inclusive date window the session covers. Week views
// span 7 days starting at the caller-supplied anchor; month views span the
// first through last calendar day of the anchor's month.
func (s ViewSession) Range() (appointment.Date, appointment.Date) {
	switch s.Granularity {
	case GranularityWeek:
		return s.Anchor, s.Anchor.AddDays(6)
	case GranularityMonth:
		first := appointment.NewDate(s.Anchor.Year, s.Anchor.Month, 1)
		last := first.AddDays(daysInMonth(s.Anchor.Year, s.Anchor.Month) - 1)
		return first, last
	default:
		return s.Anchor, s.Anchor
	}
}

// Next returns the session advanced by one period.
func (s ViewSession) Next() ViewSession {
	return s.shift(1)
}

// Previous returns the session moved back by one period.
func (s ViewSession) Previous() ViewSession {
	return s.shift(-1)
}

// Today returns the session re-anchored at the current date. For week
// views the anchor snaps to the most recent week start matching the
// current anchor's weekday, so the caller's choice of week start survives
// navigation.
func (s ViewSession) Today(now time.Time) ViewSession {
	today := appointment.DateOf(now)
	if s.Granularity == GranularityWeek {
		offset := (int(now.Weekday()) - int(s.anchorWeekday()) + 7) % 7
		today = today.AddDays(-offset)
	}
	s.Anchor = today
	return s
}

func (s ViewSession) shift(periods int) ViewSession {
	switch s.Granularity {
	case GranularityWeek:
		s.Anchor = s.Anchor.AddDays(7 * periods)
	case GranularityMonth:
		first := time.Date(s.Anchor.Year, s.Anchor.Month, 1, 0, 0, 0, 0, time.UTC)
		s.Anchor = appointment.DateOf(first.AddDate(0, periods, 0))
	default:
		s.Anchor = s.Anchor.AddDays(periods)
	}
	return s
}

func (s ViewSession) anchorWeekday() time.Weekday {
	return time.Date(s.Anchor.Year, s.Anchor.Month, s.Anchor.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// includes reports whether the status filter admits the given status. An
// empty filter admits everything.
func (s ViewSession) includes(status appointment.Status) bool {
	if len(s.Statuses) == 0 {
		return true
	}
	for _, st := range s.Statuses {
		if st == status {
			return true
		}
	}
	return false
}

// cacheKey identifies the session for the view cache. The status filter is
// part of the key so differently filtered views never share an entry.
func (s ViewSession) cacheKey() string {
	statuses := make([]string, 0, len(s.Statuses))
	for _, st := range s.Statuses {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	return fmt.Sprintf("%s:%s:%s:%s", s.DentistID, s.Granularity, s.Anchor, strings.Join(statuses, ","))
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
