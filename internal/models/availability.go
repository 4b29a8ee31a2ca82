package models

import (
	"time"
)

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Overlaps uses half-open semantics, so touching ranges do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// WeeklySchedule holds at most one window per weekday.
type WeeklySchedule map[time.Weekday]VenueAvailability

func NewWeeklySchedule(rows []VenueAvailability) WeeklySchedule {
	s := make(WeeklySchedule, len(rows))
	for _, r := range rows {
		s[time.Weekday(r.Day)] = r
	}
	return s
}

// IsOpenAt checks the window configured for the instant's own weekday.
func (s WeeklySchedule) IsOpenAt(at time.Time) bool {
	w, ok := s[at.Weekday()]
	if !ok {
		return false
	}
	t := ClockOf(at)
	if w.OpensAt <= w.ClosesAt {
		return w.OpensAt <= t && t < w.ClosesAt
	}
	return t >= w.OpensAt || t < w.ClosesAt
}

// IsFullyOpen reports whether every instant of [start, end) is open. The
// interval is cut at local midnights and each slice has to fit inside the
// window of its own weekday.
func (s WeeklySchedule) IsFullyOpen(start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	loc := end.Location()
	start = start.In(loc)

	cursor := start
	for cursor.Before(end) {
		y, m, d := cursor.Date()
		midnight := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

		sliceEnd := midnight
		to := TimeOfDay(secondsPerDay)
		if end.Before(midnight) {
			sliceEnd = end
			to = ceilClock(end)
		}

		if !s.sliceOpen(cursor.Weekday(), ClockOf(cursor), to) {
			return false
		}
		cursor = sliceEnd
	}
	return true
}

// sliceOpen checks [from, to) on a single day, to may be 24:00.
func (s WeeklySchedule) sliceOpen(day time.Weekday, from, to TimeOfDay) bool {
	w, ok := s[day]
	if !ok {
		return false
	}
	if w.OpensAt <= w.ClosesAt {
		return w.OpensAt <= from && to <= w.ClosesAt
	}
	// open on [0, closes) and [opens, 24:00)
	return to <= w.ClosesAt || from >= w.OpensAt
}

// ceilClock rounds sub-second ends up so the last partial second is checked.
func ceilClock(t time.Time) TimeOfDay {
	c := ClockOf(t)
	if t.Nanosecond() > 0 {
		c++
	}
	return c
}
