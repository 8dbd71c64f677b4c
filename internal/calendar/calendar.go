// Package calendar holds the day and week arithmetic used by the week view and by
// due-date bucketing. Day boundaries and the first day of the week are explicit
// configuration rather than ambient locale state.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calendar decides which instants share a calendar day and where weeks start.
type Calendar struct {
	Location     *time.Location
	FirstWeekday time.Weekday
}

// Default returns a Monday-first calendar in the local time zone.
func Default() Calendar {
	return Calendar{Location: time.Local, FirstWeekday: time.Monday}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// In converts t into the calendar's location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.loc())
}

func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = c.In(t)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

// SameDay reports whether a and b fall on the same calendar day.
func (c Calendar) SameDay(a, b time.Time) bool {
	a, b = c.In(a), c.In(b)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// AddDays moves by whole calendar days, keeping the wall clock across DST changes.
func (c Calendar) AddDays(t time.Time, n int) time.Time {
	return c.In(t).AddDate(0, 0, n)
}

// StartOfWeek returns midnight of the first day of the week containing t.
func (c Calendar) StartOfWeek(t time.Time) time.Time {
	day := c.StartOfDay(t)
	offset := (int(day.Weekday()) - int(c.FirstWeekday) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekOf returns the seven day starts of the week containing t.
func (c Calendar) WeekOf(t time.Time) [7]time.Time {
	var week [7]time.Time
	start := c.StartOfWeek(t)
	for i := range week {
		week[i] = start.AddDate(0, 0, i)
	}
	return week
}

// NextWeekday returns the start of the first day strictly after t that falls on wd.
func (c Calendar) NextWeekday(t time.Time, wd time.Weekday) time.Time {
	day := c.StartOfDay(t)
	diff := (int(wd) - int(day.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return day.AddDate(0, 0, diff)
}

// DayInWeek returns the day of t's week that falls on wd.
func (c Calendar) DayInWeek(t time.Time, wd time.Weekday) time.Time {
	for _, d := range c.WeekOf(t) {
		if d.Weekday() == wd {
			return d
		}
	}
	return c.StartOfDay(t)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "日": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "月": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday, "火": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "水": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday, "木": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "金": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "土": time.Saturday,
}

// ParseWeekday accepts English names and abbreviations, ISO numbers (1=Monday..7=Sunday)
// and single-character Japanese weekday symbols.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[key]; ok {
		return wd, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 7 {
		return time.Weekday(n % 7), nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// ParseDate parses a YYYY-MM-DD day (or RFC 3339 instant) in the calendar's location.
func (c Calendar) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02", s, c.loc()); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return c.In(t), nil
}
