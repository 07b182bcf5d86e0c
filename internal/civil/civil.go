// Package civil holds zone-less calendar values: dates, times of day and the
// combination of both. Instants are produced only by pairing them with a
// *time.Location.
package civil

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
	minutesPerDay  = 24 * 60
)

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the wall-clock date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a yyyy-MM-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday { return d.midnight().Weekday() }

func (d Date) Before(o Date) bool { return d.midnight().Before(o.midnight()) }

func (d Date) After(o Date) bool { return d.midnight().After(o.midnight()) }

// At combines the date with a time of day.
func (d Date) At(t TimeOfDay) DateTime {
	return DateTime{Date: d, Time: t}
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute precision, stored as minutes
// since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// TimeOfDayOf returns the wall-clock time of t, truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// ParseTimeOfDay accepts HH:mm and HH:mm:ss. Seconds must be zero.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	if t.Second() != 0 {
		return 0, fmt.Errorf("invalid time %q (seconds must be zero)", s)
	}
	return TimeOfDayOf(t), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Minutes returns the signed distance from t to o in minutes.
func (t TimeOfDay) Minutes(o TimeOfDay) int { return int(o) - int(t) }

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DateTime is a wall-clock date and time without a zone.
type DateTime struct {
	Date Date
	Time TimeOfDay
}

// DateTimeOf returns the wall-clock date-time of t in t's location.
func DateTimeOf(t time.Time) DateTime {
	return DateTime{Date: DateOf(t), Time: TimeOfDayOf(t)}
}

func (dt DateTime) wall() time.Time {
	return time.Date(dt.Date.Year, dt.Date.Month, dt.Date.Day, dt.Time.Hour(), dt.Time.Minute(), 0, 0, time.UTC)
}

// AddMinutes moves the wall clock forward, rolling into following days.
func (dt DateTime) AddMinutes(n int) DateTime {
	return DateTimeOf(dt.wall().Add(time.Duration(n) * time.Minute))
}

// In resolves the wall-clock value to an instant in loc.
func (dt DateTime) In(loc *time.Location) time.Time {
	return time.Date(dt.Date.Year, dt.Date.Month, dt.Date.Day, dt.Time.Hour(), dt.Time.Minute(), 0, 0, loc)
}

// AsUTC labels the wall-clock value as UTC without shifting it.
func (dt DateTime) AsUTC() time.Time { return dt.wall() }

func (dt DateTime) Before(o DateTime) bool { return dt.wall().Before(o.wall()) }

func (dt DateTime) String() string { return dt.wall().Format(dateTimeLayout) }

// ParseDateTime parses an ISO local date-time. Fractional seconds are
// accepted; seconds are dropped. A trailing zone is ignored and the wall
// clock kept.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTimeOf(t), nil
		}
	}
	return DateTime{}, fmt.Errorf("invalid date-time %q", s)
}

func (dt DateTime) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

func (dt *DateTime) UnmarshalText(b []byte) error {
	parsed, err := ParseDateTime(string(b))
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// Weekday is a day of the week encoded as its upper-case English name.
type Weekday time.Weekday

func (w Weekday) String() string { return strings.ToUpper(time.Weekday(w).String()) }

func (w Weekday) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Weekday) UnmarshalText(b []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(b)))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToUpper(d.String()) == name {
			*w = Weekday(d)
			return nil
		}
	}
	return fmt.Errorf("invalid day of week %q", string(b))
}
