// Package calendar provides day-granularity dates used by the cash-flow engine.
package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Layout is the ISO date layout used for parsing and serialisation.
const Layout = "2006-01-02"

// ErrInvalidDate indicates a date string could not be parsed.
var ErrInvalidDate = errors.New("calendar: invalid date")

// Date is a calendar day normalised to midnight UTC.
type Date struct {
	t time.Time
}

// New builds a Date, normalising overflowing components the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day in UTC.
func FromTime(t time.Time) Date {
	u := t.UTC()
	return New(u.Year(), u.Month(), u.Day())
}

// Parse reads an ISO date (YYYY-MM-DD).
func Parse(value string) (Date, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return FromTime(t), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(value string) Date {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Clamped builds a date using day, clamped to the last valid day of the month.
func Clamped(year int, month time.Month, day int) Date {
	// Normalise month overflow first so DaysIn sees the real month.
	first := New(year, month, 1)
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return New(first.Year(), first.Month(), day)
}

func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// Time returns the midnight UTC instant of the day.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// UnixMilli returns the epoch milliseconds of midnight UTC.
func (d Date) UnixMilli() int64 { return d.t.UnixMilli() }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int { return d.t.Compare(o.t) }

// AddDays moves the date by n days.
func (d Date) AddDays(n int) Date {
	return New(d.Year(), d.Month(), d.Day()+n)
}

// AddMonths moves by n months keeping the day, clamped to the target month.
func (d Date) AddMonths(n int) Date {
	return Clamped(d.Year(), d.Month()+time.Month(n), d.Day())
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date { return New(d.Year(), d.Month(), 1) }

// LastOfMonth returns the last day of d's month.
func (d Date) LastOfMonth() Date { return New(d.Year(), d.Month()+1, 0) }

// DaysSince returns whole days elapsed from d to the instant t (negative when t is earlier).
func (d Date) DaysSince(t time.Time) int {
	return int(t.UTC().Sub(d.t).Hours() / 24)
}

// DaysBetween counts calendar days from d to o.
func (d Date) DaysBetween(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

// MonthKey formats the date as YYYY-MM.
func (d Date) MonthKey() string { return d.t.Format("2006-01") }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}

// MarshalJSON encodes the date as an ISO string.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO string or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Earliest returns the earlier of two dates.
func Earliest(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}

// Latest returns the later of two dates.
func Latest(a, b Date) Date {
	if b.After(a) {
		return b
	}
	return a
}
