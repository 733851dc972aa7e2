package recurrence

import (
	"github.com/odyssey-erp/cashledger/internal/calendar"
)

// stepper enumerates candidate dates for one frequency inside [from, to].
// Candidates may still fall outside the rule bounds; Occurrences filters them.
type stepper interface {
	candidates(r Rule, from, to calendar.Date) []calendar.Date
}

type weeklyStepper struct{}

func (weeklyStepper) candidates(r Rule, from, to calendar.Date) []calendar.Date {
	offset := r.Anchor.DaysBetween(from)
	if offset < 0 {
		offset = 0
	}
	// Round up to the next whole week so the anchor weekday is preserved.
	weeks := (offset + 6) / 7
	var out []calendar.Date
	for d := r.Anchor.AddDays(weeks * 7); !d.After(to); d = d.AddDays(7) {
		out = append(out, d)
	}
	return out
}

type monthlyStepper struct{}

func (monthlyStepper) candidates(r Rule, from, to calendar.Date) []calendar.Date {
	day := r.DayOfMonth
	if day == 0 {
		day = r.Anchor.Day()
	}
	var out []calendar.Date
	for m := from.FirstOfMonth(); !m.After(to); m = m.AddMonths(1) {
		out = append(out, calendar.Clamped(m.Year(), m.Month(), day))
	}
	return out
}

type yearlyStepper struct{}

func (yearlyStepper) candidates(r Rule, from, to calendar.Date) []calendar.Date {
	var out []calendar.Date
	for y := from.Year(); y <= to.Year(); y++ {
		out = append(out, calendar.Clamped(y, r.Anchor.Month(), r.Anchor.Day()))
	}
	return out
}

var steppers = map[Frequency]stepper{
	Weekly:  weeklyStepper{},
	Monthly: monthlyStepper{},
	Yearly:  yearlyStepper{},
}

// Occurrences returns the ascending occurrence dates of r inside window.
// Dates before the anchor or after the end date are excluded, and enumeration
// never passes window.End, so open-ended rules terminate for any window.
func (r Rule) Occurrences(window calendar.Range) []calendar.Date {
	s, ok := steppers[r.Frequency]
	if !ok {
		return nil
	}
	from := calendar.Latest(window.Start, r.Anchor)
	to := window.End
	if !r.End.IsZero() {
		to = calendar.Earliest(to, r.End)
	}
	if to.Before(from) {
		return nil
	}
	var out []calendar.Date
	for _, d := range s.candidates(r, from, to) {
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out
}
