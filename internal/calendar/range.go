package calendar

import (
	"errors"
	"fmt"
)

// ErrInvalidRange indicates a window whose end precedes its start.
var ErrInvalidRange = errors.New("calendar: window end before start")

// Range is an inclusive window of calendar days.
type Range struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewRange validates and builds an inclusive window.
func NewRange(start, end Date) (Range, error) {
	if start.IsZero() || end.IsZero() {
		return Range{}, fmt.Errorf("%w: bounds required", ErrInvalidRange)
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	return Range{Start: start, End: end}, nil
}

// MonthOf returns the window covering the whole month of d.
func MonthOf(d Date) Range {
	return Range{Start: d.FirstOfMonth(), End: d.LastOfMonth()}
}

// Contains reports whether d falls inside the window, bounds included.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Union returns the smallest window covering both.
func (r Range) Union(o Range) Range {
	return Range{Start: Earliest(r.Start, o.Start), End: Latest(r.End, o.End)}
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}
