// Package recurrence expands open-ended recurring expense rules into concrete
// occurrence dates for a bounded window.
package recurrence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/cashledger/internal/calendar"
)

// ErrInvalidRule indicates a malformed recurrence configuration.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// Frequency is the closed set of supported recurrence steps.
type Frequency int

const (
	Weekly Frequency = iota + 1
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

// ParseFrequency maps the stored enum text onto a Frequency. Unknown values
// are rejected; no default is ever assumed.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "WEEKLY":
		return Weekly, nil
	case "MONTHLY":
		return Monthly, nil
	case "YEARLY":
		return Yearly, nil
	}
	return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, value)
}

// Valid reports whether f is one of the declared frequencies.
func (f Frequency) Valid() bool {
	_, ok := frequencyNames[f]
	return ok
}

func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Frequency) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %d", ErrInvalidRule, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Frequency) UnmarshalText(text []byte) error {
	parsed, err := ParseFrequency(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Rule describes a recurring series anchored on a stored occurrence.
type Rule struct {
	Frequency Frequency
	// Anchor is the stored row's own due date, itself an occurrence.
	Anchor calendar.Date
	// DayOfMonth overrides the anchor day for monthly rules; 0 means unset.
	DayOfMonth int
	// End bounds the series when non-zero.
	End calendar.Date
}

// NewRule validates a recurrence configuration at construction time.
func NewRule(freq Frequency, anchor calendar.Date, dayOfMonth int, end calendar.Date) (Rule, error) {
	if !freq.Valid() {
		return Rule{}, fmt.Errorf("%w: unknown frequency %d", ErrInvalidRule, int(freq))
	}
	if anchor.IsZero() {
		return Rule{}, fmt.Errorf("%w: anchor date required", ErrInvalidRule)
	}
	if dayOfMonth != 0 && (dayOfMonth < 1 || dayOfMonth > 31) {
		return Rule{}, fmt.Errorf("%w: day of month %d outside 1-31", ErrInvalidRule, dayOfMonth)
	}
	if !end.IsZero() && end.Before(anchor) {
		return Rule{}, fmt.Errorf("%w: end date %s before anchor %s", ErrInvalidRule, end, anchor)
	}
	return Rule{Frequency: freq, Anchor: anchor, DayOfMonth: dayOfMonth, End: end}, nil
}

// OpenEnded reports whether the series has no end date.
func (r Rule) OpenEnded() bool { return r.End.IsZero() }

type ruleJSON struct {
	Frequency  Frequency     `json:"frequency"`
	Anchor     calendar.Date `json:"anchor"`
	DayOfMonth int           `json:"dayOfMonth,omitempty"`
	End        calendar.Date `json:"endDate"`
}

// MarshalJSON encodes the rule for the snapshot cache.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON{Frequency: r.Frequency, Anchor: r.Anchor, DayOfMonth: r.DayOfMonth, End: r.End})
}

// UnmarshalJSON decodes and re-validates the rule.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rule, err := NewRule(raw.Frequency, raw.Anchor, raw.DayOfMonth, raw.End)
	if err != nil {
		return err
	}
	*r = rule
	return nil
}
