package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClampedLastDay(t *testing.T) {
	require.Equal(t, "2025-02-28", Clamped(2025, time.February, 31).String())
	require.Equal(t, "2024-02-29", Clamped(2024, time.February, 31).String())
	require.Equal(t, "2025-04-30", Clamped(2025, time.April, 31).String())
	require.Equal(t, "2026-01-15", Clamped(2025, time.Month(13), 15).String())
}

func TestAddMonthsClamps(t *testing.T) {
	d := MustParse("2025-01-31")
	require.Equal(t, "2025-02-28", d.AddMonths(1).String())
	require.Equal(t, "2025-03-31", d.AddMonths(2).String())
	require.Equal(t, "2024-12-31", d.AddMonths(-1).String())
}

func TestMonthBounds(t *testing.T) {
	d := MustParse("2024-02-10")
	require.Equal(t, "2024-02-01", d.FirstOfMonth().String())
	require.Equal(t, "2024-02-29", d.LastOfMonth().String())
}

func TestDaysSince(t *testing.T) {
	due := MustParse("2025-01-01")
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	require.Equal(t, 151, due.DaysSince(now))
	require.Equal(t, 151, due.DaysBetween(MustParse("2025-06-01")))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("2025-13-01")
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		Due  Date `json:"due"`
		Paid Date `json:"paid"`
	}
	raw, err := json.Marshal(wrapper{Due: MustParse("2025-06-02")})
	require.NoError(t, err)
	require.JSONEq(t, `{"due":"2025-06-02","paid":null}`, string(raw))

	var back wrapper
	require.NoError(t, json.Unmarshal(raw, &back))
	require.True(t, back.Due.Equal(MustParse("2025-06-02")))
	require.True(t, back.Paid.IsZero())
}

func TestNewRange(t *testing.T) {
	r, err := NewRange(MustParse("2025-06-01"), MustParse("2025-06-30"))
	require.NoError(t, err)
	require.True(t, r.Contains(MustParse("2025-06-01")))
	require.True(t, r.Contains(MustParse("2025-06-30")))
	require.False(t, r.Contains(MustParse("2025-07-01")))

	_, err = NewRange(MustParse("2025-06-30"), MustParse("2025-06-01"))
	require.ErrorIs(t, err, ErrInvalidRange)
}
