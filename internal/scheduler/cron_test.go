// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleEverySixHours(t *testing.T) {
	s, err := ParseSchedule("0 */6 * * *")
	require.NoError(t, err)

	assert.Equal(t, []int{0}, s.minutes)
	assert.Equal(t, []int{0, 6, 12, 18}, s.hours)
	assert.Len(t, s.days, 31)
	assert.Len(t, s.weekdays, 7)
}

func TestParseScheduleListsAndRanges(t *testing.T) {
	s, err := ParseSchedule("0,30 9-17 * * 1-5")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 30}, s.minutes)
	assert.Equal(t, []int{9, 10, 11, 12, 13, 14, 15, 16, 17}, s.hours)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.weekdays)
}

func TestParseScheduleNormalizesSundaySeven(t *testing.T) {
	s, err := ParseSchedule("0 0 * * 7")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, s.weekdays)
}

func TestParseScheduleErrors(t *testing.T) {
	cases := []string{
		"",
		"0 0 * *",         // four fields
		"60 * * * *",      // minute out of range
		"* 24 * * *",      // hour out of range
		"* * * * 8",       // weekday out of range
		"*/0 * * * *",     // zero step
		"5-2 * * * *",     // inverted range
		"a b c d e",       // garbage
		"0 0 * * 1 extra", // six fields
	}
	for _, expr := range cases {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, "expression %q", expr)
	}
}

func TestScheduleNextDaily(t *testing.T) {
	s, err := ParseSchedule("0 9 * * *")
	require.NoError(t, err)

	after := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	next := s.Next(after, nil)
	assert.Equal(t, time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC), next)

	// Before today's fire time, the next run is today.
	after = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	next = s.Next(after, nil)
	assert.Equal(t, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC), next)
}

func TestScheduleNextIsStrictlyAfter(t *testing.T) {
	s, err := ParseSchedule("0 9 * * *")
	require.NoError(t, err)

	exactly := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	next := s.Next(exactly, nil)
	assert.Equal(t, exactly.Add(24*time.Hour), next)
}

func TestScheduleDayOfMonthORDayOfWeek(t *testing.T) {
	// Midnight on the 1st of the month or any Monday.
	s, err := ParseSchedule("0 0 1 * 1")
	require.NoError(t, err)

	// Mon 2026-06-08.
	assert.True(t, s.matches(time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC)))
	// Wed 2026-07-01: matches on day-of-month alone.
	assert.True(t, s.matches(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
	// Tue 2026-06-09: neither.
	assert.False(t, s.matches(time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)))
}

func TestScheduleEveryFifteenMinutes(t *testing.T) {
	s, err := ParseSchedule("*/15 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 6, 1, 10, 7, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 6, 1, 10, 15, 0, 0, time.UTC), s.Next(after, nil))
}
