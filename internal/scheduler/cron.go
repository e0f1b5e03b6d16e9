// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package scheduler fires per-source ingestion runs from 5-field cron
// expressions, staggered to avoid thundering herds, with PID-file process
// exclusion and graceful drain on shutdown.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
type Schedule struct {
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6, Sunday = 0
}

// ParseSchedule parses a standard 5-field cron expression.
//
// Supported syntax per field: "*", "n", "n-m", "n,m,o", "*/s", "n-m/s".
// Day-of-week accepts 0-7 with 7 normalized to Sunday (0). Day-of-month
// and day-of-week combine with OR when both are restricted, matching
// standard cron behavior.
func ParseSchedule(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	s := &Schedule{}
	var err error

	if s.minutes, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}
	if s.hours, err = parseField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}
	if s.days, err = parseField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("invalid day-of-month field: %w", err)
	}
	if s.months, err = parseField(fields[3], 1, 12); err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}
	weekdays, err := parseField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-week field: %w", err)
	}
	for i, d := range weekdays {
		if d == 7 {
			weekdays[i] = 0
		}
	}
	s.weekdays = uniqueInts(weekdays)

	return s, nil
}

// Next returns the first instant strictly after the given time that
// matches the schedule, in the given location (UTC when nil).
func (s *Schedule) Next(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Add(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)

	// Four years of minutes bounds the scan for expressions that can
	// never fire (e.g. Feb 30).
	maxIterations := 4 * 365 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if s.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (s *Schedule) matches(t time.Time) bool {
	if !containsInt(s.minutes, t.Minute()) ||
		!containsInt(s.hours, t.Hour()) ||
		!containsInt(s.months, int(t.Month())) {
		return false
	}

	dayMatch := containsInt(s.days, t.Day())
	weekdayMatch := containsInt(s.weekdays, int(t.Weekday()))
	dayAny := len(s.days) == 31
	weekdayAny := len(s.weekdays) == 7

	switch {
	case dayAny && weekdayAny:
		return true
	case dayAny:
		return weekdayMatch
	case weekdayAny:
		return dayMatch
	default:
		// Both restricted: standard cron ORs them.
		return dayMatch || weekdayMatch
	}
}

func parseField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return rangeInts(minVal, maxVal), nil
	}

	if strings.Contains(field, ",") {
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseFieldPart(part, minVal, maxVal)
			if err != nil {
				return nil, err
			}
			result = append(result, values...)
		}
		return uniqueInts(result), nil
	}

	return parseFieldPart(field, minVal, maxVal)
}

//nolint:gocyclo // Cron parsing requires handling multiple format cases
func parseFieldPart(part string, minVal, maxVal int) ([]int, error) {
	// Step: "*/s", "n/s" or "n-m/s".
	if strings.Contains(part, "/") {
		parts := strings.SplitN(part, "/", 2)
		step, err := strconv.Atoi(parts[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", parts[1])
		}

		var start, end int
		switch {
		case parts[0] == "*":
			start, end = minVal, maxVal
		case strings.Contains(parts[0], "-"):
			bounds := strings.SplitN(parts[0], "-", 2)
			if start, err = strconv.Atoi(bounds[0]); err != nil {
				return nil, fmt.Errorf("invalid range start: %s", bounds[0])
			}
			if end, err = strconv.Atoi(bounds[1]); err != nil {
				return nil, fmt.Errorf("invalid range end: %s", bounds[1])
			}
		default:
			if start, err = strconv.Atoi(parts[0]); err != nil {
				return nil, fmt.Errorf("invalid value: %s", parts[0])
			}
			end = maxVal
		}

		var result []int
		for i := start; i <= end; i += step {
			if i >= minVal && i <= maxVal {
				result = append(result, i)
			}
		}
		return result, nil
	}

	// Range: "n-m".
	if strings.Contains(part, "-") {
		bounds := strings.SplitN(part, "-", 2)
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", bounds[0])
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", bounds[1])
		}
		if start > end || start < minVal || end > maxVal {
			return nil, fmt.Errorf("invalid range: %d-%d (min=%d, max=%d)", start, end, minVal, maxVal)
		}
		return rangeInts(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d (min=%d, max=%d)", val, minVal, maxVal)
	}
	return []int{val}, nil
}

func rangeInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func uniqueInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	var result []int
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
