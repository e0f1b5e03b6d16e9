// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package cache is the tiered hot/warm LRU in front of the query
// surface: single-flight miss coalescing, frequency-based promotion,
// page-aware tier placement, prefetch and city warming.
package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Time-range presets and their hour windows.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeAll   = "all"
)

var timeRangeHours = map[string]int{
	RangeToday: 24,
	RangeWeek:  168,
	RangeMonth: 720,
	RangeAll:   8760,
}

// TimeRangeHours maps a preset to its hour window. ok is false for
// unknown presets.
func TimeRangeHours(preset string) (hours int, ok bool) {
	hours, ok = timeRangeHours[preset]
	return hours, ok
}

// TimeRanges returns the valid presets in a stable order.
func TimeRanges() []string {
	return []string{RangeToday, RangeWeek, RangeMonth, RangeAll}
}

// Request identifies one cacheable list read. Identical requests must
// serialize to identical keys regardless of filter slice order.
type Request struct {
	City      string
	Page      int
	Limit     int
	TimeRange string
	SortBy    string

	Genres   []string
	Venues   []string
	PriceMin *float64
	PriceMax *float64
}

// Key returns the deterministic cache key. The city sits first so
// invalidation can match on prefix.
func (r Request) Key() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(r.City))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(r.Page))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(r.Limit))
	b.WriteByte('|')
	b.WriteString(r.TimeRange)
	b.WriteByte('|')
	b.WriteString(r.SortBy)
	b.WriteByte('|')
	b.WriteString(joinSorted(r.Genres))
	b.WriteByte('|')
	b.WriteString(joinSorted(r.Venues))
	b.WriteByte('|')
	b.WriteString(formatPrice(r.PriceMin))
	b.WriteByte('-')
	b.WriteString(formatPrice(r.PriceMax))
	return b.String()
}

// cityPrefix is the key prefix shared by every request for a city.
func cityPrefix(city string) string {
	return strings.ToLower(city) + "|"
}

func joinSorted(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	for i, v := range values {
		sorted[i] = strings.ToLower(v)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func formatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%g", *p)
}
