// Package hours resolves working-hour specs into open windows for a date.
package hours

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"citabot/internal/models"
)

// Window is a half-open interval [Start, End) in minutes from midnight.
type Window struct {
	Start int
	End   int
}

// Duration returns the window length in minutes.
func (w Window) Duration() int { return w.End - w.Start }

// ResolveOpenWindows returns the open intervals for a date, with break
// intervals subtracted from the day's base window. An empty result means
// the day is closed or the spec is malformed; the caller decides whether
// that is authoritative (facility) or a soft no-constraint (staff).
func ResolveOpenWindows(spec models.WorkingHoursSpec, date time.Time) []Window {
	if len(spec) == 0 {
		return nil
	}

	day, ok := spec[WeekdayKey(date)]
	if !ok {
		return nil
	}

	start, err := ParseClock(day.Start)
	if err != nil {
		return nil
	}
	end, err := ParseClock(day.End)
	if err != nil {
		return nil
	}
	if start >= end {
		return nil
	}

	base := Window{Start: start, End: end}
	breaks := normalizeBreaks(day.Breaks, base)
	if len(breaks) == 0 {
		return []Window{base}
	}

	var open []Window
	cursor := base.Start
	for _, br := range breaks {
		if br.Start > cursor {
			open = append(open, Window{Start: cursor, End: br.Start})
		}
		if br.End > cursor {
			cursor = br.End
		}
	}
	if cursor < base.End {
		open = append(open, Window{Start: cursor, End: base.End})
	}
	return open
}

// Intersect returns the pairwise intersection of two window sets, ordered
// chronologically. Either set being empty yields an empty result.
func Intersect(a, b []Window) []Window {
	var out []Window
	for _, wa := range a {
		for _, wb := range b {
			start := wa.Start
			if wb.Start > start {
				start = wb.Start
			}
			end := wa.End
			if wb.End < end {
				end = wb.End
			}
			if start < end {
				out = append(out, Window{Start: start, End: end})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// normalizeBreaks clamps breaks to the base window, drops malformed or
// out-of-window ones and merges overlaps.
func normalizeBreaks(breaks []models.BreakInterval, base Window) []Window {
	var clamped []Window
	for _, br := range breaks {
		start, err := ParseClock(br.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(br.End)
		if err != nil {
			continue
		}
		if start < base.Start {
			start = base.Start
		}
		if end > base.End {
			end = base.End
		}
		if start >= end {
			continue
		}
		clamped = append(clamped, Window{Start: start, End: end})
	}
	if len(clamped) == 0 {
		return nil
	}

	sort.Slice(clamped, func(i, j int) bool { return clamped[i].Start < clamped[j].Start })

	merged := []Window{clamped[0]}
	for _, w := range clamped[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// Malformed reports whether the spec has an entry for the date whose base
// window cannot be parsed. Lets callers tell a broken optional spec apart
// from a genuinely closed day.
func Malformed(spec models.WorkingHoursSpec, date time.Time) bool {
	day, ok := spec[WeekdayKey(date)]
	if !ok {
		return false
	}
	start, err := ParseClock(day.Start)
	if err != nil {
		return true
	}
	end, err := ParseClock(day.End)
	if err != nil {
		return true
	}
	return start >= end
}

// WeekdayKey returns the lowercase weekday key used by WorkingHoursSpec.
func WeekdayKey(date time.Time) string {
	return strings.ToLower(date.Weekday().String())
}

// ParseClock parses "15:04" into minutes from midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes from midnight as "15:04".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// OnDate converts minutes from midnight into an instant on the given date.
func OnDate(date time.Time, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, date.Location())
}
