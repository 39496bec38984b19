// Package match evaluates which scheduled broadcasts are on air at a
// given instant. Frequency tolerance, day-of-week patterns and time
// windows are independent predicates so each can be tested alone.
package match

import (
	"strconv"
	"strings"
)

// ToleranceKHz is the inclusive frequency tolerance applied to lookups.
// Feeds report nominal carrier frequencies and receivers drift, so exact
// matching would miss real transmissions.
const ToleranceKHz = 5.0

// WindowMinutes is the half-width of the "now" window, tolerating
// misalignment between the system clock and feed precision.
const WindowMinutes = 10

var weekDays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

type patternKind int

const (
	patternAll patternKind = iota // empty or unparseable: every day
	patternRange
	patternList
)

// DayPattern is a parsed day-of-operation pattern. The variants form a
// closed set: empty (every day), a named range over the week, a
// comma-separated day list, or unparseable (treated as every day).
type DayPattern struct {
	kind       patternKind
	start, end int
	days       []string
}

// ParseDayPattern interprets a raw day-of-operation pattern. Matching is
// case-insensitive. A pattern with exactly one "-" separator and two
// recognized three-letter day names is a range; anything else falls back
// to exact-day list matching.
func ParseDayPattern(raw string) DayPattern {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DayPattern{kind: patternAll}
	}

	if parts := strings.Split(raw, "-"); len(parts) == 2 {
		start := dayIndex(strings.TrimSpace(parts[0]))
		end := dayIndex(strings.TrimSpace(parts[1]))
		if start >= 0 && end >= 0 {
			return DayPattern{kind: patternRange, start: start, end: end}
		}
		// Unrecognized endpoint: abandon range syntax entirely.
	}

	days := strings.Split(raw, ",")
	for i := range days {
		days[i] = strings.TrimSpace(days[i])
	}
	return DayPattern{kind: patternList, days: days}
}

// Matches reports whether the pattern admits the given lowercase
// three-letter day name. A range whose end precedes its start wraps
// across the week boundary ("fri-mon" covers fri, sat, sun, mon).
func (p DayPattern) Matches(day string) bool {
	switch p.kind {
	case patternAll:
		return true
	case patternRange:
		cur := dayIndex(day)
		if cur < 0 {
			return false
		}
		if p.start <= p.end {
			return p.start <= cur && cur <= p.end
		}
		return cur >= p.start || cur <= p.end
	default:
		for _, d := range p.days {
			if d == day {
				return true
			}
		}
		return false
	}
}

func dayIndex(day string) int {
	for i, d := range weekDays {
		if d == day {
			return i
		}
	}
	return -1
}

// timeToMinutes converts a 4-digit "HHMM" value to minutes since
// midnight. A value of any other length resolves to 0; a 4-character
// value that is not numeric fails, so the caller can fall back to
// "always active" rather than guessing.
func timeToMinutes(s string) (int, bool) {
	if len(s) != 4 {
		return 0, true
	}
	hours, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(s[2:])
	if err != nil {
		return 0, false
	}
	return hours*60 + minutes, true
}

// TimeWindowOverlaps reports whether a broadcast's scheduled time range
// admits the query window [windowStart, windowEnd]. All values are
// "HHMM". A broadcast with no start or end time is always active. When
// the broadcast's end precedes its start the schedule crosses midnight,
// and the window matches if it overlaps either the late-night or
// early-morning segment. Malformed values resolve permissively toward a
// match rather than suppressing the row.
func TimeWindowOverlaps(broadcastStart, broadcastEnd, windowStart, windowEnd string) bool {
	if broadcastStart == "" || broadcastEnd == "" {
		return true
	}

	bs, ok1 := timeToMinutes(broadcastStart)
	be, ok2 := timeToMinutes(broadcastEnd)
	ws, ok3 := timeToMinutes(windowStart)
	we, ok4 := timeToMinutes(windowEnd)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return true
	}

	if be < bs {
		// Crosses midnight.
		return ws >= bs || we <= be || ws <= be || we >= bs
	}
	return !(we < bs || ws > be)
}
