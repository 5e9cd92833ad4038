package pdfread

import (
	"strconv"
	"strings"
	"time"
)

// ParseDate interprets a PDF intrinsic timestamp ("D:YYYYMMDDHHmmSS" with
// an optional O HH'mm' timezone suffix). Parsing is lenient: trailing
// components may be absent, but a malformed prefix yields no date at all.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "D:")
	if len(s) < 4 {
		return time.Time{}, false
	}

	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits < 4 {
		return time.Time{}, false
	}

	take := func(from, n, def int) int {
		if from+n > digits {
			return def
		}
		v, err := strconv.Atoi(s[from : from+n])
		if err != nil {
			return def
		}
		return v
	}

	year := take(0, 4, 0)
	if year == 0 {
		return time.Time{}, false
	}
	month := clampInt(take(4, 2, 1), 1, 12)
	day := clampInt(take(6, 2, 1), 1, 31)
	hour := clampInt(take(8, 2, 0), 0, 23)
	minute := clampInt(take(10, 2, 0), 0, 59)
	second := clampInt(take(12, 2, 0), 0, 59)

	loc := parseZone(s[digits:])
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), true
}

func parseZone(s string) *time.Location {
	if s == "" || s[0] == 'Z' {
		return time.UTC
	}
	sign := 0
	switch s[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return time.UTC
	}
	s = strings.ReplaceAll(s[1:], "'", "")
	if len(s) < 2 {
		return time.UTC
	}
	hh, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.UTC
	}
	mm := 0
	if len(s) >= 4 {
		if v, err := strconv.Atoi(s[2:4]); err == nil {
			mm = v
		}
	}
	return time.FixedZone("", sign*(hh*3600+mm*60))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
