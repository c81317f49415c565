// Package cooldown holds the date math shared by the sheet store and the
// claim protocol: the spreadsheet display format, the eligibility check,
// and the reconstruction of a last-claim time from countdown or
// rate-limit text scraped off the page.
package cooldown

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the display format stored in the sheet, minute precision.
const Layout = "02.01.2006 15:04"

var (
	remainingRe  = regexp.MustCompile(`(?i)(\d+)\s*(h(?:ours?)?|m(?:in(?:utes?)?)?|s(?:ec(?:onds?)?)?)\b`)
	retryAfterRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
)

// Parse reads a display-format timestamp. Empty or malformed input
// reports false; callers treat that as "never claimed".
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Format renders a timestamp in the display format. Parse(Format(t))
// round-trips exactly for minute-precision t.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Passed reports whether the cooldown window has elapsed since the
// recorded last claim. Absent or unparseable timestamps pass. Every
// eligibility decision in the program goes through here.
func Passed(lastClaim string, window time.Duration) bool {
	t, ok := Parse(lastClaim)
	if !ok {
		return true
	}
	return !time.Now().Before(t.Add(window))
}

// YesNoLabel is the human label written to the eligibility column.
func YesNoLabel(lastClaim string, window time.Duration) string {
	if Passed(lastClaim, window) {
		return "yes"
	}
	return "no"
}

// ParseRemaining extracts the remaining wait from countdown text such
// as "Come back in 23h 11m 49s". Any unit may be missing and defaults
// to zero; ok is false when no unit is present at all. Only the first
// occurrence of each unit counts.
func ParseRemaining(text string) (time.Duration, bool) {
	var d time.Duration
	seen := map[byte]bool{}
	for _, m := range remainingRe.FindAllStringSubmatch(text, -1) {
		unit := m[2][0] | 0x20
		if seen[unit] {
			continue
		}
		seen[unit] = true
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch unit {
		case 'h':
			d += time.Duration(n) * time.Hour
		case 'm':
			d += time.Duration(n) * time.Minute
		case 's':
			d += time.Duration(n) * time.Second
		}
	}
	return d, len(seen) > 0
}

// EquivalentLastClaim reconstructs the claim time the site is counting
// down from: now minus the already-elapsed part of the window.
func EquivalentLastClaim(now time.Time, window, remaining time.Duration) time.Time {
	return now.Add(remaining - window)
}

// ParseRetryAfter pulls an embedded ISO-8601 timestamp
// (YYYY-MM-DDTHH:MM:SS) out of rate-limit text and interprets it in
// local time.
func ParseRetryAfter(text string) (time.Time, bool) {
	m := retryAfterRe.FindString(text)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", m, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
