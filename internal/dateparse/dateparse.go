// Package dateparse normalizes free-form date and clock text into calendar
// values. It never returns an error: callers get an explicit "no match" so a
// bad user input can be answered with a guiding message instead of a failure.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date is a civil calendar date, zone-free until combined with a clock time.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String renders the canonical YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At combines the date with a wall-clock time in the given location.
func (d Date) At(hour, min int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, min, 0, 0, loc)
}

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// monthByPrefix resolves a token like "jan" or "August" against the month
// table. Tokens shorter than 3 characters are rejected to keep single letters
// from matching.
func monthByPrefix(token string) (time.Month, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if len(t) < 3 {
		return 0, false
	}
	for i, name := range monthNames {
		if strings.HasPrefix(name, t) {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

var (
	reNumericDMY = regexp.MustCompile(`^\s*(\d{1,2})\s*/\s*(\d{1,2})\s*/\s*(\d{2,4})\s*$`)
	reNumericDM  = regexp.MustCompile(`^\s*(\d{1,2})\s*/\s*(\d{1,2})\s*$`)
	reDayName    = regexp.MustCompile(`^\s*(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]+)(?:\s+(\d{2,4}))?\s*$`)
	reNameDay    = regexp.MustCompile(`^\s*([A-Za-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{2,4}))?\s*$`)
)

// ParseDate tries the pattern families in order until one yields a valid
// calendar date. A pattern that matches textually but produces an impossible
// date (e.g. 31 Feb) does not abort parsing; later families still get a try.
// The year defaults to now's year when the input omits it.
func ParseDate(input string, now time.Time) (Date, bool) {
	type candidate func(string, time.Time) (Date, bool)
	for _, try := range []candidate{parseNumericDMY, parseNumericDM, parseDayMonthName, parseMonthNameDay} {
		if d, ok := try(input, now); ok && validDate(d) {
			return d, true
		}
	}
	return Date{}, false
}

func parseNumericDMY(input string, _ time.Time) (Date, bool) {
	m := reNumericDMY.FindStringSubmatch(input)
	if m == nil {
		return Date{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := normalizeYear(mustAtoi(m[3]))
	return Date{Year: year, Month: time.Month(month), Day: day}, true
}

func parseNumericDM(input string, now time.Time) (Date, bool) {
	m := reNumericDM.FindStringSubmatch(input)
	if m == nil {
		return Date{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return Date{Year: now.Year(), Month: time.Month(month), Day: day}, true
}

func parseDayMonthName(input string, now time.Time) (Date, bool) {
	m := reDayName.FindStringSubmatch(input)
	if m == nil {
		return Date{}, false
	}
	month, ok := monthByPrefix(m[2])
	if !ok {
		return Date{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year := now.Year()
	if m[3] != "" {
		year = normalizeYear(mustAtoi(m[3]))
	}
	return Date{Year: year, Month: month, Day: day}, true
}

func parseMonthNameDay(input string, now time.Time) (Date, bool) {
	m := reNameDay.FindStringSubmatch(input)
	if m == nil {
		return Date{}, false
	}
	month, ok := monthByPrefix(m[1])
	if !ok {
		return Date{}, false
	}
	day, _ := strconv.Atoi(m[2])
	year := now.Year()
	if m[3] != "" {
		year = normalizeYear(mustAtoi(m[3]))
	}
	return Date{Year: year, Month: month, Day: day}, true
}

// validDate checks the day exists in that month/year by round-tripping
// through time.Date, which normalizes overflow (Feb 31 -> Mar 3).
func validDate(d Date) bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && t.Month() == d.Month && t.Day() == d.Day
}

func normalizeYear(y int) int {
	if y < 100 {
		return 2000 + y
	}
	return y
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var reClock = regexp.MustCompile(`^\s*(\d{1,2})\s*[:hH]\s*(\d{2})\s*$`)

// ParseClock parses H:MM / HH:MM with ':' or a literal 'h' separator.
func ParseClock(input string) (hour, min int, ok bool) {
	m := reClock.FindStringSubmatch(input)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	min, _ = strconv.Atoi(m[2])
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, false
	}
	return hour, min, true
}
