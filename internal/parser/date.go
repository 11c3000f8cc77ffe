package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"kharcha/internal/core"
)

// DateParser resolves a free-form date expression relative to today.
type DateParser interface {
	ParseDate(text string, today core.Date) (core.Date, bool)
}

// idiom is a fixed phrase mapped to a day offset from today.
type idiom struct {
	phrase string
	days   int
}

// Checked in order; "day before yesterday" must precede "yesterday".
var idioms = []idiom{
	{"day before yesterday", -2},
	{"yesterday", -1},
	{"tomorrow", 1},
	{"last week", -7},
	{"lastweek", -7},
	{"last month", -30},
	{"lastmonth", -30},
}

var (
	connectiveRe  = regexp.MustCompile(`\b(?:on|at|the|of|in)\s+`)
	spaceRe       = regexp.MustCompile(`\s+`)
	longDateRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s./-]+([a-z]+)[\s./-]+(\d{2,4})\b`)
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	todayRe       = regexp.MustCompile(`\btoday\b`)
)

// ExtractDate resolves the date a transaction refers to. It never fails:
// when no strategy matches it returns today with resolved=false.
//
// Strategies, first match wins:
//  1. relative idioms ("yesterday", "last week", ...)
//  2. the general parser over the text with connectives removed
//  3. a "12th January 2024" style substring
//  4. a DD/MM/YYYY or DD-MM-YYYY substring
//  5. the word "today", which only marks today as resolved
func ExtractDate(text string, today core.Date, general DateParser) (date core.Date, resolved bool) {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, id := range idioms {
		if strings.Contains(lower, id.phrase) {
			return today.AddDays(id.days), true
		}
	}

	if general != nil {
		cleaned := strings.TrimSpace(spaceRe.ReplaceAllString(connectiveRe.ReplaceAllString(lower, ""), " "))
		if cleaned != "" {
			if d, ok := general.ParseDate(cleaned, today); ok {
				return d, true
			}
		}
	}

	if m := longDateRe.FindStringSubmatch(lower); m != nil {
		if d, ok := longDate(m[1], m[2], m[3]); ok {
			return d, true
		}
		if general != nil {
			if d, ok := general.ParseDate(m[0], today); ok {
				return d, true
			}
		}
	}

	if m := numericDateRe.FindStringSubmatch(lower); m != nil {
		month, _ := strconv.Atoi(m[2])
		if d, ok := calendarDate(m[1], month, m[3]); ok {
			return d, true
		}
	}

	if todayRe.MatchString(lower) {
		return today, true
	}
	return today, false
}

func longDate(day, monthName, year string) (core.Date, bool) {
	month := monthFromName(monthName)
	if month == 0 {
		return core.Date{}, false
	}
	return calendarDate(day, month, year)
}

// calendarDate builds a date from day-first parts, rejecting overflow such
// as 31/02. Two-digit years are taken as 20YY.
func calendarDate(day string, month int, year string) (core.Date, bool) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return core.Date{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) == 3 {
		return core.Date{}, false
	}
	if len(year) == 2 {
		y += 2000
	}
	if month < 1 || month > 12 || d < 1 || d > 31 {
		return core.Date{}, false
	}
	date := core.NewDate(y, month, d)
	if date.Day() != d || int(date.Month()) != month {
		return core.Date{}, false
	}
	return date, true
}

var monthPrefixes = []struct {
	prefix string
	month  time.Month
}{
	{"jan", time.January}, {"feb", time.February}, {"mar", time.March},
	{"apr", time.April}, {"may", time.May}, {"jun", time.June},
	{"jul", time.July}, {"aug", time.August}, {"sep", time.September},
	{"oct", time.October}, {"nov", time.November}, {"dec", time.December},
}

// monthFromName accepts full names and three-letter abbreviations.
func monthFromName(name string) int {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0
	}
	for _, mp := range monthPrefixes {
		if !strings.HasPrefix(name, mp.prefix) {
			continue
		}
		full := strings.ToLower(mp.month.String())
		if len(name) == 3 || strings.HasPrefix(full, name) || name == "sept" {
			return int(mp.month)
		}
	}
	return 0
}
