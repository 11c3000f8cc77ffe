package parser

import (
	"strings"

	dps "github.com/markusmobius/go-dateparser"

	"kharcha/internal/core"
)

// NaturalDateParser is the general-purpose DateParser backed by
// go-dateparser. It understands absolute dates in most written forms
// ("12 Jan 2024", "2024-01-12", "January 12") and relative ones
// ("3 days ago", "next friday"). Numeric dates are read day first, so
// "05/12/2024" is 5 December.
type NaturalDateParser struct{}

// ParseDate implements DateParser.
func (NaturalDateParser) ParseDate(text string, today core.Date) (core.Date, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Date{}, false
	}
	cfg := &dps.Configuration{
		CurrentTime: today.Time,
		DateOrder:   dps.DMY,
	}
	dt, err := dps.Parse(cfg, text)
	if err != nil || dt.Time.IsZero() {
		return core.Date{}, false
	}
	return core.DateOf(dt.Time), true
}
