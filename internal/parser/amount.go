package parser

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ExtractAmount returns the first number in text. When the text has no
// digits it falls back to reading spelled-out number words ("five hundred").
// An invalid result means the amount is unknown; it is never zero by default.
func ExtractAmount(text string) decimal.NullDecimal {
	if m := numberRe.FindString(text); m != "" {
		if d, err := decimal.NewFromString(m); err == nil {
			return decimal.NewNullDecimal(d)
		}
	}
	if d, ok := wordsToNumber(text); ok {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}
