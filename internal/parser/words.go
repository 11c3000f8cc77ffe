package parser

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	smallNumbers = map[string]int64{
		"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
		"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
		"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
		"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	}

	// Scales that close a group. lakh and crore are the Indian-English units.
	scaleNumbers = map[string]int64{
		"thousand": 1_000,
		"lakh":     100_000,
		"lakhs":    100_000,
		"million":  1_000_000,
		"crore":    10_000_000,
		"crores":   10_000_000,
		"billion":  1_000_000_000,
	}
)

// wordsToNumber reads the number words in text and ignores everything else,
// so "spent five hundred on food" yields 500. It reports false when text
// holds no number word at all.
func wordsToNumber(text string) (decimal.Decimal, bool) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	var (
		total, group int64
		fraction     strings.Builder
		afterPoint   bool
		found        bool
	)
	for _, tok := range tokens {
		if afterPoint {
			if v, ok := smallNumbers[tok]; ok && v < 10 {
				fraction.WriteByte(byte('0' + v))
				continue
			}
			if fraction.Len() > 0 {
				break
			}
			continue
		}
		switch {
		case tok == "point":
			if found {
				afterPoint = true
			}
		case tok == "hundred":
			if group == 0 {
				group = 1
			}
			group *= 100
			found = true
		case scaleNumbers[tok] > 0:
			if group == 0 {
				group = 1
			}
			total += group * scaleNumbers[tok]
			group = 0
			found = true
		default:
			if v, ok := smallNumbers[tok]; ok {
				group += v
				found = true
			}
		}
	}
	if !found {
		return decimal.Decimal{}, false
	}

	value := decimal.NewFromInt(total + group)
	if fraction.Len() > 0 {
		frac, err := decimal.NewFromString("0." + fraction.String())
		if err == nil {
			value = value.Add(frac)
		}
	}
	return value, true
}
