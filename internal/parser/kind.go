package parser

import (
	"strings"

	"kharcha/internal/core"
)

var incomeKeywords = []string{"salary", "credited", "income", "earned", "received", "got"}

// ClassifyType labels text as Income when it mentions one of the income
// keywords as a substring and as Expense otherwise.
func ClassifyType(text string) core.TransactionType {
	lower := strings.ToLower(text)
	for _, k := range incomeKeywords {
		if strings.Contains(lower, k) {
			return core.Income
		}
	}
	return core.Expense
}
