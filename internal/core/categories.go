package core

import "strings"

// Uncategorized is returned when no keyword matches.
const Uncategorized = "Uncategorized"

const (
	CategoryGroceries     = "Groceries"
	CategoryDining        = "Dining"
	CategoryTransport     = "Transport"
	CategoryRent          = "Rent"
	CategoryUtilities     = "Utilities"
	CategoryEntertainment = "Entertainment"
	CategoryHealth        = "Health"
	CategoryShopping      = "Shopping"
	CategorySubscriptions = "Subscriptions"
	CategoryEducation     = "Education"
	CategoryInsurance     = "Insurance"
	CategoryTaxes         = "Taxes"
	CategoryTransfers     = "Transfers"
)

// CategoryKeywords pairs a category label with the lowercase substrings that
// select it.
type CategoryKeywords struct {
	Category string
	Keywords []string
}

// KeywordTable is an ordered category lookup. Order is priority: the first
// category with a matching keyword wins. A table is immutable once built and
// safe to share between goroutines.
type KeywordTable struct {
	entries []CategoryKeywords
}

// NewKeywordTable copies entries into a new table, lowercasing every keyword.
// Entries with an empty category are dropped.
func NewKeywordTable(entries []CategoryKeywords) *KeywordTable {
	t := &KeywordTable{entries: make([]CategoryKeywords, 0, len(entries))}
	for _, e := range entries {
		if strings.TrimSpace(e.Category) == "" {
			continue
		}
		kws := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		t.entries = append(t.entries, CategoryKeywords{Category: e.Category, Keywords: kws})
	}
	return t
}

// DefaultKeywordTable returns the built-in category table.
func DefaultKeywordTable() *KeywordTable {
	return NewKeywordTable([]CategoryKeywords{
		{CategoryGroceries, []string{"grocery", "groceries", "super", "mart", "bigbasket"}},
		{CategoryDining, []string{"restaurant", "dine", "cafe", "coffee", "dominos", "mc", "kfc", "pizza"}},
		{CategoryTransport, []string{"uber", "ola", "taxi", "train", "bus", "metro", "petrol"}},
		{CategoryRent, []string{"rent", "landlord", "housing"}},
		{CategoryUtilities, []string{"electric", "water", "bill", "gas", "utility"}},
		{CategoryEntertainment, []string{"netflix", "prime", "movie", "theater", "spotify"}},
		{CategoryHealth, []string{"pharm", "clinic", "hospital", "dental", "doctor"}},
		{CategoryShopping, []string{"amazon", "flipkart", "myntra", "store"}},
		{CategorySubscriptions, []string{"subscription", "membership"}},
		{CategoryEducation, []string{"college", "university", "course", "udemy", "coursera"}},
		{CategoryInsurance, []string{"insurance", "premium"}},
		{CategoryTaxes, []string{"tax", "gst"}},
		{CategoryTransfers, []string{"transfer", "neft", "imps", "rtgs", "upi", "paytm", "phonepe"}},
	})
}

// Categorize returns the first category whose keywords occur in text as a
// substring, or Uncategorized.
func (t *KeywordTable) Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, e := range t.entries {
		for _, k := range e.Keywords {
			if strings.Contains(lower, k) {
				return e.Category
			}
		}
	}
	return Uncategorized
}

// Categories lists the table's categories in priority order, followed by
// Uncategorized.
func (t *KeywordTable) Categories() []string {
	out := make([]string, 0, len(t.entries)+1)
	for _, e := range t.entries {
		out = append(out, e.Category)
	}
	return append(out, Uncategorized)
}

// IsValidCategory reports whether name is one of Categories().
func (t *KeywordTable) IsValidCategory(name string) bool {
	for _, c := range t.Categories() {
		if c == name {
			return true
		}
	}
	return false
}
