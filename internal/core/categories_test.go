package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeywordTableCategorize(t *testing.T) {
	table := DefaultKeywordTable()
	cases := []struct {
		text string
		want string
	}{
		{"Bought stuff at the supermarket", CategoryGroceries},
		{"lunch at McDonald's", CategoryDining},
		{"UBER ride home", CategoryTransport},
		{"paid the landlord", CategoryRent},
		{"electricity bill", CategoryUtilities},
		{"netflix", CategoryEntertainment},
		{"pharmacy", CategoryHealth},
		{"flipkart order", CategoryShopping},
		{"gym membership", CategorySubscriptions},
		{"udemy", CategoryEducation},
		{"car insurance", CategoryInsurance},
		{"gst payment", CategoryTaxes},
		{"neft to mom", CategoryTransfers},
		{"random thing", Uncategorized},
		{"", Uncategorized},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, table.Categorize(tc.text), tc.text)
	}
}

func TestCategorizeFirstCategoryWins(t *testing.T) {
	table := DefaultKeywordTable()
	// "pizza" is Dining and "uber" is Transport; Dining comes first.
	assert.Equal(t, CategoryDining, table.Categorize("uber eats pizza"))
	// "super" (Groceries) precedes "prime" (Entertainment).
	assert.Equal(t, CategoryGroceries, table.Categorize("prime video on a super tv"))
}

func TestNewKeywordTableNormalizes(t *testing.T) {
	table := NewKeywordTable([]CategoryKeywords{
		{Category: "Pets", Keywords: []string{" Vet ", "", "KIBBLE"}},
		{Category: "", Keywords: []string{"ignored"}},
	})
	assert.Equal(t, "Pets", table.Categorize("the vet visit"))
	assert.Equal(t, "Pets", table.Categorize("kibble"))
	assert.Equal(t, Uncategorized, table.Categorize("ignored"))
	assert.Equal(t, []string{"Pets", Uncategorized}, table.Categories())
}

func TestCategoriesAndValidity(t *testing.T) {
	table := DefaultKeywordTable()
	cats := table.Categories()
	assert.Len(t, cats, 14)
	assert.Equal(t, CategoryGroceries, cats[0])
	assert.Equal(t, Uncategorized, cats[len(cats)-1])
	assert.True(t, table.IsValidCategory(CategoryTaxes))
	assert.True(t, table.IsValidCategory(Uncategorized))
	assert.False(t, table.IsValidCategory("Pets"))
}
