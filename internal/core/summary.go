package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Summary holds the dashboard totals over all stored transactions.
type Summary struct {
	TotalIncome       Money
	TotalExpense      Money
	NetSavings        Money
	ExpenseByCategory []CategoryAmount
	Count             int
}

// Summarize aggregates transactions in memory. Storage backends with a query
// engine compute the same values in SQL.
func Summarize(txs []Transaction) Summary {
	var s Summary
	byCat := map[string]int64{}
	for _, t := range txs {
		s.Count++
		switch t.Type {
		case Income:
			s.TotalIncome.Cents += t.Amount.Cents
		case Expense:
			s.TotalExpense.Cents += t.Amount.Cents
			byCat[t.Category] += t.Amount.Cents
		}
	}
	s.NetSavings = Money{Cents: s.TotalIncome.Cents - s.TotalExpense.Cents}
	for name, cents := range byCat {
		s.ExpenseByCategory = append(s.ExpenseByCategory, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	SortCategoryAmounts(s.ExpenseByCategory)
	return s
}

// SortCategoryAmounts orders by amount descending, then name.
func SortCategoryAmounts(list []CategoryAmount) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Amount.Cents != list[j].Amount.Cents {
			return list[i].Amount.Cents > list[j].Amount.Cents
		}
		return list[i].Name < list[j].Name
	})
}
