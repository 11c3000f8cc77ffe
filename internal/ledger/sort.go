package ledger

import (
	"sort"

	"kharcha/internal/core"
)

// SortNewestFirst orders by date descending, breaking ties by ID descending
// so that later inserts on the same day come first.
func SortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.After(txs[j].Date.Time)
		}
		return txs[i].ID > txs[j].ID
	})
}
