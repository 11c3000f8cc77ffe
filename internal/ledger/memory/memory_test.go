package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/core"
)

func tx(day int, desc, cat string, cents int64, typ core.TransactionType) core.Transaction {
	return core.Transaction{
		Date:        core.NewDate(2024, 6, day),
		Description: desc,
		Category:    cat,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
	}
}

func TestStoreAppendAndGet(t *testing.T) {
	fixed := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return fixed })
	ctx := context.Background()

	got, err := s.Append(ctx, tx(9, "groceries", core.CategoryGroceries, 50000, core.Expense))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, fixed, got.CreatedAt)

	loaded, err := s.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got, loaded)

	_, err = s.Get(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreAppendRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.Append(context.Background(), tx(9, "x", "", 100, core.Expense))
	assert.ErrorIs(t, err, core.ErrEmptyCategory)

	list, _ := s.List(context.Background())
	assert.Empty(t, list)
}

func TestStoreListNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, d := range []int{3, 9, 5, 9} {
		_, err := s.Append(ctx, tx(d, "x", core.Uncategorized, 100, core.Expense))
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	var ids []int64
	for _, item := range list {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []int64{4, 2, 3, 1}, ids)
}

func TestStoreSummaryAndReset(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, in := range []core.Transaction{
		tx(1, "salary", core.Uncategorized, 1_000_000, core.Income),
		tx(2, "rent", core.CategoryRent, 300_000, core.Expense),
		tx(3, "pizza", core.CategoryDining, 50_000, core.Expense),
		tx(4, "coffee", core.CategoryDining, 25_000, core.Expense),
	} {
		_, err := s.Append(ctx, in)
		require.NoError(t, err)
	}

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), sum.TotalIncome.Cents)
	assert.Equal(t, int64(375_000), sum.TotalExpense.Cents)
	assert.Equal(t, int64(625_000), sum.NetSavings.Cents)
	assert.Equal(t, []core.CategoryAmount{
		{Name: core.CategoryRent, Amount: core.Money{Cents: 300_000}},
		{Name: core.CategoryDining, Amount: core.Money{Cents: 75_000}},
	}, sum.ExpenseByCategory)
	assert.Equal(t, 4, sum.Count)

	require.NoError(t, s.Reset(ctx))
	sum, err = s.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Count)

	next, err := s.Append(ctx, tx(5, "x", core.Uncategorized, 1, core.Expense))
	require.NoError(t, err)
	assert.Equal(t, int64(5), next.ID)
}

func TestStoreConcurrentAppend(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Append(ctx, tx(1, "x", core.Uncategorized, 1, core.Expense))
		}()
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 50)
}
