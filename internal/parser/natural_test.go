package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/core"
)

func TestNaturalDateParser(t *testing.T) {
	today := core.NewDate(2024, 6, 10)

	t.Run("absolute date", func(t *testing.T) {
		got, ok := NaturalDateParser{}.ParseDate("12 January 2024", today)
		require.True(t, ok)
		assert.Equal(t, "2024-01-12", got.String())
	})

	t.Run("numeric dates are day first", func(t *testing.T) {
		for in, want := range map[string]string{
			"05/12/2024": "2024-12-05",
			"07-03-2024": "2024-03-07",
		} {
			got, ok := NaturalDateParser{}.ParseDate(in, today)
			require.True(t, ok, in)
			assert.Equal(t, want, got.String(), in)
		}
	})

	t.Run("agrees with the numeric fallback whatever surrounds the date", func(t *testing.T) {
		p := New(nil)
		ref := today.Time
		for in, want := range map[string]string{
			"on 05/12/2024":          "2024-12-05",
			"paid 300 on 05/12/2024": "2024-12-05",
			"07-03-2024":             "2024-03-07",
			"rent 07-03-2024":        "2024-03-07",
		} {
			assert.Equal(t, want, p.ParseAt(in, ref).Date.String(), in)
		}
	})

	t.Run("blank", func(t *testing.T) {
		_, ok := NaturalDateParser{}.ParseDate("   ", today)
		assert.False(t, ok)
	})
}
