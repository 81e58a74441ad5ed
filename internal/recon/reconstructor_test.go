package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfuentes/cuentaclara/internal/model"
)

func accountFromTotals(totals ...int64) *model.ExtractedAccount {
	items := make([]model.BillingItem, len(totals))
	for i, total := range totals {
		items[i] = model.BillingItem{Index: i, Description: "item", Total: total}
	}
	return &model.ExtractedAccount{
		Sections: []model.Section{{Category: "INSUMOS", Items: items}},
	}
}

func matchedTotal(result model.ReconstructionResult) int64 {
	var sum int64
	for _, item := range result.Matched {
		sum += item.Total
	}
	return sum
}

func TestFindMatches(t *testing.T) {
	tests := []struct {
		name        string
		totals      []int64
		target      int64
		wantSuccess bool
		wantSum     int64
	}{
		{
			name:        "four equal items compose the target",
			totals:      []int64{12839, 12839, 12839, 12839, 5000},
			target:      51356,
			wantSuccess: true,
			wantSum:     51356,
		},
		{
			name:        "no subset reaches the target",
			totals:      []int64{12839, 12839, 12839, 12839, 5000},
			target:      66752,
			wantSuccess: false,
		},
		{
			name:        "zero target succeeds trivially",
			totals:      []int64{100, 200},
			target:      0,
			wantSuccess: true,
			wantSum:     0,
		},
		{
			name:        "negative target succeeds trivially",
			totals:      []int64{100},
			target:      -5,
			wantSuccess: true,
			wantSum:     0,
		},
		{
			name:        "empty pool fails for positive target",
			totals:      nil,
			target:      1000,
			wantSuccess: false,
		},
		{
			name:        "near match within tolerance",
			totals:      []int64{4999, 3000},
			target:      5000,
			wantSuccess: true,
			wantSum:     4999,
		},
		{
			name:        "off by more than tolerance fails",
			totals:      []int64{4996},
			target:      5000,
			wantSuccess: false,
		},
		{
			name:        "single item exact",
			totals:      []int64{7500, 200, 90},
			target:      7500,
			wantSuccess: true,
			wantSum:     7500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(accountFromTotals(tt.totals...))
			result := r.FindMatches(tt.target, "")

			assert.Equal(t, tt.wantSuccess, result.Success)
			if tt.wantSuccess {
				assert.Equal(t, tt.wantSum, matchedTotal(result))
				assert.LessOrEqual(t, result.Unmatched, Tolerance)
			} else {
				assert.Equal(t, tt.target, result.Unmatched)
				assert.Empty(t, result.Matched)
			}
		})
	}
}

func TestFindMatchesConsumesItems(t *testing.T) {
	r := New(accountFromTotals(12839, 12839, 12839, 12839, 5000))

	first := r.FindMatches(51356, "")
	require.True(t, first.Success)
	require.Len(t, first.Matched, 4)
	assert.Equal(t, 1, r.AvailableCount())

	// The four 12839 items are consumed; only the 5000 item remains.
	second := r.FindMatches(12839, "")
	assert.False(t, second.Success)

	third := r.FindMatches(5000, "")
	require.True(t, third.Success)
	assert.Equal(t, int64(5000), matchedTotal(third))
	assert.Equal(t, 0, r.AvailableCount())
}

func TestFindMatchesFailureLeavesPoolUntouched(t *testing.T) {
	r := New(accountFromTotals(100, 200, 300))

	failed := r.FindMatches(999, "")
	require.False(t, failed.Success)
	assert.Equal(t, 3, r.AvailableCount())

	ok := r.FindMatches(600, "")
	require.True(t, ok.Success)
	assert.Len(t, ok.Matched, 3)
}

func TestFindMatchesCategoryHint(t *testing.T) {
	account := &model.ExtractedAccount{
		Sections: []model.Section{
			{Category: "MEDICAMENTOS", Items: []model.BillingItem{
				{Index: 0, Total: 1000},
				{Index: 1, Total: 2000},
			}},
			{Category: "INSUMOS", Items: []model.BillingItem{
				{Index: 2, Total: 3000},
			}},
		},
	}

	r := New(account)
	result := r.FindMatches(3000, "medicamentos")
	require.True(t, result.Success)
	// The hinted pool can compose 3000 from its own items, so the
	// out-of-section 3000 item is left alone.
	for _, item := range result.Matched {
		assert.Equal(t, "MEDICAMENTOS", item.Section)
	}
}

func TestFindMatchesHintFallsBackToFullPool(t *testing.T) {
	account := &model.ExtractedAccount{
		Sections: []model.Section{
			{Category: "MEDICAMENTOS", Items: []model.BillingItem{{Index: 0, Total: 1000}}},
			{Category: "INSUMOS", Items: []model.BillingItem{{Index: 1, Total: 3000}}},
		},
	}

	r := New(account)
	result := r.FindMatches(3000, "medicamentos")
	require.True(t, result.Success)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, 1, result.Matched[0].Index)
}

func TestFindMatchesNodeBudgetExhaustion(t *testing.T) {
	// Every subset sums to a multiple of 8000, and the target sits 4 pesos
	// off the nearest multiple, beyond tolerance. Proving that exhaustively
	// needs ~2^40 nodes; the budget must stop the search cleanly instead.
	totals := make([]int64, 40)
	for i := range totals {
		totals[i] = 8000
	}
	r := NewWithConfig(accountFromTotals(totals...), Config{NodeBudget: 500})

	result := r.FindMatches(100_004, "")
	assert.False(t, result.Success)
	assert.Equal(t, int64(100_004), result.Unmatched)
	assert.Equal(t, 40, r.AvailableCount())
}

func TestFindMatchesSkipsNonPositiveItems(t *testing.T) {
	account := accountFromTotals(0, -500, 1000)
	r := New(account)
	assert.Equal(t, 1, r.AvailableCount())

	result := r.FindMatches(1000, "")
	require.True(t, result.Success)
	assert.Len(t, result.Matched, 1)
}

func TestFindMatchesDuplicateValuesAcceptAnySubset(t *testing.T) {
	r := New(accountFromTotals(500, 500, 500))
	result := r.FindMatches(1000, "")
	require.True(t, result.Success)
	assert.Len(t, result.Matched, 2)
	assert.Equal(t, int64(1000), matchedTotal(result))
}
