package balance

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfuentes/cuentaclara/internal/model"
)

func finding(category model.FindingCategory, amount int64) *model.Finding {
	return &model.Finding{ID: fmt.Sprintf("%s-%d", category, amount), Category: category, Amount: amount, Label: "f"}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		findings   []*model.Finding
		want       model.Balance
		wantAlerts int
	}{
		{
			name:  "no overflow",
			total: 100_000,
			findings: []*model.Finding{
				finding(model.CategoryConfirmed, 20_000),
				finding(model.CategoryOpaque, 50_000),
				finding(model.CategoryControversial, 10_000),
			},
			want: model.Balance{Confirmed: 20_000, Controversial: 10_000, Opaque: 50_000, Legitimate: 20_000, Total: 100_000},
		},
		{
			name:  "opaque capped on overflow",
			total: 100_000,
			findings: []*model.Finding{
				finding(model.CategoryConfirmed, 20_000),
				finding(model.CategoryOpaque, 150_000),
			},
			want:       model.Balance{Confirmed: 20_000, Controversial: 0, Opaque: 80_000, Legitimate: 0, Total: 100_000},
			wantAlerts: 1,
		},
		{
			name:  "controversial capped after opaque drained",
			total: 100_000,
			findings: []*model.Finding{
				finding(model.CategoryConfirmed, 60_000),
				finding(model.CategoryControversial, 70_000),
				finding(model.CategoryOpaque, 30_000),
			},
			want:       model.Balance{Confirmed: 60_000, Controversial: 40_000, Opaque: 0, Legitimate: 0, Total: 100_000},
			wantAlerts: 2,
		},
		{
			name:     "empty findings are a clean result",
			total:    50_000,
			findings: nil,
			want:     model.Balance{Legitimate: 50_000, Total: 50_000},
		},
		{
			name:     "zero total with no findings",
			total:    0,
			findings: nil,
			want:     model.Balance{},
		},
		{
			name:  "informational findings carry no amount",
			total: 10_000,
			findings: []*model.Finding{
				finding(model.CategoryInformational, 9_999),
			},
			want: model.Balance{Legitimate: 10_000, Total: 10_000},
		},
		{
			name:  "negative amounts sanitized to zero",
			total: 10_000,
			findings: []*model.Finding{
				finding(model.CategoryConfirmed, -5_000),
			},
			want: model.Balance{Legitimate: 10_000, Total: 10_000},
		},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, alerts := r.Resolve(tt.total, tt.findings)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Balanced())
			assert.Len(t, alerts, tt.wantAlerts)
			for _, alert := range alerts {
				assert.True(t, strings.HasPrefix(alert, AlertPrefix))
			}
		})
	}
}

func TestResolveOpacityPercent(t *testing.T) {
	r := New()
	got, alerts := r.Resolve(100_000, []*model.Finding{
		finding(model.CategoryConfirmed, 20_000),
		finding(model.CategoryOpaque, 150_000),
	})

	require.Len(t, alerts, 1)
	assert.InDelta(t, 80.0, got.OpacityPercent(), 0.001)
}

func TestResolveConfirmedNeverReduced(t *testing.T) {
	r := New()
	got, alerts := r.Resolve(100_000, []*model.Finding{
		finding(model.CategoryConfirmed, 130_000),
		finding(model.CategoryControversial, 20_000),
		finding(model.CategoryOpaque, 40_000),
	})

	assert.Equal(t, int64(130_000), got.Confirmed)
	assert.Equal(t, int64(0), got.Controversial)
	assert.Equal(t, int64(0), got.Opaque)
	assert.Equal(t, int64(0), got.Legitimate)
	assert.NotEmpty(t, alerts)
	assert.False(t, got.Balanced(), "pathological case is surfaced, not erased")
}

func TestResolveNegativeTotal(t *testing.T) {
	r := New()
	got, alerts := r.Resolve(-500, nil)
	assert.Equal(t, int64(0), got.Total)
	assert.NotEmpty(t, alerts)
}

func TestResolveInvariantProperty(t *testing.T) {
	r := New()
	rng := rand.New(rand.NewSource(42))

	categories := []model.FindingCategory{
		model.CategoryConfirmed,
		model.CategoryControversial,
		model.CategoryOpaque,
		model.CategoryInformational,
	}

	for i := 0; i < 500; i++ {
		total := rng.Int63n(1_000_000)
		var findings []*model.Finding
		var confirmed int64
		for j := 0; j < rng.Intn(10); j++ {
			category := categories[rng.Intn(len(categories))]
			amount := rng.Int63n(400_000) - 20_000 // occasionally negative
			if category == model.CategoryConfirmed && amount > 0 {
				confirmed += amount
			}
			findings = append(findings, finding(category, amount))
		}

		got, _ := r.Resolve(total, findings)

		assert.Equal(t, confirmed, got.Confirmed, "confirmed bucket is never reduced")
		assert.GreaterOrEqual(t, got.Controversial, int64(0))
		assert.GreaterOrEqual(t, got.Opaque, int64(0))
		assert.GreaterOrEqual(t, got.Legitimate, int64(0))
		if confirmed <= total {
			assert.Equal(t, total, got.Sum(), "buckets sum exactly to the declared total")
		}
	}
}
