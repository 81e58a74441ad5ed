package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfuentes/cuentaclara/internal/engine"
	"github.com/mfuentes/cuentaclara/internal/model"
)

func TestFormatPesos(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "$0"},
		{999, "$999"},
		{1000, "$1.000"},
		{25_000, "$25.000"},
		{1_234_567, "$1.234.567"},
		{-45_000, "$-45.000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPesos(tt.amount))
	}
}

func TestRenderReport(t *testing.T) {
	result := &engine.Result{
		Balance: model.Balance{
			Confirmed:  25_000,
			Opaque:     75_000,
			Legitimate: 400_000,
			Total:      500_000,
		},
		Findings: []*model.Finding{
			{ID: "f1", Category: model.CategoryConfirmed, Amount: 25_000, Label: "Duplicated fee"},
			{ID: "f2", Category: model.CategoryOpaque, Amount: 75_000, Label: "Unexplained charge"},
		},
		Alerts: []string{"ALERTA_BALANCE: opaque bucket capped"},
	}

	out := RenderReport(result)

	assert.Contains(t, out, "Forensic copayment audit")
	assert.Contains(t, out, "$25.000")
	assert.Contains(t, out, "Duplicated fee")
	assert.Contains(t, out, "ALERTA_BALANCE")
	assert.Contains(t, out, "mixed confirmed-and-opaque copayment")
}
