package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input string
		want  FindingCategory
	}{
		{"CONFIRMED_IMPROPER", CategoryConfirmed},
		{"cobro_improcedente", CategoryConfirmed},
		{"a", CategoryConfirmed},
		{"controvertido", CategoryControversial},
		{"en_revision", CategoryControversial},
		{"opaco", CategoryOpaque},
		{"  Z  ", CategoryOpaque},
		{"informativo", CategoryInformational},
		{"", CategoryOpaque},
		{"something-new", CategoryOpaque},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCategory(tt.input), "input %q", tt.input)
	}
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionDispute, ParseAction("impugnar"))
	assert.Equal(t, ActionDispute, ParseAction("DISPUTE"))
	assert.Equal(t, ActionClarify, ParseAction("aclarar"))
	assert.Equal(t, ActionClarify, ParseAction(""))
}

func TestFindingMarkers(t *testing.T) {
	f := &Finding{Label: "Unexplained charge"}

	assert.False(t, f.HasMarker(MarkerReconstructed))
	f.AddMarker(MarkerReconstructed)
	assert.True(t, f.HasMarker(MarkerReconstructed))

	before := f.Label
	f.AddMarker(MarkerReconstructed)
	assert.Equal(t, before, f.Label, "AddMarker must be idempotent")
}

func TestItemIndexes(t *testing.T) {
	f := &Finding{Evidence: []EvidenceRef{
		{ItemIndex: 2},
		{ItemIndex: 5},
		{ItemIndex: SectionScope, Section: "INSUMOS"},
	}}

	indexes := f.ItemIndexes()
	assert.Equal(t, map[int]bool{2: true, 5: true}, indexes)
}

func TestBalanceStateLabel(t *testing.T) {
	tests := []struct {
		name    string
		balance Balance
		want    string
	}{
		{"zero total", Balance{}, "no copayment declared"},
		{"mixed", Balance{Confirmed: 100, Opaque: 200, Total: 300}, "mixed confirmed-and-opaque copayment"},
		{"confirmed only", Balance{Confirmed: 100, Total: 100}, "confirmed improper charges present"},
		{"opaque only", Balance{Opaque: 100, Total: 100}, "opaque copayment, human review required"},
		{"clean", Balance{Legitimate: 100, Total: 100}, "clean copayment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.balance.StateLabel())
		})
	}
}

func TestBalanceInvariantHelpers(t *testing.T) {
	b := Balance{Confirmed: 100, Controversial: 200, Opaque: 300, Legitimate: 400, Total: 1000}
	assert.Equal(t, int64(1000), b.Sum())
	assert.True(t, b.Balanced())
	assert.InDelta(t, 30.0, b.OpacityPercent(), 0.001)

	b.Total = 900
	assert.False(t, b.Balanced())
}
