// Package rules implements the declarative rule-based forensic auditor over
// clinically classified bill items.
package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mfuentes/cuentaclara/internal/model"
)

// Context is the derived boolean context the rules consult, built once per
// audit by scanning the classified items for aggregate charge types.
type Context struct {
	DuplicateCounts     map[string]int
	HasDayBedCharge     bool
	HasOperatingRoomFee bool
	HasWardPackage      bool
}

// Stats summarizes a rule audit pass.
type Stats struct {
	ItemsScanned int
	RulesFired   int
}

// Report is the output of one rule audit pass.
type Report struct {
	Context  Context
	Findings []*model.Finding
	Stats    Stats
}

// Rule is one declarative when/then check. All rules whose When matches an
// item fire for that item; every violation is reported, not just the first.
type Rule struct {
	When        func(item model.ClassifiedItem, ctx Context) bool
	Then        func(item model.ClassifiedItem, ctx Context) *model.Finding
	ID          string
	Description string
}

// Auditor applies an ordered rule list to classified items.
type Auditor struct {
	rules []Rule
}

// New creates an auditor with the default rule set.
func New() *Auditor {
	return NewWithRules(DefaultRules())
}

// NewWithRules creates an auditor with a custom rule list.
func NewWithRules(rules []Rule) *Auditor {
	return &Auditor{rules: rules}
}

// PerformAudit builds the derived context and evaluates every rule against
// every classified item.
func (a *Auditor) PerformAudit(items []model.ClassifiedItem) Report {
	ctx := BuildContext(items)
	report := Report{
		Context:  ctx,
		Findings: []*model.Finding{},
		Stats:    Stats{ItemsScanned: len(items)},
	}

	for _, item := range items {
		for _, rule := range a.rules {
			if !rule.When(item, ctx) {
				continue
			}
			finding := rule.Then(item, ctx)
			if finding == nil {
				continue
			}
			finding.Sanitize()
			report.Findings = append(report.Findings, finding)
			report.Stats.RulesFired++
		}
	}

	slog.Debug("rule audit complete",
		"items", report.Stats.ItemsScanned,
		"fired", report.Stats.RulesFired)

	return report
}

// BuildContext scans the classified items for the aggregate charge types the
// rules depend on.
func BuildContext(items []model.ClassifiedItem) Context {
	ctx := Context{DuplicateCounts: make(map[string]int)}
	for _, ci := range items {
		switch {
		case isTaxonomy(ci, "DIA_CAMA", "day_bed"):
			ctx.HasDayBedCharge = true
		case isTaxonomy(ci, "DERECHO_PABELLON", "operating_room_fee"):
			ctx.HasOperatingRoomFee = true
		case isTaxonomy(ci, "PAQUETE_HOSPITALIZACION", "ward_package"):
			ctx.HasWardPackage = true
		}
		ctx.DuplicateCounts[duplicateKey(ci.Item)]++
	}
	return ctx
}

func duplicateKey(item model.BillingItem) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(item.Code), strings.ToLower(item.Description), item.Total)
}

func isTaxonomy(ci model.ClassifiedItem, names ...string) bool {
	taxonomy := strings.ToUpper(strings.TrimSpace(ci.Taxonomy))
	for _, name := range names {
		if taxonomy == strings.ToUpper(name) {
			return true
		}
	}
	return false
}

func billEvidence(item model.BillingItem) []model.EvidenceRef {
	return []model.EvidenceRef{{
		Source:    model.SourceBill,
		ItemIndex: item.Index,
		Section:   item.Section,
		Detail:    item.Description,
	}}
}

// DefaultRules returns the built-in forensic rule set, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "hotel-supply-unbundling",
			Description: "ward hotel supplies billed separately while a day-bed charge exists",
			When: func(item model.ClassifiedItem, ctx Context) bool {
				return ctx.HasDayBedCharge && isTaxonomy(item, "INSUMO_HOTELERO", "hotel_supply")
			},
			Then: func(item model.ClassifiedItem, _ Context) *model.Finding {
				return &model.Finding{
					ID:           fmt.Sprintf("hotel-supply-unbundling-%d", item.Item.Index),
					Category:     model.CategoryConfirmed,
					Amount:       item.Item.Total,
					Label:        fmt.Sprintf("Hotel supply billed outside day-bed: %s", item.Item.Description),
					Rationale:    "The day-bed charge bundles basic ward hotel supplies; billing them separately is unbundling.",
					Action:       model.ActionDispute,
					HypothesisID: "hotel-supply-unbundling",
					Evidence:     billEvidence(item.Item),
				}
			},
		},
		{
			ID:          "surgical-supply-unbundling",
			Description: "basic surgical supplies billed separately while an operating-room fee exists",
			When: func(item model.ClassifiedItem, ctx Context) bool {
				return ctx.HasOperatingRoomFee && isTaxonomy(item, "INSUMO_QUIRURGICO_BASICO", "basic_surgical_supply")
			},
			Then: func(item model.ClassifiedItem, _ Context) *model.Finding {
				return &model.Finding{
					ID:           fmt.Sprintf("surgical-supply-unbundling-%d", item.Item.Index),
					Category:     model.CategoryConfirmed,
					Amount:       item.Item.Total,
					Label:        fmt.Sprintf("Basic surgical supply billed outside operating-room fee: %s", item.Item.Description),
					Rationale:    "The operating-room fee bundles basic surgical supplies; a separate line duplicates the charge.",
					Action:       model.ActionDispute,
					HypothesisID: "surgical-supply-unbundling",
					Evidence:     billEvidence(item.Item),
				}
			},
		},
		{
			ID:          "day-bed-inside-package",
			Description: "a day-bed charge billed separately while a hospitalization package exists",
			When: func(item model.ClassifiedItem, ctx Context) bool {
				return ctx.HasWardPackage && isTaxonomy(item, "DIA_CAMA", "day_bed")
			},
			Then: func(item model.ClassifiedItem, _ Context) *model.Finding {
				return &model.Finding{
					ID:           fmt.Sprintf("day-bed-inside-package-%d", item.Item.Index),
					Category:     model.CategoryConfirmed,
					Amount:       item.Item.Total,
					Label:        fmt.Sprintf("Day-bed billed outside hospitalization package: %s", item.Item.Description),
					Rationale:    "The hospitalization package already bundles the stay; a separate day-bed line charges it twice.",
					Action:       model.ActionDispute,
					HypothesisID: "day-bed-inside-package",
					Evidence:     billEvidence(item.Item),
				}
			},
		},
		{
			ID:          "duplicated-fee",
			Description: "a one-per-stay fee appears more than once",
			When: func(item model.ClassifiedItem, ctx Context) bool {
				if !isTaxonomy(item, "DERECHO_PABELLON", "operating_room_fee", "DIA_CAMA", "day_bed") {
					return false
				}
				return ctx.DuplicateCounts[duplicateKey(item.Item)] > 1
			},
			Then: func(item model.ClassifiedItem, _ Context) *model.Finding {
				return &model.Finding{
					ID:           fmt.Sprintf("duplicated-fee-%d", item.Item.Index),
					Category:     model.CategoryControversial,
					Amount:       item.Item.Total,
					Label:        fmt.Sprintf("Repeated stay-level fee: %s", item.Item.Description),
					Rationale:    "Stay-level fees normally appear once; repeated lines need a clinical justification.",
					Action:       model.ActionClarify,
					HypothesisID: "duplicated-fee",
					Evidence:     billEvidence(item.Item),
				}
			},
		},
		{
			ID:          "unclassified-charge",
			Description: "item with no clinical taxonomy and a positive copayment",
			When: func(item model.ClassifiedItem, _ Context) bool {
				return strings.TrimSpace(item.Taxonomy) == "" && item.Item.Copayment > 0
			},
			Then: func(item model.ClassifiedItem, _ Context) *model.Finding {
				return &model.Finding{
					ID:           fmt.Sprintf("unclassified-charge-%d", item.Item.Index),
					Category:     model.CategoryOpaque,
					Amount:       item.Item.Copayment,
					Label:        fmt.Sprintf("Unclassifiable charge with copayment: %s", item.Item.Description),
					Rationale:    "The item could not be placed in any clinical category, so its copayment cannot be verified.",
					Action:       model.ActionClarify,
					HypothesisID: "unclassified-charge",
					Evidence:     billEvidence(item.Item),
				}
			},
		},
	}
}
