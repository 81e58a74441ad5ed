package model

import "strings"

// FindingCategory classifies how certain we are that an amount is improper.
type FindingCategory string

// Finding category constants. The four-way balance partition maps
// Confirmed-Improper to A, Controversial to B, Opaque-Indeterminate to Z;
// Informational findings carry no amount into the balance.
const (
	CategoryConfirmed     FindingCategory = "CONFIRMED_IMPROPER"
	CategoryControversial FindingCategory = "CONTROVERSIAL"
	CategoryOpaque        FindingCategory = "OPAQUE_INDETERMINATE"
	CategoryInformational FindingCategory = "INFORMATIONAL"
)

// ParseCategory maps a free-form upstream category string to a
// FindingCategory. Unknown values default to Opaque-Indeterminate: when we
// cannot tell what an upstream stage meant, the amount is by definition
// unresolved.
func ParseCategory(s string) FindingCategory {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONFIRMED_IMPROPER", "CONFIRMED", "A", "IRREGULARIDAD_CONFIRMADA", "COBRO_IMPROCEDENTE":
		return CategoryConfirmed
	case "CONTROVERSIAL", "UNDER_REVIEW", "B", "CONTROVERTIDO", "EN_REVISION":
		return CategoryControversial
	case "OPAQUE_INDETERMINATE", "OPAQUE", "Z", "OPACO", "INDETERMINADO":
		return CategoryOpaque
	case "INFORMATIONAL", "INFO", "INFORMATIVO":
		return CategoryInformational
	default:
		return CategoryOpaque
	}
}

// FindingAction is the directive attached to a finding.
type FindingAction string

// Finding action constants.
const (
	ActionDispute FindingAction = "DISPUTE"
	ActionClarify FindingAction = "REQUEST_CLARIFICATION"
)

// ParseAction maps a free-form action string to a FindingAction, defaulting
// to requesting clarification.
func ParseAction(s string) FindingAction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DISPUTE", "IMPUGNAR", "OBJETAR":
		return ActionDispute
	default:
		return ActionClarify
	}
}

// Evidence sources.
const (
	SourceBill = "bill"
	SourcePAM  = "pam"
)

// SectionScope marks an EvidenceRef that covers an entire bill section
// rather than a single line item.
const SectionScope = -1

// EvidenceRef points at a line item (or a whole section) backing a finding.
type EvidenceRef struct {
	Source    string `json:"source"`
	Section   string `json:"section,omitempty"`
	Detail    string `json:"detail,omitempty"`
	ItemIndex int    `json:"item_index"`
}

// IsSectionScope reports whether the reference covers a whole section.
func (e EvidenceRef) IsSectionScope() bool {
	return e.ItemIndex == SectionScope
}

// Label markers appended during the pipeline. Presence of a marker is also
// how the normalizer stays idempotent: an already-annotated finding is never
// netted or promoted twice.
const (
	MarkerReconstructed = "(Reconstructed)"
	MarkerNetRemainder  = "(Net / Remainder)"
)

// Finding is a candidate irregularity produced by an upstream audit pass.
// Findings from heterogeneous sources may describe overlapping amounts; the
// normalizer resolves that, so overlap is expected input, not an error.
type Finding struct {
	ID           string          `json:"id"`
	Category     FindingCategory `json:"category"`
	Label        string          `json:"label"`
	Rationale    string          `json:"rationale,omitempty"`
	Action       FindingAction   `json:"action"`
	HypothesisID string          `json:"hypothesis_id,omitempty"`
	Evidence     []EvidenceRef   `json:"evidence,omitempty"`
	Amount       int64           `json:"amount"`
}

// Sanitize coerces a malformed finding into the defensive defaults the core
// requires: negative amounts become zero and empty categories become opaque.
func (f *Finding) Sanitize() {
	if f.Amount < 0 {
		f.Amount = 0
	}
	if f.Category == "" {
		f.Category = CategoryOpaque
	}
	if f.Action == "" {
		f.Action = ActionClarify
	}
}

// HasMarker reports whether the finding's label already carries the given
// pipeline marker.
func (f *Finding) HasMarker(marker string) bool {
	return strings.Contains(f.Label, marker)
}

// AddMarker appends a pipeline marker to the label if not already present.
func (f *Finding) AddMarker(marker string) {
	if !f.HasMarker(marker) {
		f.Label = strings.TrimSpace(f.Label) + " " + marker
	}
}

// ItemIndexes returns the set of line-item indexes cited by the finding's
// evidence, excluding section-scope references.
func (f *Finding) ItemIndexes() map[int]bool {
	indexes := make(map[int]bool)
	for _, ref := range f.Evidence {
		if !ref.IsSectionScope() {
			indexes[ref.ItemIndex] = true
		}
	}
	return indexes
}
