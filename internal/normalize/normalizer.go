// Package normalize reclassifies, deduplicates and nets audit findings so
// that no underlying amount is counted twice before balance resolution.
package normalize

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/mfuentes/cuentaclara/internal/model"
)

// closingRulePattern matches the statutory citations upstream stages use as
// a "closing rule" for charges that cannot be resolved: the patient-rights
// statute (Ley 20.584) and the consumer-protection statute (Ley 19.496).
// A rationale citing either is authoritative evidence that the stage itself
// concluded the charge is indeterminate, so the category must follow.
var closingRulePattern = regexp.MustCompile(`(?i)ley\s*(n[°º]?\s*)?(20\.?584|19\.?496)|regla\s+de\s+cierre`)

// aggregateLabelPattern marks labels that claim an entire cost pool rather
// than a specific line item.
var aggregateLabelPattern = regexp.MustCompile(`(?i)\b(todos?|totales?|global|conjunto|all|aggregate|entire)\b`)

// Normalizer applies the categorical override, deduplication and
// macro-vs-micro netting passes. Stateless; safe to reuse across audits.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// NetAndReclassify returns a normalized finding list. Finding pointers from
// the input may be reused, with categories, amounts and labels updated in
// place. The transform is idempotent: a second pass over its own output is a
// no-op. It never fails; unresolvable overlaps degrade to no netting, which
// the balance resolver surfaces as a capping alert downstream.
func (n *Normalizer) NetAndReclassify(findings []*model.Finding) []*model.Finding {
	out := make([]*model.Finding, 0, len(findings))
	for _, f := range findings {
		if f == nil {
			continue
		}
		f.Sanitize()
		out = append(out, f)
	}

	n.applyOverrides(out)
	out = n.deduplicate(out)
	n.netMacros(out)
	return out
}

// applyOverrides forces Opaque-Indeterminate on findings whose rationale
// carries a statutory closing-rule citation, regardless of the category the
// upstream stage assigned.
func (n *Normalizer) applyOverrides(findings []*model.Finding) {
	for _, f := range findings {
		if f.Category == model.CategoryOpaque {
			continue
		}
		if closingRulePattern.MatchString(f.Rationale) {
			slog.Debug("closing-rule override",
				"finding", f.ID,
				"from", string(f.Category))
			f.Category = model.CategoryOpaque
		}
	}
}

// deduplicate collapses findings that report the same underlying fact:
// identical amount plus overlapping evidence references. The survivor is the
// one with richer evidence, preferring reconstructed provenance.
func (n *Normalizer) deduplicate(findings []*model.Finding) []*model.Finding {
	out := make([]*model.Finding, 0, len(findings))
	for _, f := range findings {
		replaced := false
		duplicate := false
		for i, kept := range out {
			if !sameFact(kept, f) {
				continue
			}
			duplicate = true
			if richer(f, kept) {
				out[i] = f
				replaced = true
			}
			break
		}
		if !duplicate {
			out = append(out, f)
		} else if !replaced {
			slog.Debug("dropped duplicate finding", "finding", f.ID)
		}
	}
	return out
}

// sameFact reports whether two findings describe the same underlying amount
// reported twice by independent passes.
func sameFact(a, b *model.Finding) bool {
	if a.Amount != b.Amount || a.Amount == 0 {
		return false
	}
	return evidenceOverlaps(a, b)
}

func evidenceOverlaps(a, b *model.Finding) bool {
	ai, bi := a.ItemIndexes(), b.ItemIndexes()
	if len(ai) == 0 || len(bi) == 0 {
		// No item-level evidence on one side: fall back to label identity.
		return strings.EqualFold(strings.TrimSpace(a.Label), strings.TrimSpace(b.Label))
	}
	for idx := range ai {
		if bi[idx] {
			return true
		}
	}
	return false
}

// richer prefers a over b when a carries reconstructed provenance or more
// evidence references.
func richer(a, b *model.Finding) bool {
	ar, br := a.HasMarker(model.MarkerReconstructed), b.HasMarker(model.MarkerReconstructed)
	if ar != br {
		return ar
	}
	return len(a.Evidence) > len(b.Evidence)
}

// netMacros subtracts, from every macro finding, the amounts of the micro
// findings it subsumes, floored at zero. Already-netted macros (label carries
// the net marker) are skipped, which keeps the pass idempotent.
func (n *Normalizer) netMacros(findings []*model.Finding) {
	// Deterministic order: largest macro first.
	macros := make([]*model.Finding, 0)
	for _, f := range findings {
		if IsMacro(f) {
			macros = append(macros, f)
		}
	}
	sort.SliceStable(macros, func(i, j int) bool {
		return macros[i].Amount > macros[j].Amount
	})

	for _, macro := range macros {
		if macro.HasMarker(model.MarkerNetRemainder) {
			continue
		}
		var netted int64
		for _, micro := range findings {
			if micro == macro || IsMacro(micro) {
				continue
			}
			if Subsumes(macro, micro) {
				netted += micro.Amount
			}
		}
		if netted == 0 {
			continue
		}
		before := macro.Amount
		macro.Amount -= netted
		if macro.Amount < 0 {
			macro.Amount = 0
		}
		macro.AddMarker(model.MarkerNetRemainder)
		slog.Debug("netted macro finding",
			"finding", macro.ID,
			"before", before,
			"after", macro.Amount)
	}
}

// IsMacro reports whether a finding is a global/aggregate claim about an
// entire cost pool: it cites section-level evidence, or cites no line items
// at all while its label uses aggregate language.
func IsMacro(f *model.Finding) bool {
	for _, ref := range f.Evidence {
		if ref.IsSectionScope() {
			return true
		}
	}
	if len(f.Evidence) == 0 && aggregateLabelPattern.MatchString(f.Label) {
		return true
	}
	return false
}

// Subsumes reports whether the macro finding's claim wholly contains the
// micro finding's amount. The predicate, in order: the macro's item-level
// evidence is a superset of the micro's; or the macro's section-level
// evidence covers the micro's cited section or label; or one label textually
// contains the other.
func Subsumes(macro, micro *model.Finding) bool {
	mi := micro.ItemIndexes()
	ma := macro.ItemIndexes()
	if len(mi) > 0 && len(ma) > 0 {
		// Both cite line items: the evidence is decisive either way.
		for idx := range mi {
			if !ma[idx] {
				return false
			}
		}
		return true
	}

	for _, ref := range macro.Evidence {
		if !ref.IsSectionScope() || ref.Section == "" {
			continue
		}
		section := strings.ToLower(ref.Section)
		for _, mref := range micro.Evidence {
			if strings.Contains(strings.ToLower(mref.Section), section) {
				return true
			}
		}
		if strings.Contains(strings.ToLower(micro.Label), section) {
			return true
		}
	}

	return labelContains(macro.Label, micro.Label) || labelContains(micro.Label, macro.Label)
}

// labelContains is a case-insensitive containment check guarded against
// trivially short labels.
func labelContains(haystack, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if len(needle) < 4 {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), needle)
}
