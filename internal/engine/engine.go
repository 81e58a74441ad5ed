// Package engine orchestrates the forensic reconciliation pipeline:
// reconstruction of opaque lump sums, finding normalization and balance
// resolution, in that fixed order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mfuentes/cuentaclara/internal/balance"
	"github.com/mfuentes/cuentaclara/internal/fx"
	"github.com/mfuentes/cuentaclara/internal/model"
	"github.com/mfuentes/cuentaclara/internal/normalize"
	"github.com/mfuentes/cuentaclara/internal/recon"
	"github.com/mfuentes/cuentaclara/internal/rules"
)

// Input carries everything one audit run consumes. Account, contract and
// declared total are never mutated; findings are normalized in place.
type Input struct {
	AuditDate     time.Time
	Account       *model.ExtractedAccount
	Contract      *model.Contract
	Findings      []*model.Finding
	Classified    []model.ClassifiedItem
	TotalDeclared int64
}

// Stats summarizes what the pipeline did.
type Stats struct {
	FindingsIn    int
	FindingsOut   int
	Reconstructed int
	Unresolved    int
	RulesFired    int
}

// Result is the terminal output of one audit run.
type Result struct {
	Reconstructions map[string]model.ReconstructionResult
	Findings        []*model.Finding
	Alerts          []string
	Balance         model.Balance
	Stats           Stats
}

// Config holds tuning options for the audit engine.
type Config struct {
	Recon recon.Config
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{Recon: recon.DefaultConfig()}
}

// AuditEngine runs the reconciliation pipeline. One engine may serve many
// audits; each Audit call builds its own reconstructor so consumed-item
// state is never shared across runs.
type AuditEngine struct {
	normalizer *normalize.Normalizer
	resolver   *balance.Resolver
	auditor    *rules.Auditor
	ufCache    *fx.Cache
	config     Config
}

// New creates an audit engine. ufCache may be nil, in which case contract
// caps denominated in UF are not checked.
func New(ufCache *fx.Cache) *AuditEngine {
	return NewWithConfig(ufCache, DefaultConfig())
}

// NewWithConfig creates an audit engine with custom tuning.
func NewWithConfig(ufCache *fx.Cache, config Config) *AuditEngine {
	return &AuditEngine{
		normalizer: normalize.New(),
		resolver:   balance.New(),
		auditor:    rules.New(),
		ufCache:    ufCache,
		config:     config,
	}
}

// Audit runs the full pipeline. It never fails: malformed input degrades to
// a large opaque bucket plus alerts, and an empty run yields a clean zero
// balance.
func (e *AuditEngine) Audit(ctx context.Context, in Input) *Result {
	findings := make([]*model.Finding, 0, len(in.Findings))
	for _, f := range in.Findings {
		if f != nil {
			f.Sanitize()
			findings = append(findings, f)
		}
	}

	slog.Info("starting audit",
		"findings", len(findings),
		"classified_items", len(in.Classified),
		"total_declared", in.TotalDeclared)

	stats := Stats{FindingsIn: len(findings)}

	// Rule-based pass first so its findings join normalization and netting.
	if len(in.Classified) > 0 {
		report := e.auditor.PerformAudit(in.Classified)
		findings = append(findings, report.Findings...)
		stats.RulesFired = report.Stats.RulesFired
	}

	reconstructions := e.reconstruct(in.Account, in.Contract, findings, &stats)

	if capFindings := e.checkContractCaps(ctx, in); len(capFindings) > 0 {
		findings = append(findings, capFindings...)
	}

	findings = e.normalizer.NetAndReclassify(findings)
	resolved, alerts := e.resolver.Resolve(in.TotalDeclared, findings)

	stats.FindingsOut = len(findings)

	slog.Info("audit complete",
		"state", resolved.StateLabel(),
		"opacity_pct", fmt.Sprintf("%.1f", resolved.OpacityPercent()),
		"alerts", len(alerts))

	return &Result{
		Findings:        findings,
		Balance:         resolved,
		Alerts:          alerts,
		Reconstructions: reconstructions,
		Stats:           stats,
	}
}

// reconstruct resolves opaque findings into line-item detail, largest target
// first so the run is deterministic: each call's available pool depends on
// every prior call's consumption.
func (e *AuditEngine) reconstruct(account *model.ExtractedAccount, contract *model.Contract, findings []*model.Finding, stats *Stats) map[string]model.ReconstructionResult {
	reconstructions := make(map[string]model.ReconstructionResult)
	if account == nil {
		return reconstructions
	}

	reconstructor := recon.NewWithConfig(account, e.config.Recon)

	targets := make([]*model.Finding, 0)
	for _, f := range findings {
		if f.Category == model.CategoryOpaque && f.Amount > 0 && !f.HasMarker(model.MarkerReconstructed) {
			targets = append(targets, f)
		}
	}
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Amount != targets[j].Amount {
			return targets[i].Amount > targets[j].Amount
		}
		return targets[i].ID < targets[j].ID
	})

	for _, f := range targets {
		hint := sectionHint(f)
		result := reconstructor.FindMatches(f.Amount, hint)
		reconstructions[f.ID] = result
		if !result.Success {
			// Unreconstructed stays opaque; the failure is not an error.
			stats.Unresolved++
			continue
		}

		stats.Reconstructed++
		f.AddMarker(model.MarkerReconstructed)
		f.Category = model.CategoryConfirmed
		f.Action = model.ActionDispute
		for _, item := range result.Matched {
			f.Evidence = append(f.Evidence, model.EvidenceRef{
				Source:    model.SourceBill,
				ItemIndex: item.Index,
				Section:   item.Section,
				Detail:    item.Description,
			})
		}

		slog.Debug("reconstructed opaque finding",
			"finding", f.ID,
			"target", f.Amount,
			"items", len(result.Matched),
			"nodes", result.Nodes)
	}

	// The one contract consultation the core makes: an unexplained charge on
	// a pool the plan bonifies at 100% has no contractual basis, so opaque
	// treatment is forced even if an upstream stage guessed otherwise.
	if contract != nil {
		for _, f := range findings {
			if f.Category == model.CategoryControversial && !f.HasMarker(model.MarkerReconstructed) {
				if pool := sectionHint(f); pool != "" && contract.FullyCovered(pool) {
					f.Category = model.CategoryOpaque
				}
			}
		}
	}

	return reconstructions
}

// sectionHint derives the charge-pool hint for reconstruction from the
// finding's evidence, preferring section-scope references.
func sectionHint(f *model.Finding) string {
	for _, ref := range f.Evidence {
		if ref.IsSectionScope() && ref.Section != "" {
			return ref.Section
		}
	}
	for _, ref := range f.Evidence {
		if ref.Section != "" {
			return ref.Section
		}
	}
	return ""
}

// checkContractCaps emits informational findings for pools whose billed
// total exceeds the contract's UF cap converted at the audit date.
func (e *AuditEngine) checkContractCaps(ctx context.Context, in Input) []*model.Finding {
	if e.ufCache == nil || in.Contract == nil || in.Account == nil {
		return nil
	}

	var out []*model.Finding
	for _, coverage := range in.Contract.Coverages {
		if coverage.CapUF <= 0 {
			continue
		}
		ufValue, err := e.ufCache.Value(ctx, in.AuditDate)
		if err != nil {
			slog.Warn("UF value unavailable, skipping cap checks", "error", err)
			return out
		}
		capPesos := int64(math.Round(coverage.CapUF * ufValue))

		var poolTotal int64
		for _, section := range in.Account.Sections {
			if poolMatches(section.Category, coverage.Pool) {
				for _, item := range section.Items {
					poolTotal += item.Total
				}
			}
		}
		if poolTotal > capPesos {
			out = append(out, &model.Finding{
				ID:           fmt.Sprintf("contract-cap-%s", strings.ToLower(coverage.Pool)),
				Category:     model.CategoryInformational,
				Amount:       poolTotal - capPesos,
				Label:        fmt.Sprintf("Billed total for %s exceeds contract cap", coverage.Pool),
				Rationale:    fmt.Sprintf("Pool billed %d pesos against a cap of %.2f UF (%d pesos).", poolTotal, coverage.CapUF, capPesos),
				Action:       model.ActionClarify,
				HypothesisID: "contract-cap",
				Evidence: []model.EvidenceRef{{
					Source:    model.SourceBill,
					ItemIndex: model.SectionScope,
					Section:   coverage.Pool,
				}},
			})
		}
	}
	return out
}

func poolMatches(section, pool string) bool {
	s, p := strings.ToLower(strings.TrimSpace(section)), strings.ToLower(strings.TrimSpace(pool))
	if s == "" || p == "" {
		return false
	}
	return strings.Contains(s, p) || strings.Contains(p, s)
}
