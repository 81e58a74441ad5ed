// Package balance partitions a declared copayment total into the four
// mutually exclusive forensic buckets, preserving exact integer arithmetic.
package balance

import (
	"fmt"
	"log/slog"

	"github.com/mfuentes/cuentaclara/internal/model"
)

// AlertPrefix marks every diagnostic emitted by the resolver. A non-empty
// alert list means upstream findings were jointly inconsistent with the
// declared total and the run warrants human review.
const AlertPrefix = "ALERTA_BALANCE"

// Resolver computes the terminal Balance from normalized findings.
// Stateless; safe to reuse across audits.
type Resolver struct{}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve partitions totalDeclared across the four buckets. Overflow is
// absorbed by capping the least-certain buckets first: Opaque, then
// Controversial. Confirmed-Improper is never reduced. Every cap appends an
// alert; no input can make Resolve fail.
func (r *Resolver) Resolve(totalDeclared int64, findings []*model.Finding) (model.Balance, []string) {
	var alerts []string

	if totalDeclared < 0 {
		alerts = append(alerts, fmt.Sprintf("%s: declared total %d is negative, treated as 0", AlertPrefix, totalDeclared))
		totalDeclared = 0
	}

	var confirmed, controversial, opaque int64
	for _, f := range findings {
		if f == nil {
			continue
		}
		amount := f.Amount
		if amount < 0 {
			amount = 0
		}
		switch f.Category {
		case model.CategoryConfirmed:
			confirmed += amount
		case model.CategoryControversial:
			controversial += amount
		case model.CategoryOpaque:
			opaque += amount
		case model.CategoryInformational:
			// Carries no amount into the partition.
		default:
			// Unknown categories degrade to opaque, per the sanitation rules.
			opaque += amount
		}
	}

	// Cap the least-certain bucket first, draining it fully before touching
	// the next. Confirmed is never reduced: it is backed by reconstructed
	// detail or explicit rule violations and must survive the cap even if it
	// forces everything else to zero.
	if confirmed+controversial+opaque > totalDeclared {
		cappedOpaque := totalDeclared - confirmed - controversial
		if cappedOpaque < 0 {
			cappedOpaque = 0
		}
		if cappedOpaque != opaque {
			alerts = append(alerts, fmt.Sprintf("%s: opaque bucket capped from %d to %d to honor declared total %d",
				AlertPrefix, opaque, cappedOpaque, totalDeclared))
			opaque = cappedOpaque
		}
	}
	if confirmed+controversial+opaque > totalDeclared {
		cappedControversial := totalDeclared - confirmed
		if cappedControversial < 0 {
			cappedControversial = 0
		}
		if cappedControversial != controversial {
			alerts = append(alerts, fmt.Sprintf("%s: controversial bucket capped from %d to %d to honor declared total %d",
				AlertPrefix, controversial, cappedControversial, totalDeclared))
			controversial = cappedControversial
		}
	}

	legitimate := totalDeclared - confirmed - controversial - opaque
	if legitimate < 0 {
		legitimate = 0
	}

	b := model.Balance{
		Confirmed:     confirmed,
		Controversial: controversial,
		Opaque:        opaque,
		Legitimate:    legitimate,
		Total:         totalDeclared,
	}

	// Post-condition. The only reachable violation is confirmed alone
	// exceeding the declared total, which is surfaced, never erased.
	if !b.Balanced() {
		alerts = append(alerts, fmt.Sprintf("%s: confirmed improper charges (%d) exceed declared total (%d); partition cannot balance",
			AlertPrefix, confirmed, totalDeclared))
		slog.Warn("balance post-condition violated",
			"confirmed", confirmed,
			"total", totalDeclared)
	}

	return b, alerts
}
