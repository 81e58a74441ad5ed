package model

import "strings"

// Coverage is one normalized coverage rule from a health-plan contract:
// a bonification percentage for a charge pool, optionally capped in UF.
type Coverage struct {
	Pool         string  `json:"pool"`
	BonusPercent int     `json:"bonus_percent"`
	CapUF        float64 `json:"cap_uf,omitempty"`
}

// Contract is the normalized set of coverage rules consulted during
// reconciliation. Read-only reference data; canonicalization happens
// upstream.
type Contract struct {
	PlanID    string     `json:"plan_id,omitempty"`
	Coverages []Coverage `json:"coverages"`
}

// CoverageFor returns the coverage rule matching a charge pool, or nil.
// Matching is case-insensitive containment in either direction, since pool
// names arrive from free-text bill sections.
func (c *Contract) CoverageFor(pool string) *Coverage {
	if c == nil || pool == "" {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(pool))
	for i := range c.Coverages {
		have := strings.ToLower(c.Coverages[i].Pool)
		if have == "" {
			continue
		}
		if strings.Contains(needle, have) || strings.Contains(have, needle) {
			return &c.Coverages[i]
		}
	}
	return nil
}

// FullyCovered reports whether the pool is bonified at 100%, in which case
// an unexplained copayment on that pool has no contractual basis.
func (c *Contract) FullyCovered(pool string) bool {
	cov := c.CoverageFor(pool)
	return cov != nil && cov.BonusPercent >= 100
}
