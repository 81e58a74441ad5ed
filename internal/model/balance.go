package model

import "fmt"

// Balance is the terminal four-bucket partition of the declared copayment.
// Invariant: Confirmed + Controversial + Opaque + Legitimate == Total,
// exactly, in integer pesos.
type Balance struct {
	Confirmed     int64 `json:"confirmed"`
	Controversial int64 `json:"controversial"`
	Opaque        int64 `json:"opaque"`
	Legitimate    int64 `json:"legitimate"`
	Total         int64 `json:"total"`
}

// Sum returns the sum of the four buckets.
func (b Balance) Sum() int64 {
	return b.Confirmed + b.Controversial + b.Opaque + b.Legitimate
}

// Balanced reports whether the buckets sum exactly to the declared total.
func (b Balance) Balanced() bool {
	return b.Sum() == b.Total
}

// OpacityPercent returns the opaque share of the total as a percentage.
func (b Balance) OpacityPercent() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.Opaque) / float64(b.Total) * 100
}

// StateLabel derives a human-readable global state from the bucket
// magnitudes.
func (b Balance) StateLabel() string {
	switch {
	case b.Total == 0:
		return "no copayment declared"
	case b.Confirmed > 0 && b.Opaque > 0:
		return "mixed confirmed-and-opaque copayment"
	case b.Confirmed > 0:
		return "confirmed improper charges present"
	case b.Opaque > 0 && b.Controversial > 0:
		return "opaque and controversial copayment"
	case b.Opaque > 0:
		return "opaque copayment, human review required"
	case b.Controversial > 0:
		return "controversial charges under review"
	default:
		return "clean copayment"
	}
}

// String renders the balance as a compact ledger line.
func (b Balance) String() string {
	return fmt.Sprintf("A=%d B=%d Z=%d OK=%d / total=%d",
		b.Confirmed, b.Controversial, b.Opaque, b.Legitimate, b.Total)
}

// ReconstructionResult is the outcome of one subset-sum reconstruction call.
type ReconstructionResult struct {
	Matched      []BillingItem `json:"matched"`
	MatchedTotal int64         `json:"matched_total"`
	Unmatched    int64         `json:"unmatched"`
	Nodes        int           `json:"nodes"`
	Success      bool          `json:"success"`
}
