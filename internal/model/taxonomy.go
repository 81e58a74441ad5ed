package model

// TaxonomyResult is the upstream clinical classification of one bill item.
// Produced by an out-of-scope taxonomy stage and consumed by the rule-based
// auditor.
type TaxonomyResult struct {
	Category   string  `json:"category"`
	ItemIndex  int     `json:"item_index"`
	Confidence float64 `json:"confidence"`
}

// ClassifiedItem pairs a billing item with its clinical taxonomy category.
type ClassifiedItem struct {
	Item     BillingItem `json:"item"`
	Taxonomy string      `json:"taxonomy"`
}
