// Package model defines the core domain models used throughout the application.
package model

// BillingItem represents a single line in a clinical bill.
// Items are immutable once extracted; duplicates (same description, same
// amount) are legal and common, e.g. repeated syringes.
type BillingItem struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description"`
	Section     string `json:"section,omitempty"`
	Index       int    `json:"index"`
	Total       int64  `json:"total"`
	Copayment   int64  `json:"copayment,omitempty"`
}

// Section groups billing items under one bill heading (e.g. medications,
// supplies, ward charges).
type Section struct {
	Category string        `json:"category"`
	Items    []BillingItem `json:"items"`
}

// ExtractedAccount is the structured clinical bill produced by upstream
// extraction. Read-only during reconciliation.
type ExtractedAccount struct {
	Sections          []Section `json:"sections"`
	ClinicStatedTotal int64     `json:"clinic_stated_total"`
	ItemCount         int       `json:"item_count"`
}

// AllItems flattens the account's sections into a single slice, preserving
// section order and stamping each item with its section category.
func (a *ExtractedAccount) AllItems() []BillingItem {
	var items []BillingItem
	for _, section := range a.Sections {
		for _, item := range section.Items {
			if item.Section == "" {
				item.Section = section.Category
			}
			items = append(items, item)
		}
	}
	return items
}

// ItemTotal sums the line totals across every section.
func (a *ExtractedAccount) ItemTotal() int64 {
	var sum int64
	for _, section := range a.Sections {
		for _, item := range section.Items {
			sum += item.Total
		}
	}
	return sum
}
