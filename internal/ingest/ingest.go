// Package ingest parses the loosely-typed JSON documents produced by the
// upstream extraction stages into the strict domain model. Upstream output
// comes from LLMs and is inherently unreliable: parsing is parse-or-default,
// never reject-the-run.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/mfuentes/cuentaclara/internal/common"
	"github.com/mfuentes/cuentaclara/internal/model"
)

// flexAmount is an int64 peso amount that tolerates the shapes upstream
// actually emits: plain numbers, floats, and formatted strings such as
// "$ 1.234.567" or "1234567".
type flexAmount int64

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			*a = 0
			return nil
		}
		s = unquoted
	}

	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	s = strings.ReplaceAll(s, " ", "")
	// Chilean formatting uses dots for thousands and a comma for decimals.
	if strings.Count(s, ".") > 1 || (strings.Contains(s, ".") && strings.Contains(s, ",")) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		slog.Debug("unparseable amount, defaulting to zero", "raw", string(data))
		*a = 0
		return nil
	}
	*a = flexAmount(int64(math.Round(value)))
	return nil
}

type rawItem struct {
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Section     string     `json:"section"`
	Index       *int       `json:"index"`
	Total       flexAmount `json:"total"`
	Copayment   flexAmount `json:"copayment"`
}

type rawSection struct {
	Category string    `json:"category"`
	Items    []rawItem `json:"items"`
}

type rawAccount struct {
	Sections          []rawSection `json:"sections"`
	ClinicStatedTotal flexAmount   `json:"clinic_stated_total"`
	ItemCount         int          `json:"item_count"`
}

// ParseAccount parses an extracted-account document. Item indexes are
// reassigned sequentially whenever the upstream indexes are missing or
// collide, since the reconstructor's consumption registry requires them to
// be unique.
func ParseAccount(data []byte) (*model.ExtractedAccount, error) {
	var raw rawAccount
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: account: %v", common.ErrMalformedInput, err)
	}

	account := &model.ExtractedAccount{
		ClinicStatedTotal: int64(raw.ClinicStatedTotal),
		ItemCount:         raw.ItemCount,
	}

	seen := make(map[int]bool)
	unique := true
	count := 0
	for _, rs := range raw.Sections {
		section := model.Section{Category: strings.TrimSpace(rs.Category)}
		for _, ri := range rs.Items {
			item := model.BillingItem{
				Code:        strings.TrimSpace(ri.Code),
				Description: strings.TrimSpace(ri.Description),
				Section:     section.Category,
				Total:       int64(ri.Total),
				Copayment:   int64(ri.Copayment),
			}
			if ri.Index == nil || seen[*ri.Index] {
				unique = false
			} else {
				item.Index = *ri.Index
				seen[item.Index] = true
			}
			section.Items = append(section.Items, item)
			count++
		}
		account.Sections = append(account.Sections, section)
	}

	if !unique {
		idx := 0
		for si := range account.Sections {
			for ii := range account.Sections[si].Items {
				account.Sections[si].Items[ii].Index = idx
				idx++
			}
		}
	}
	if account.ItemCount == 0 {
		account.ItemCount = count
	}

	return account, nil
}

type rawEvidence struct {
	Source    string `json:"source"`
	Section   string `json:"section"`
	Detail    string `json:"detail"`
	ItemIndex *int   `json:"item_index"`
}

type rawFinding struct {
	ID           string        `json:"id"`
	Category     string        `json:"category"`
	Label        string        `json:"label"`
	Title        string        `json:"title"`
	Rationale    string        `json:"rationale"`
	Reasoning    string        `json:"reasoning"`
	Action       string        `json:"action"`
	HypothesisID string        `json:"hypothesis_id"`
	Evidence     []rawEvidence `json:"evidence"`
	Amount       flexAmount    `json:"amount"`
}

// ParseFindings parses a findings document. Free-form categories and actions
// are mapped to the tagged enums at this boundary; unknown categories default
// to Opaque-Indeterminate. Missing IDs are generated.
func ParseFindings(data []byte) ([]*model.Finding, error) {
	var raws []rawFinding
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: findings: %v", common.ErrMalformedInput, err)
	}

	findings := make([]*model.Finding, 0, len(raws))
	for i, raw := range raws {
		f := &model.Finding{
			ID:           strings.TrimSpace(raw.ID),
			Category:     model.ParseCategory(raw.Category),
			Label:        firstNonEmpty(raw.Label, raw.Title),
			Rationale:    firstNonEmpty(raw.Rationale, raw.Reasoning),
			Action:       model.ParseAction(raw.Action),
			HypothesisID: strings.TrimSpace(raw.HypothesisID),
			Amount:       int64(raw.Amount),
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("finding-%d", i+1)
		}
		for _, re := range raw.Evidence {
			ref := model.EvidenceRef{
				Source:  firstNonEmpty(re.Source, model.SourceBill),
				Section: strings.TrimSpace(re.Section),
				Detail:  strings.TrimSpace(re.Detail),
			}
			if re.ItemIndex != nil {
				ref.ItemIndex = *re.ItemIndex
			} else {
				ref.ItemIndex = model.SectionScope
			}
			f.Evidence = append(f.Evidence, ref)
		}
		f.Sanitize()
		findings = append(findings, f)
	}

	return findings, nil
}

type rawCoverage struct {
	Pool         string  `json:"pool"`
	BonusPercent int     `json:"bonus_percent"`
	CapUF        float64 `json:"cap_uf"`
}

type rawContract struct {
	PlanID    string        `json:"plan_id"`
	Coverages []rawCoverage `json:"coverages"`
}

// ParseContract parses a normalized contract document.
func ParseContract(data []byte) (*model.Contract, error) {
	var raw rawContract
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: contract: %v", common.ErrMalformedInput, err)
	}

	contract := &model.Contract{PlanID: strings.TrimSpace(raw.PlanID)}
	for _, rc := range raw.Coverages {
		bonus := rc.BonusPercent
		if bonus < 0 {
			bonus = 0
		}
		if bonus > 100 {
			bonus = 100
		}
		contract.Coverages = append(contract.Coverages, model.Coverage{
			Pool:         strings.TrimSpace(rc.Pool),
			BonusPercent: bonus,
			CapUF:        rc.CapUF,
		})
	}
	return contract, nil
}

// ParseTaxonomy parses a taxonomy-results document and joins it against the
// account's items. Items with no taxonomy result get an empty taxonomy.
func ParseTaxonomy(data []byte, account *model.ExtractedAccount) ([]model.ClassifiedItem, error) {
	var results []model.TaxonomyResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("%w: taxonomy: %v", common.ErrMalformedInput, err)
	}

	byIndex := make(map[int]string, len(results))
	for _, r := range results {
		byIndex[r.ItemIndex] = strings.TrimSpace(r.Category)
	}

	var classified []model.ClassifiedItem
	if account != nil {
		for _, item := range account.AllItems() {
			classified = append(classified, model.ClassifiedItem{
				Item:     item,
				Taxonomy: byIndex[item.Index],
			})
		}
	}
	return classified, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
