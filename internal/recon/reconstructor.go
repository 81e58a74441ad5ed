// Package recon implements subset-sum reconstruction of opaque lump-sum
// charges into the specific bill line items that compose them.
package recon

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/mfuentes/cuentaclara/internal/model"
)

// Tolerance is the accepted absolute difference, in pesos, between a target
// amount and a matched subset. Absorbs per-line rounding in the source bill.
const Tolerance int64 = 2

// DefaultNodeBudget bounds the number of search nodes visited per call.
const DefaultNodeBudget = 1_500_000

// Config holds tuning options for a Reconstructor.
type Config struct {
	Tolerance  int64
	NodeBudget int
}

// DefaultConfig returns the default reconstructor configuration.
func DefaultConfig() Config {
	return Config{
		Tolerance:  Tolerance,
		NodeBudget: DefaultNodeBudget,
	}
}

// Reconstructor finds subsets of available bill items matching target
// amounts. Items matched by one call are consumed and excluded from later
// calls on the same instance, so one line item is never attributed to two
// different opaque amounts within an audit run.
//
// A Reconstructor is scoped to a single audit run and is not safe for
// concurrent use.
type Reconstructor struct {
	used       map[int]bool
	items      []model.BillingItem
	tolerance  int64
	nodeBudget int
}

// New creates a reconstructor over the account's line items.
func New(account *model.ExtractedAccount) *Reconstructor {
	return NewWithConfig(account, DefaultConfig())
}

// NewWithConfig creates a reconstructor with custom tuning.
func NewWithConfig(account *model.ExtractedAccount, config Config) *Reconstructor {
	if config.Tolerance <= 0 {
		config.Tolerance = Tolerance
	}
	if config.NodeBudget <= 0 {
		config.NodeBudget = DefaultNodeBudget
	}

	var items []model.BillingItem
	if account != nil {
		for _, item := range account.AllItems() {
			// Non-positive lines cannot contribute to a positive target.
			if item.Total > 0 {
				items = append(items, item)
			}
		}
	}

	// Descending value order improves branch-and-bound pruning.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Total > items[j].Total
	})

	return &Reconstructor{
		items:      items,
		used:       make(map[int]bool),
		tolerance:  config.Tolerance,
		nodeBudget: config.NodeBudget,
	}
}

// AvailableCount returns how many items remain unconsumed.
func (r *Reconstructor) AvailableCount() int {
	count := 0
	for _, item := range r.items {
		if !r.used[item.Index] {
			count++
		}
	}
	return count
}

// FindMatches searches for a subset of the available items whose totals sum
// to target within the tolerance. On success the matched items are consumed.
// A non-empty categoryHint restricts the search to items from matching bill
// sections first, falling back to the full pool when the restricted search
// fails.
func (r *Reconstructor) FindMatches(target int64, categoryHint string) model.ReconstructionResult {
	if target <= 0 {
		return model.ReconstructionResult{Success: true, Matched: []model.BillingItem{}}
	}

	available := r.available()
	if categoryHint != "" {
		hinted := filterBySection(available, categoryHint)
		if len(hinted) > 0 {
			if result, ok := r.search(hinted, target); ok {
				return result
			}
		}
	}

	if result, ok := r.search(available, target); ok {
		return result
	}

	slog.Debug("reconstruction failed",
		"target", target,
		"hint", categoryHint,
		"available", len(available))

	return model.ReconstructionResult{
		Success:   false,
		Unmatched: target,
	}
}

// available returns the unconsumed items, preserving descending order.
func (r *Reconstructor) available() []model.BillingItem {
	out := make([]model.BillingItem, 0, len(r.items))
	for _, item := range r.items {
		if !r.used[item.Index] {
			out = append(out, item)
		}
	}
	return out
}

func filterBySection(items []model.BillingItem, hint string) []model.BillingItem {
	needle := strings.ToLower(strings.TrimSpace(hint))
	var out []model.BillingItem
	for _, item := range items {
		section := strings.ToLower(item.Section)
		if section != "" && (strings.Contains(section, needle) || strings.Contains(needle, section)) {
			out = append(out, item)
		}
	}
	return out
}

// search runs the bounded DFS over the given pool. On success it consumes
// the matched items and returns the populated result; on failure the pool is
// left untouched.
func (r *Reconstructor) search(pool []model.BillingItem, target int64) (model.ReconstructionResult, bool) {
	if len(pool) == 0 {
		return model.ReconstructionResult{}, false
	}

	// Suffix sums: suffix[i] is the best any branch starting at i can add.
	suffix := make([]int64, len(pool)+1)
	for i := len(pool) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + pool[i].Total
	}

	s := &searcher{
		pool:      pool,
		suffix:    suffix,
		target:    target,
		tolerance: r.tolerance,
		budget:    r.nodeBudget,
	}

	picks, found := s.dfs(0, 0, nil)
	if !found {
		return model.ReconstructionResult{}, false
	}

	matched := make([]model.BillingItem, len(picks))
	var matchedTotal int64
	for i, idx := range picks {
		matched[i] = pool[idx]
		matchedTotal += pool[idx].Total
		r.used[pool[idx].Index] = true
	}

	unmatched := target - matchedTotal
	if unmatched < 0 {
		unmatched = 0
	}

	return model.ReconstructionResult{
		Success:      true,
		Matched:      matched,
		MatchedTotal: matchedTotal,
		Unmatched:    unmatched,
		Nodes:        s.nodes,
	}, true
}

// searcher carries the per-call DFS state so the Reconstructor itself stays
// free of shared mutable search variables.
type searcher struct {
	pool      []model.BillingItem
	suffix    []int64
	target    int64
	tolerance int64
	budget    int
	nodes     int
}

// dfs decides include/exclude for pool[i] given the running sum. It returns
// the chosen pool indexes and whether a match was found; early return on the
// first success preserves stop-at-first-match semantics without a shared
// sentinel.
func (s *searcher) dfs(i int, current int64, picks []int) ([]int, bool) {
	s.nodes++
	if s.nodes > s.budget {
		return nil, false
	}

	diff := current - s.target
	if diff >= -s.tolerance && diff <= s.tolerance {
		out := make([]int, len(picks))
		copy(out, picks)
		return out, true
	}
	if diff > s.tolerance {
		return nil, false
	}
	if i >= len(s.pool) {
		return nil, false
	}
	if current+s.suffix[i] < s.target-s.tolerance {
		return nil, false
	}

	// Include pool[i].
	if out, ok := s.dfs(i+1, current+s.pool[i].Total, append(picks, i)); ok {
		return out, true
	}
	// Exclude pool[i].
	return s.dfs(i+1, current, picks)
}
