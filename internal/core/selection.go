package core

import (
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
)

type (
	// SelectableExpense is a transaction decorated with a stable key, an
	// inclusion flag, and denormalized card/month labels for display.
	SelectableExpense struct {
		Key string `json:"key"`
		Transaction
		CardName string `json:"cardName"`
		Month    string `json:"month"`
		Selected bool   `json:"isSelected"`
	}

	// SelectionStats aggregates the currently selected rows.
	SelectionStats struct {
		Selected []SelectableExpense
		Total    decimal.Decimal
		Count    int
		Average  decimal.Decimal
	}

	// Selection reconciles a card/month filter over aggregated card groups
	// into a stable, user-editable list of selectable expense rows. State is
	// scoped to one view instance; no operation returns an error - the
	// minimum-selection rules are enforced as silent no-ops.
	//
	// Mutating operations do not re-derive the visible rows themselves; the
	// caller invokes Recompute after each change.
	Selection struct {
		groups    []CardGroup
		cards     []string
		months    []string
		available []string
		expenses  []SelectableExpense
	}
)

func NewSelection(groups []CardGroup) *Selection {
	return &Selection{groups: groups}
}

// Initialize selects the first card group when no card is selected yet and
// derives the available months for it. Idempotent: a no-op once any card is
// selected or when there are no groups.
func (s *Selection) Initialize() {
	if len(s.cards) > 0 || len(s.groups) == 0 {
		return
	}
	s.cards = []string{s.groups[0].CardName}
	s.refreshMonths()
}

// SetGroups replaces the underlying card groups, e.g. after new statements
// were saved, keeping the current selections where they remain valid.
func (s *Selection) SetGroups(groups []CardGroup) {
	s.groups = groups
	s.refreshMonths()
}

// ToggleCard flips card membership in the selected set. Deselecting the
// last remaining card is refused. A successful toggle re-derives the
// available months.
func (s *Selection) ToggleCard(card string) {
	if i := slices.Index(s.cards, card); i >= 0 {
		if len(s.cards) == 1 {
			return
		}
		s.cards = slices.Delete(s.cards, i, i+1)
	} else {
		s.cards = append(s.cards, card)
	}
	s.refreshMonths()
}

// ToggleMonth flips month membership in the selected set. Deselecting the
// last remaining month is refused.
func (s *Selection) ToggleMonth(month string) {
	if i := slices.Index(s.months, month); i >= 0 {
		if len(s.months) == 1 {
			return
		}
		s.months = slices.Delete(s.months, i, i+1)
	} else {
		s.months = append(s.months, month)
	}
}

// refreshMonths recomputes the months present across the selected cards'
// statements, sorted ascending. The previous month selection is narrowed to
// the months still available; if that leaves nothing and months exist, the
// first available month is selected so the view never shows zero months
// while data exists.
func (s *Selection) refreshMonths() {
	seen := make(map[string]bool)
	for _, g := range s.groups {
		if !slices.Contains(s.cards, g.CardName) {
			continue
		}
		for _, st := range g.Statements {
			seen[st.Month] = true
		}
	}

	available := make([]string, 0, len(seen))
	for m := range seen {
		available = append(available, m)
	}
	slices.Sort(available)
	s.available = available

	valid := make([]string, 0, len(s.months))
	for _, m := range s.months {
		if seen[m] {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 && len(available) > 0 {
		s.months = []string{available[0]}
		return
	}
	s.months = valid
}

// Recompute re-derives the visible expense rows from the selected cards and
// months. Every key present in the previous derivation keeps its prior
// selected flag; keys appearing for the first time default to selected.
// When the filter matches no statements the previous rows are kept as-is,
// so a transient empty state cannot wipe in-progress selections.
func (s *Selection) Recompute() {
	type filtered struct {
		card  string
		month string
		txns  []Transaction
	}
	var rows []filtered
	for _, g := range s.groups {
		if !slices.Contains(s.cards, g.CardName) {
			continue
		}
		for _, st := range g.Statements {
			if !slices.Contains(s.months, st.Month) {
				continue
			}
			rows = append(rows, filtered{card: g.CardName, month: st.Month, txns: st.Transactions})
		}
	}
	if len(rows) == 0 {
		return
	}

	prior := make(map[string]bool, len(s.expenses))
	for _, e := range s.expenses {
		prior[e.Key] = e.Selected
	}

	var next []SelectableExpense
	for _, row := range rows {
		for i, t := range row.txns {
			key := expenseKey(row.card, row.month, i, t.ID)
			selected, seen := prior[key]
			if !seen {
				selected = true
			}
			next = append(next, SelectableExpense{
				Key:         key,
				Transaction: t,
				CardName:    row.card,
				Month:       row.month,
				Selected:    selected,
			})
		}
	}
	s.expenses = next
}

// expenseKey prefers the persisted transaction id, which is stable and
// unique across re-derivations. Rows without one (ephemeral, not yet saved)
// fall back to a positional composite key.
func expenseKey(card, month string, index int, txnID int64) string {
	if txnID != 0 {
		return "txn:" + strconv.FormatInt(txnID, 10)
	}
	return card + "-" + month + "-" + strconv.Itoa(index)
}

// ToggleExpense flips a single row's selected flag. Zero selected rows is a
// valid state.
func (s *Selection) ToggleExpense(key string) {
	for i := range s.expenses {
		if s.expenses[i].Key == key {
			s.expenses[i].Selected = !s.expenses[i].Selected
			return
		}
	}
}

// ToggleAll sets every visible row's selected flag.
func (s *Selection) ToggleAll(selected bool) {
	for i := range s.expenses {
		s.expenses[i].Selected = selected
	}
}

// Stats sums the selected rows with exact decimal arithmetic. Average is
// total/count rounded to cents, zero when nothing is selected.
func (s *Selection) Stats() SelectionStats {
	stats := SelectionStats{Total: decimal.Zero, Average: decimal.Zero}
	for _, e := range s.expenses {
		if !e.Selected {
			continue
		}
		stats.Selected = append(stats.Selected, e)
		stats.Total = stats.Total.Add(e.Amount)
	}
	stats.Count = len(stats.Selected)
	if stats.Count > 0 {
		stats.Average = stats.Total.DivRound(decimal.NewFromInt(int64(stats.Count)), 2)
	}
	return stats
}

// SelectedCards returns the selected card names in selection order.
func (s *Selection) SelectedCards() []string {
	return slices.Clone(s.cards)
}

// SelectedMonths returns the selected month labels in selection order.
func (s *Selection) SelectedMonths() []string {
	return slices.Clone(s.months)
}

// AvailableMonths returns the months present across the selected cards,
// sorted ascending.
func (s *Selection) AvailableMonths() []string {
	return slices.Clone(s.available)
}

// Expenses returns the current visible rows in derivation order.
func (s *Selection) Expenses() []SelectableExpense {
	return slices.Clone(s.expenses)
}
