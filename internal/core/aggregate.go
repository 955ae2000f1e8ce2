package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// StatementSummary is a statement with its transactions, its exact
	// total, and the month label used for filtering.
	StatementSummary struct {
		Statement
		Month        string          `json:"month"`
		Total        decimal.Decimal `json:"totalAmount"`
		Transactions []Transaction   `json:"transactions"`
	}

	// CardGroup collects all statements that share a card identity.
	CardGroup struct {
		CardName   string             `json:"cardName"`
		BankName   string             `json:"bankName"`
		Statements []StatementSummary `json:"statements"`
	}
)

// Aggregate groups statements by card name, loading each statement's
// transactions through transactionsOf and computing exact decimal totals.
// Group order follows the first appearance of each card; statements keep
// the input order. Bank name is taken from the first statement of a card
// (assumed constant per card, not enforced).
func Aggregate(statements []Statement, transactionsOf func(int64) ([]Transaction, error)) ([]CardGroup, error) {
	groups := make([]CardGroup, 0, len(statements))
	index := make(map[string]int)

	for _, st := range statements {
		txns, err := transactionsOf(st.ID)
		if err != nil {
			return nil, fmt.Errorf("load transactions for statement %d: %w", st.ID, err)
		}

		total := decimal.Zero
		for _, t := range txns {
			total = total.Add(t.Amount)
		}

		summary := StatementSummary{
			Statement:    st,
			Month:        statementMonth(st, txns),
			Total:        total,
			Transactions: txns,
		}

		i, ok := index[st.CardName]
		if !ok {
			i = len(groups)
			index[st.CardName] = i
			groups = append(groups, CardGroup{CardName: st.CardName, BankName: st.BankName})
		}
		groups[i].Statements = append(groups[i].Statements, summary)
	}

	return groups, nil
}

// statementMonth derives the display month from the declared period,
// falling back to the first transaction's date.
func statementMonth(st Statement, txns []Transaction) string {
	if m := monthFromPeriod(st.StatementPeriod); m != UnknownMonth {
		return m
	}
	if len(txns) > 0 {
		return MonthName(txns[0].Date)
	}
	return UnknownMonth
}

// monthFromPeriod accepts both human-readable periods ("January 1 -
// January 31, 2025") and numeric seed keys ("02_feb").
func monthFromPeriod(period string) string {
	p := strings.TrimSpace(period)
	for _, name := range monthNames {
		if len(p) >= len(name) && strings.EqualFold(p[:len(name)], name) {
			return name
		}
	}
	return MonthName(p)
}
