// Package core holds the domain model, the statement aggregator, and the
// expense selection view-model.
//
// This file contains display helpers for money, months, and card names.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownMonth is the sentinel label used when a display month cannot be
// derived from statement data.
const UnknownMonth = "Unknown"

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName derives a month label from a short date or period key by
// parsing the leading numeric token ("12/26" -> "December", "02_feb" ->
// "February"). Anything outside 1-12 resolves to UnknownMonth.
func MonthName(date string) string {
	tok := strings.TrimSpace(date)
	if i := strings.IndexAny(tok, "/_-. "); i >= 0 {
		tok = tok[:i]
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 1 || n > 12 {
		return UnknownMonth
	}
	return monthNames[n-1]
}

// FormatUSD renders an exact decimal amount as a dollar string, e.g.
// "$12.34" or "-$0.50".
func FormatUSD(d decimal.Decimal) string {
	if d.Sign() < 0 {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// FormatCardName turns a slug like "chase-freedom" into "Chase Freedom".
func FormatCardName(name string) string {
	words := strings.Split(name, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
