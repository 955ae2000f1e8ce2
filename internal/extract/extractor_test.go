package extract

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flechilla/statements/internal/core"
)

func TestCleanModelJSON(t *testing.T) {
	const want = `{"bankName":"Chase"}`
	cases := []struct {
		name string
		in   string
	}{
		{"plain", `{"bankName":"Chase"}`},
		{"json fence", "```json\n{\"bankName\":\"Chase\"}\n```"},
		{"bare fence", "```\n{\"bankName\":\"Chase\"}\n```"},
		{"leading prose", "Here is the statement:\n{\"bankName\":\"Chase\"}"},
		{"trailing prose", "{\"bankName\":\"Chase\"}\nLet me know if you need more."},
		{"whitespace", "\n\n  {\"bankName\":\"Chase\"}  \n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanModelJSON(tc.in); got != want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tc.in, got, want)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	payload, err := decodePayload(`{
		"statementPeriod": "January 1 - January 31, 2025",
		"bankName": "Chase",
		"cardName": "Freedom Unlimited",
		"transactions": [
			{"date": "01/05/2025", "description": "Coffee", "amount": 4.5},
			{"date": "01/12/2025", "description": "Flight", "amount": "325.00", "category": "Travel"}
		]
	}`)
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}

	if payload.BankName != "Chase" || payload.CardName != "Freedom Unlimited" {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(payload.Transactions))
	}
	if !payload.Transactions[0].Amount.Equal(decimal.RequireFromString("4.5")) {
		t.Fatalf("amount = %s, want 4.5", payload.Transactions[0].Amount)
	}
	if payload.Transactions[0].Category != core.DefaultCategory {
		t.Fatalf("category default not applied: %q", payload.Transactions[0].Category)
	}
	if payload.Transactions[1].Category != "Travel" {
		t.Fatalf("explicit category lost: %q", payload.Transactions[1].Category)
	}
}

func TestDecodePayloadInvalid(t *testing.T) {
	if _, err := decodePayload(`not json at all`); err == nil {
		t.Fatal("expected unmarshal error")
	}

	_, err := decodePayload(`{"statementPeriod": "p", "cardName": "c", "transactions": []}`)
	if !errors.Is(err, core.ErrMissingBankName) {
		t.Fatalf("expected ErrMissingBankName, got %v", err)
	}
}
