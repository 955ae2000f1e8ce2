package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned to transactions that arrive without a category.
const DefaultCategory = "business_expense"

var (
	ErrNotFound         = errors.New("not found")
	ErrMissingPeriod    = errors.New("missing statement period")
	ErrMissingBankName  = errors.New("missing bank name")
	ErrMissingCardName  = errors.New("missing card name")
	ErrMissingDate      = errors.New("missing transaction date")
	ErrEmptyDescription = errors.New("empty transaction description")
)

type (
	// Client groups statements under an owner. Created by seed or admin
	// action, never mutated in the current scope.
	Client struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Phone     string    `json:"phone,omitempty"`
		Address   string    `json:"address,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Statement is one billing-cycle record for a card.
	Statement struct {
		ID              int64     `json:"id"`
		StatementPeriod string    `json:"statementPeriod"`
		BankName        string    `json:"bankName"`
		CardName        string    `json:"cardName"`
		ClientID        int64     `json:"clientId,omitempty"`
		CreatedAt       time.Time `json:"createdAt"`
	}

	// Transaction is one line item within a statement. Date keeps the
	// statement's own short format (e.g. "12/26"); it is display data,
	// not a validated calendar date.
	Transaction struct {
		ID            int64           `json:"id"`
		StatementID   int64           `json:"statementId"`
		Date          string          `json:"date"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Justification string          `json:"justification,omitempty"`
		Category      string          `json:"category"`
		CreatedAt     time.Time       `json:"createdAt"`
	}

	// TransactionInput is a transaction as submitted for persistence,
	// before ids and timestamps exist.
	TransactionInput struct {
		Date          string          `json:"date"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Justification string          `json:"justification,omitempty"`
		Category      string          `json:"category,omitempty"`
	}

	// StatementPayload is the shape produced by extraction and accepted
	// by the save operation.
	StatementPayload struct {
		StatementPeriod string             `json:"statementPeriod"`
		BankName        string             `json:"bankName"`
		CardName        string             `json:"cardName"`
		ClientID        int64              `json:"clientId,omitempty"`
		Transactions    []TransactionInput `json:"transactions"`
	}
)

// Validate checks the payload fields required for persistence. A payload
// with zero transactions is valid.
func (p StatementPayload) Validate() error {
	if strings.TrimSpace(p.StatementPeriod) == "" {
		return ErrMissingPeriod
	}
	if strings.TrimSpace(p.BankName) == "" {
		return ErrMissingBankName
	}
	if strings.TrimSpace(p.CardName) == "" {
		return ErrMissingCardName
	}
	for i, t := range p.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}

func (t TransactionInput) Validate() error {
	if strings.TrimSpace(t.Date) == "" {
		return ErrMissingDate
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// ApplyDefaults fills the default category on transactions missing one.
func (p *StatementPayload) ApplyDefaults() {
	for i := range p.Transactions {
		if strings.TrimSpace(p.Transactions[i].Category) == "" {
			p.Transactions[i].Category = DefaultCategory
		}
	}
}
