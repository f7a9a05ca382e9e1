package account

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ofsync/internal/shared/validate"
)

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// Account is a bank account discovered under a link, with the latest
// balance snapshot reported by the aggregator.
type Account struct {
	ID                string           `json:"id"`
	LinkID            string           `json:"link_id"`
	ProviderAccountID string           `json:"provider_account_id"`
	Name              string           `json:"name"`
	Type              string           `json:"type"`
	Subtype           string           `json:"subtype,omitempty"`
	Currency          string           `json:"currency"`
	BalanceCurrent    decimal.Decimal  `json:"balance_current"`
	BalanceAvailable  *decimal.Decimal `json:"balance_available"`
	BalanceUpdatedAt  *time.Time       `json:"balance_updated_at"`
	Raw               json.RawMessage  `json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// UpsertParams carries one account row as fetched from the aggregator.
type UpsertParams struct {
	LinkID            string `validate:"required,uuid"`
	ProviderAccountID string `validate:"required"`
	Name              string
	Type              string
	Subtype           string
	Currency          string `validate:"required,len=3,iso4217"`
	BalanceCurrent    decimal.Decimal
	BalanceAvailable  *decimal.Decimal
	BalanceUpdatedAt  *time.Time
	Raw               json.RawMessage
}

// Normalize upper-cases codes and fills the display name.
func (p *UpsertParams) Normalize() {
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Type = strings.ToUpper(strings.TrimSpace(p.Type))
	p.Subtype = strings.ToUpper(strings.TrimSpace(p.Subtype))
	if strings.TrimSpace(p.Name) == "" {
		p.Name = "Account " + p.ProviderAccountID
	}
	if len(p.Raw) == 0 {
		p.Raw = json.RawMessage("{}")
	}
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	return validate.Struct(p)
}
