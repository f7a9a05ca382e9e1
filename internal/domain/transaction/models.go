package transaction

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ofsync/internal/shared/validate"
)

const (
	TypeDebit  = "DEBIT"
	TypeCredit = "CREDIT"

	DefaultLimit = 50
	MaxLimit     = 500
)

// Domain errors
var (
	ErrInvalidFilter = errors.New("invalid transaction filter")
	ErrInvalidInput  = errors.New("invalid input")
)

// Transaction is a money movement on an account. Debits are stored
// negative and credits positive regardless of the sign the aggregator sent.
type Transaction struct {
	ID                    string          `json:"id"`
	AccountID             string          `json:"account_id"`
	ProviderTransactionID string          `json:"provider_transaction_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency,omitempty"`
	Type                  string          `json:"type,omitempty"`
	Status                string          `json:"status,omitempty"`
	Category              string          `json:"category,omitempty"`
	Description           string          `json:"description"`
	MerchantName          string          `json:"merchant_name,omitempty"`
	Date                  time.Time       `json:"date"`
	Raw                   json.RawMessage `json:"-"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// UpsertParams carries one transaction row as fetched from the aggregator.
type UpsertParams struct {
	AccountID             string `validate:"required,uuid"`
	ProviderTransactionID string `validate:"required"`
	Amount                decimal.Decimal
	Currency              string
	Type                  string `validate:"txn_type"`
	Status                string
	Category              string
	Description           string
	MerchantName          string
	Date                  time.Time `validate:"required"`
	Raw                   json.RawMessage
}

// Normalize upper-cases the type and applies the sign convention.
func (p *UpsertParams) Normalize() {
	p.Type = strings.ToUpper(strings.TrimSpace(p.Type))
	p.Status = strings.ToUpper(strings.TrimSpace(p.Status))
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Amount = NormalizeAmount(p.Amount, p.Type)
	if len(p.Raw) == 0 {
		p.Raw = json.RawMessage("{}")
	}
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	return validate.Struct(p)
}

// NormalizeAmount makes debits negative and credits positive. Amounts of
// any other type keep the sign the aggregator reported.
func NormalizeAmount(amount decimal.Decimal, txnType string) decimal.Decimal {
	switch strings.ToUpper(txnType) {
	case TypeDebit:
		return amount.Abs().Neg()
	case TypeCredit:
		return amount.Abs()
	default:
		return amount
	}
}

// ListFilter narrows a user's transaction listing. From and To are
// inclusive calendar dates.
type ListFilter struct {
	UserID    string
	AccountID string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// Validate applies the default limit and rejects out-of-range values.
func (f *ListFilter) Validate() error {
	if f.UserID == "" {
		return ErrInvalidInput
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 0 || f.Limit > MaxLimit {
		return ErrInvalidFilter
	}
	if f.Offset < 0 {
		return ErrInvalidFilter
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return ErrInvalidFilter
	}
	return nil
}
