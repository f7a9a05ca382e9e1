package openfinance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConnectTokenRequest scopes a connect widget session. ClientUserID is the
// external reference the aggregator echoes back on every webhook.
type ConnectTokenRequest struct {
	ClientUserID string `json:"clientUserId,omitempty"`
	WebhookURL   string `json:"webhookUrl,omitempty"`
	ItemID       string `json:"itemId,omitempty"`
}

// Account represents an account from the aggregator API
type Account struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"itemId"`
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype"`
	Name          string          `json:"name"`
	MarketingName string          `json:"marketingName"`
	Number        string          `json:"number"`
	Balance       decimal.Decimal `json:"balance"`
	CurrencyCode  string          `json:"currencyCode"`
	UpdatedAt     string          `json:"updatedAt"`
	BankData      *BankData       `json:"bankData,omitempty"`
	CreditData    *CreditData     `json:"creditData,omitempty"`

	// Raw is the verbatim account object as received.
	Raw json.RawMessage `json:"-"`
}

// BankData represents bank-specific account data
type BankData struct {
	TransferNumber               string           `json:"transferNumber"`
	ClosingBalance               *decimal.Decimal `json:"closingBalance"`
	AutomaticallyInvestedBalance *decimal.Decimal `json:"automaticallyInvestedBalance"`
}

// CreditData represents credit card-specific account data
type CreditData struct {
	Brand                string           `json:"brand"`
	Level                string           `json:"level"`
	CreditLimit          *decimal.Decimal `json:"creditLimit"`
	AvailableCreditLimit *decimal.Decimal `json:"availableCreditLimit"`
}

// DisplayName prefers the marketing name the bank shows its customers.
func (a *Account) DisplayName() string {
	if a.MarketingName != "" {
		return a.MarketingName
	}
	return a.Name
}

// AvailableBalance returns the spendable amount when the aggregator reports
// one: the available credit limit for cards, the closing balance for bank
// accounts.
func (a *Account) AvailableBalance() *decimal.Decimal {
	if a.CreditData != nil && a.CreditData.AvailableCreditLimit != nil {
		return a.CreditData.AvailableCreditLimit
	}
	if a.BankData != nil && a.BankData.ClosingBalance != nil {
		return a.BankData.ClosingBalance
	}
	return nil
}

// GetUpdatedAt parses and returns the updatedAt timestamp
func (a *Account) GetUpdatedAt() (*time.Time, error) {
	if a.UpdatedAt == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updatedAt '%s': %w", a.UpdatedAt, err)
	}
	return &t, nil
}

// Transaction represents a transaction from the aggregator API
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	Description  string          `json:"description"`
	CurrencyCode string          `json:"currencyCode"`
	Amount       decimal.Decimal `json:"amount"`
	DateString   string          `json:"date"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Category     *string         `json:"category"`
	Merchant     *Merchant       `json:"merchant,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Merchant identifies the counterparty of a card transaction.
type Merchant struct {
	Name         string `json:"name"`
	BusinessName string `json:"businessName"`
}

// MerchantName returns the merchant's name, if any.
func (t *Transaction) MerchantName() string {
	if t.Merchant == nil {
		return ""
	}
	if t.Merchant.Name != "" {
		return t.Merchant.Name
	}
	return t.Merchant.BusinessName
}

// CategoryName returns the aggregator category or the empty string.
func (t *Transaction) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return strings.TrimSpace(*t.Category)
}

// GetDate parses and returns the transaction date
func (t *Transaction) GetDate() (*time.Time, error) {
	if t.DateString == "" {
		return nil, nil
	}
	parsed, err := ParseTimestamp(t.DateString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date '%s': %w", t.DateString, err)
	}
	return &parsed, nil
}

// TransactionPage is one page of a cursor-paginated transaction listing.
// An empty Next means there are no more pages.
type TransactionPage struct {
	Results []Transaction
	Next    string
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp shapes the aggregator emits: RFC 3339,
// "YYYY-MM-DD hh:mm:ss" and date-only. Results are in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// decodeResults decodes a {"results": [...]} envelope, keeping each element
// verbatim alongside its typed form.
func decodeResults(body []byte) ([]json.RawMessage, string, error) {
	var envelope struct {
		Results []json.RawMessage `json:"results"`
		Next    *string           `json:"next"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	next := ""
	if envelope.Next != nil {
		next = *envelope.Next
	}
	return envelope.Results, next, nil
}
