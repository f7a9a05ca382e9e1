package openfinance

import (
	"context"
)

// ClientInterface defines the methods required from the aggregator API client.
// Every call takes a short-lived apiKey obtained from Authenticate.
type ClientInterface interface {
	Authenticate(ctx context.Context) (string, error)
	CreateConnectToken(ctx context.Context, apiKey string, req ConnectTokenRequest) (string, error)
	ListAccounts(ctx context.Context, apiKey, itemID string) ([]Account, error)
	ListTransactions(ctx context.Context, apiKey, accountID, cursor string, pageSize int) (*TransactionPage, error)
	DeleteItem(ctx context.Context, apiKey, itemID string) error
}
