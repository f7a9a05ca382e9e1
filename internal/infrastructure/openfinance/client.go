package openfinance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ofsync/internal/shared/errs"
)

const (
	serviceName      = "aggregator"
	defaultTimeout   = 60 * time.Second
	authPath         = "/auth"
	connectTokenPath = "/connect_token"
	accountsPath     = "/accounts"
	transactionsPath = "/transactions"
	itemsPath        = "/items/"
	apiKeyHeader     = "X-API-KEY"
	maxResponseBytes = 16 << 20
)

// Config holds the service credentials for the aggregator.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client handles communication with the aggregator API. It holds no
// per-user state; the api key is fetched per operation.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new aggregator API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// Authenticate exchanges the service credentials for a short-lived api key.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	payload := map[string]string{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	}

	var resp struct {
		APIKey string `json:"apiKey"`
	}
	if err := c.do(ctx, "authenticate", http.MethodPost, authPath, "", payload, &resp); err != nil {
		return "", err
	}
	if resp.APIKey == "" {
		return "", externalError("authenticate", 0, errors.New("empty api key in response"))
	}
	return resp.APIKey, nil
}

// CreateConnectToken issues a token for the aggregator's connect widget.
func (c *Client) CreateConnectToken(ctx context.Context, apiKey string, req ConnectTokenRequest) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.do(ctx, "create connect token", http.MethodPost, connectTokenPath, apiKey, req, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", externalError("create connect token", 0, errors.New("empty access token in response"))
	}
	return resp.AccessToken, nil
}

// ListAccounts fetches every account under the item.
func (c *Client) ListAccounts(ctx context.Context, apiKey, itemID string) ([]Account, error) {
	q := url.Values{}
	q.Set("itemId", itemID)

	var body json.RawMessage
	if err := c.do(ctx, "list accounts", http.MethodGet, accountsPath+"?"+q.Encode(), apiKey, nil, &body); err != nil {
		return nil, err
	}

	raws, _, err := decodeResults(body)
	if err != nil {
		return nil, externalError("list accounts", 0, err)
	}

	accounts := make([]Account, 0, len(raws))
	for _, raw := range raws {
		var acc Account
		if err := json.Unmarshal(raw, &acc); err != nil {
			return nil, externalError("list accounts", 0, fmt.Errorf("failed to decode account: %w", err))
		}
		acc.Raw = raw
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// ListTransactions fetches one page of an account's transactions. An empty
// cursor requests the first page.
func (c *Client) ListTransactions(ctx context.Context, apiKey, accountID, cursor string, pageSize int) (*TransactionPage, error) {
	q := url.Values{}
	q.Set("accountId", accountID)
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var body json.RawMessage
	if err := c.do(ctx, "list transactions", http.MethodGet, transactionsPath+"?"+q.Encode(), apiKey, nil, &body); err != nil {
		return nil, err
	}

	raws, next, err := decodeResults(body)
	if err != nil {
		return nil, externalError("list transactions", 0, err)
	}

	page := &TransactionPage{Results: make([]Transaction, 0, len(raws)), Next: next}
	for _, raw := range raws {
		var txn Transaction
		if err := json.Unmarshal(raw, &txn); err != nil {
			return nil, externalError("list transactions", 0, fmt.Errorf("failed to decode transaction: %w", err))
		}
		txn.Raw = raw
		page.Results = append(page.Results, txn)
	}
	return page, nil
}

// DeleteItem removes the item at the aggregator. An item that no longer
// exists counts as deleted.
func (c *Client) DeleteItem(ctx context.Context, apiKey, itemID string) error {
	err := c.do(ctx, "delete item", http.MethodDelete, itemsPath+url.PathEscape(itemID), apiKey, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// do sends one JSON request and decodes a 2xx body into out. Failures are
// returned as *errs.ExternalServiceError wrapping an *APIError when the
// aggregator answered.
func (c *Client) do(ctx context.Context, op, method, path, apiKey string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return externalError(op, 0, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return externalError(op, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return externalError(op, resp.StatusCode, newAPIError(resp.StatusCode, body))
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return externalError(op, resp.StatusCode, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return nil
}

func externalError(op string, status int, err error) *errs.ExternalServiceError {
	transient := false
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		transient = apiErr.Temporary()
	case status == 0:
		// transport failure or timeout
		transient = isTransportError(err)
	}
	return &errs.ExternalServiceError{
		Service:    serviceName,
		Operation:  op,
		StatusCode: status,
		Transient:  transient,
		Err:        err,
	}
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded)
}
