package openfinance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ofsync/internal/domain/account"
	"ofsync/internal/domain/link"
	"ofsync/internal/domain/transaction"
)

// Health is the overall state of a user's bank connections.
type Health string

const (
	HealthDisconnected Health = "disconnected"
	HealthHealthy      Health = "healthy"
	HealthWarning      Health = "warning"
)

// Balance policies decide which accounts count towards the aggregate balance.
const (
	BalancePolicyAll           = "all"
	BalancePolicyConnectedOnly = "connected_only"
)

// ConnectionHealth derives the user's connection health from their links'
// statuses: disconnected without any connected link, warning when a
// connected link coexists with an error-like one, healthy otherwise.
func ConnectionHealth(statuses []link.Status) Health {
	connected := false
	troubled := false
	for _, s := range statuses {
		if s == link.StatusConnected {
			connected = true
		}
		if s.IsErrorLike() {
			troubled = true
		}
	}

	switch {
	case !connected:
		return HealthDisconnected
	case troubled:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// Summary is the per-user overview served by the read API.
type Summary struct {
	TotalBalance       decimal.Decimal            `json:"total_balance"`
	BalancesByCurrency map[string]decimal.Decimal `json:"balances_by_currency"`
	AccountCount       int                        `json:"account_count"`
	TransactionCount   int                        `json:"transaction_count"`
	LinkCount          int                        `json:"link_count"`
	LastSyncedAt       *time.Time                 `json:"last_synced_at"`
	ConnectionHealth   Health                     `json:"connection_health"`
	BalancePolicy      string                     `json:"balance_policy"`
}

// SummaryService aggregates the stores into a Summary. It has no side effects.
type SummaryService struct {
	links    link.Repository
	accounts account.Repository
	txns     transaction.Repository
	policy   string
}

// NewSummaryService creates a summary service. Unknown policies fall back
// to BalancePolicyAll.
func NewSummaryService(links link.Repository, accounts account.Repository, txns transaction.Repository, policy string) *SummaryService {
	if policy != BalancePolicyConnectedOnly {
		policy = BalancePolicyAll
	}
	return &SummaryService{links: links, accounts: accounts, txns: txns, policy: policy}
}

// Summary builds the overview for userID. Empty stores yield zero values.
func (s *SummaryService) Summary(ctx context.Context, userID string) (*Summary, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	links, err := s.links.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	accounts, err := s.accounts.ListByUserID(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	txnCount, err := s.txns.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	statusByLink := make(map[string]link.Status, len(links))
	statuses := make([]link.Status, 0, len(links))
	var lastSynced *time.Time
	for _, l := range links {
		statusByLink[l.ID] = l.Status
		statuses = append(statuses, l.Status)
		if l.LastSyncedAt != nil && (lastSynced == nil || l.LastSyncedAt.After(*lastSynced)) {
			t := *l.LastSyncedAt
			lastSynced = &t
		}
	}

	summary := &Summary{
		TotalBalance:       decimal.Zero,
		BalancesByCurrency: map[string]decimal.Decimal{},
		AccountCount:       len(accounts),
		TransactionCount:   txnCount,
		LinkCount:          len(links),
		LastSyncedAt:       lastSynced,
		ConnectionHealth:   ConnectionHealth(statuses),
		BalancePolicy:      s.policy,
	}

	for _, a := range accounts {
		if s.policy == BalancePolicyConnectedOnly && statusByLink[a.LinkID] != link.StatusConnected {
			continue
		}
		summary.TotalBalance = summary.TotalBalance.Add(a.BalanceCurrent)
		summary.BalancesByCurrency[a.Currency] = summary.BalancesByCurrency[a.Currency].Add(a.BalanceCurrent)
	}

	return summary, nil
}
