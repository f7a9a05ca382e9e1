package openfinance

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ofsync/internal/domain/link"
	ofclient "ofsync/internal/infrastructure/openfinance"
	"ofsync/internal/shared/logger"
)

// ConnectConfig configures where users are sent to grant consent.
type ConnectConfig struct {
	ProviderName string
	ConnectURL   string
	WebhookURL   string
}

// ConnectResult is returned to the caller that started a connection.
type ConnectResult struct {
	LinkID     string `json:"link_id"`
	ConnectURL string `json:"connect_url"`
}

// ConnectService creates pending links and hands the user off to the
// aggregator's consent flow. It also handles user-initiated disconnects.
type ConnectService struct {
	client ofclient.ClientInterface
	links  link.Repository
	cfg    ConnectConfig
}

// NewConnectService creates a new connect service
func NewConnectService(client ofclient.ClientInterface, links link.Repository, cfg ConnectConfig) *ConnectService {
	return &ConnectService{client: client, links: links, cfg: cfg}
}

// Connect creates one pending link for userID and returns the URL the user
// must visit. When the aggregator fails, the pending link is kept.
func (s *ConnectService) Connect(ctx context.Context, userID string) (*ConnectResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	linkID := uuid.NewString()
	log, ctx := logger.With(ctx, zap.String("link_id", linkID))

	l, err := s.links.Create(ctx, link.CreateParams{
		ID:       linkID,
		UserID:   userID,
		Provider: s.cfg.ProviderName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	apiKey, err := s.client.Authenticate(ctx)
	if err != nil {
		log.Error("aggregator authentication failed", zap.Error(err))
		return nil, fmt.Errorf("failed to authenticate with aggregator: %w", err)
	}

	token, err := s.client.CreateConnectToken(ctx, apiKey, ofclient.ConnectTokenRequest{
		ClientUserID: l.ID,
		WebhookURL:   s.cfg.WebhookURL,
	})
	if err != nil {
		log.Error("connect token request failed", zap.Error(err))
		return nil, fmt.Errorf("failed to create connect token: %w", err)
	}

	connectURL, err := buildConnectURL(s.cfg.ConnectURL, token, l.ID)
	if err != nil {
		return nil, err
	}

	log.Info("link created", zap.String("status", string(l.Status)))
	return &ConnectResult{LinkID: l.ID, ConnectURL: connectURL}, nil
}

// Disconnect revokes a link owned by userID and asks the aggregator to drop
// the item. The aggregator call is best effort: the link is revoked locally
// even if it fails. Disconnecting a revoked link is a no-op.
func (s *ConnectService) Disconnect(ctx context.Context, userID, linkID string) (*link.Link, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	l, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, link.ErrLinkNotFound
	}

	log, ctx := logger.With(ctx, zap.String("link_id", l.ID))

	next := link.Transition(l.Status, link.EventDisconnected)
	if next == l.Status {
		return l, nil
	}

	updated, err := s.links.UpdateState(ctx, l.ID, link.StateUpdate{Status: next})
	if err != nil {
		return nil, fmt.Errorf("failed to revoke link: %w", err)
	}
	log.Info("link disconnected", zap.String("from", string(l.Status)))

	if l.ProviderLinkID != "" {
		s.deleteItem(ctx, log, l.ProviderLinkID)
	}

	return updated, nil
}

func (s *ConnectService) deleteItem(ctx context.Context, log *zap.Logger, itemID string) {
	apiKey, err := s.client.Authenticate(ctx)
	if err != nil {
		log.Warn("could not authenticate to delete item", zap.Error(err))
		return
	}
	if err := s.client.DeleteItem(ctx, apiKey, itemID); err != nil {
		log.Warn("aggregator item deletion failed", zap.String("provider_link_id", itemID), zap.Error(err))
	}
}

func buildConnectURL(base, token, linkID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid connect URL: %w", err)
	}
	q := u.Query()
	q.Set("connectToken", token)
	q.Set("clientUserId", linkID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
