package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ofsync/internal/domain/link"
	"ofsync/internal/shared/logger"
)

// Service turns link lifecycle changes into push notifications.
type Service struct {
	messenger Messenger
}

// NewService creates a new notification service. A nil messenger disables
// delivery without failing callers.
func NewService(messenger Messenger) *Service {
	return &Service{messenger: messenger}
}

// Enabled reports whether notifications will actually be delivered.
func (s *Service) Enabled() bool {
	return s != nil && s.messenger != nil
}

// LinkStatusChanged notifies the owner that l entered an error-like status.
// Other statuses are silently skipped.
func (s *Service) LinkStatusChanged(ctx context.Context, l *link.Link) error {
	if !s.Enabled() || l == nil {
		return nil
	}

	tmpl, ok := statusTemplates[l.Status]
	if !ok {
		return nil
	}

	institution := l.InstitutionName
	if institution == "" {
		institution = "your bank"
	}

	msg := Message{
		Title: tmpl.title,
		Body:  fmt.Sprintf(tmpl.body, institution),
		Data: map[string]string{
			"type":    TypeLinkEvent,
			"link_id": l.ID,
			"status":  string(l.Status),
			"route":   RouteAccounts,
		},
	}

	if err := s.messenger.SendToTopic(ctx, Topic(l.UserID), msg); err != nil {
		return fmt.Errorf("send link status notification: %w", err)
	}

	logger.FromContext(ctx).Debug("link status notification sent",
		zap.String("link_id", l.ID),
		zap.String("status", string(l.Status)),
	)
	return nil
}
