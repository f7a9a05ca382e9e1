package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"ofsync/internal/domain/notification"
	"ofsync/internal/shared/logger"
)

// NewApp initializes a Firebase app from a service-account file.
func NewApp(ctx context.Context, credentialsFile string) (*firebase.App, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}

// sender is the part of *messaging.Client the messenger uses.
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client implements notification.Messenger using Firebase Cloud Messaging
// topics.
type Client struct {
	msgClient sender
}

var _ notification.Messenger = (*Client)(nil)

// NewClient returns an FCM client for app.
func NewClient(ctx context.Context, app *firebase.App) (*Client, error) {
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}
	return &Client{msgClient: msgClient}, nil
}

// SendToTopic sends msg to every device subscribed to topic.
func (c *Client) SendToTopic(ctx context.Context, topic string, msg notification.Message) error {
	id, err := c.msgClient.Send(ctx, buildTopicMessage(topic, msg))
	if err != nil {
		if messaging.IsInvalidArgument(err) {
			return fmt.Errorf("invalid FCM message for topic %s: %w", topic, err)
		}
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	logger.FromContext(ctx).Debug("FCM topic message sent",
		zap.String("topic", topic),
		zap.String("message_id", id),
	)
	return nil
}

func buildTopicMessage(topic string, msg notification.Message) *messaging.Message {
	out := &messaging.Message{
		Topic: topic,
		Data:  msg.Data,
	}
	if msg.Title != "" || msg.Body != "" {
		out.Notification = &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		}
	}
	return out
}
