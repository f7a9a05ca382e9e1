package notification

import "context"

// Messenger delivers a push message to every device subscribed to topic.
// The infrastructure layer backs it with Firebase Cloud Messaging.
type Messenger interface {
	SendToTopic(ctx context.Context, topic string, msg Message) error
}
