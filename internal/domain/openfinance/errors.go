// Package openfinance holds the link lifecycle and synchronization engine:
// connect, webhook processing, syncing and the per-user summary.
package openfinance

import "errors"

// Domain errors
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrSignatureMissing  = errors.New("webhook signature missing")
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	ErrInvalidPayload    = errors.New("invalid webhook payload")
	ErrLinkNotSyncable   = errors.New("link is not connected or has no provider link id")
)
