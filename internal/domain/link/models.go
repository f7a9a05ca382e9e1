// Package link models a user's consent-backed connection to one bank at the
// aggregator and the lifecycle that connection moves through.
package link

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a Link.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusError      Status = "error"
	StatusRevoked    Status = "revoked"
	StatusExpired    Status = "expired"
)

var validStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusConnecting: {},
	StatusConnected:  {},
	StatusError:      {},
	StatusRevoked:    {},
	StatusExpired:    {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := validStatuses[s]
	return ok
}

// IsTerminal reports whether a link in this status can never change again
// (other than a user disconnect recording revoked).
func (s Status) IsTerminal() bool {
	return s == StatusRevoked || s == StatusExpired
}

// IsErrorLike reports whether the status counts against connection health.
func (s Status) IsErrorLike() bool {
	return s == StatusError || s == StatusRevoked || s == StatusExpired
}

// Domain errors
var (
	ErrLinkNotFound = errors.New("link not found")
	ErrLinkTerminal = errors.New("link is in a terminal status")
	ErrInvalidInput = errors.New("invalid input")
)

// Link is one user-initiated bank connection attempt.
type Link struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Provider         string     `json:"provider"`
	ProviderLinkID   string     `json:"provider_link_id,omitempty"`
	InstitutionName  string     `json:"institution_name,omitempty"`
	Status           Status     `json:"status"`
	ConsentExpiresAt *time.Time `json:"consent_expires_at"`
	LastSyncedAt     *time.Time `json:"last_synced_at"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Syncable reports whether the Sync Engine may run for this link.
func (l *Link) Syncable() bool {
	return l.Status == StatusConnected && l.ProviderLinkID != ""
}

// CreateParams contains parameters for creating a pending link.
type CreateParams struct {
	ID       string
	UserID   string
	Provider string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.ID == "" {
		return errors.New("link ID is required")
	}
	if p.UserID == "" {
		return errors.New("user ID is required")
	}
	if p.Provider == "" {
		return errors.New("provider is required")
	}
	return nil
}

// StateUpdate is an idempotent assignment of lifecycle fields. Nil pointer
// fields are left untouched; an empty ErrorMessage clears the stored one.
type StateUpdate struct {
	Status           Status
	ErrorMessage     *string
	ProviderLinkID   *string
	InstitutionName  *string
	ConsentExpiresAt *time.Time
}
