package account

import (
	"context"
	"errors"
)

// Service contains the business logic for account reads
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListForUser returns the user's accounts, optionally narrowed to one link.
func (s *Service) ListForUser(ctx context.Context, userID, linkID string) ([]*Account, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	accounts, err := s.repo.ListByUserID(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*Account{}
	}
	return accounts, nil
}

// GetForUser retrieves an account, enforcing ownership through its link.
func (s *Service) GetForUser(ctx context.Context, userID, accountID string) (*Account, error) {
	if userID == "" || accountID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.GetForUser(ctx, userID, accountID)
}

// IsNotFound reports whether err means the account does not exist for the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}
