package transaction

import "context"

// Service contains the read-side business logic for transactions
type Service struct {
	repo Repository
}

// NewService creates a new transaction service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List validates the filter and returns one page of the user's transactions.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	txns, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []*Transaction{}
	}
	return txns, nil
}
