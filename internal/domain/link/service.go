package link

import (
	"context"
	"errors"
)

// Service contains the read-side business logic for links.
type Service struct {
	repo Repository
}

// NewService creates a new link service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListForUser returns every link owned by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Link, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	links, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []*Link{}
	}
	return links, nil
}

// GetForUser returns the link only if userID owns it. Links owned by other
// users are reported as ErrLinkNotFound.
func (s *Service) GetForUser(ctx context.Context, userID, linkID string) (*Link, error) {
	if userID == "" || linkID == "" {
		return nil, ErrInvalidInput
	}
	l, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, ErrLinkNotFound
	}
	return l, nil
}

// IsNotFound reports whether err means the link does not exist for the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLinkNotFound)
}
