package http

import (
	"context"
	"time"

	"ofsync/internal/domain/account"
	"ofsync/internal/domain/link"
	"ofsync/internal/domain/openfinance"
	"ofsync/internal/domain/synclog"
	"ofsync/internal/domain/transaction"
)

// MockLinkRepo implements link.Repository for testing
type MockLinkRepo struct {
	CreateFunc              func(ctx context.Context, params link.CreateParams) (*link.Link, error)
	GetByIDFunc             func(ctx context.Context, id string) (*link.Link, error)
	GetByProviderLinkIDFunc func(ctx context.Context, providerLinkID string) (*link.Link, error)
	ListByUserIDFunc        func(ctx context.Context, userID string) ([]*link.Link, error)
	ListSyncableFunc        func(ctx context.Context) ([]*link.Link, error)
	UpdateStateFunc         func(ctx context.Context, id string, update link.StateUpdate) (*link.Link, error)
	MarkSyncedFunc          func(ctx context.Context, id string, at time.Time) error
}

func (m *MockLinkRepo) Create(ctx context.Context, params link.CreateParams) (*link.Link, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockLinkRepo) GetByID(ctx context.Context, id string) (*link.Link, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, link.ErrLinkNotFound
}

func (m *MockLinkRepo) GetByProviderLinkID(ctx context.Context, providerLinkID string) (*link.Link, error) {
	if m.GetByProviderLinkIDFunc != nil {
		return m.GetByProviderLinkIDFunc(ctx, providerLinkID)
	}
	return nil, link.ErrLinkNotFound
}

func (m *MockLinkRepo) ListByUserID(ctx context.Context, userID string) ([]*link.Link, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockLinkRepo) ListSyncable(ctx context.Context) ([]*link.Link, error) {
	if m.ListSyncableFunc != nil {
		return m.ListSyncableFunc(ctx)
	}
	return nil, nil
}

func (m *MockLinkRepo) UpdateState(ctx context.Context, id string, update link.StateUpdate) (*link.Link, error) {
	if m.UpdateStateFunc != nil {
		return m.UpdateStateFunc(ctx, id, update)
	}
	return nil, nil
}

func (m *MockLinkRepo) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if m.MarkSyncedFunc != nil {
		return m.MarkSyncedFunc(ctx, id, at)
	}
	return nil
}

// MockAccountRepo implements account.Repository for testing
type MockAccountRepo struct {
	UpsertFunc        func(ctx context.Context, params account.UpsertParams) (*account.Account, error)
	ListByUserIDFunc  func(ctx context.Context, userID, linkID string) ([]*account.Account, error)
	GetForUserFunc    func(ctx context.Context, userID, accountID string) (*account.Account, error)
	CountByUserIDFunc func(ctx context.Context, userID string) (int, error)
}

func (m *MockAccountRepo) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockAccountRepo) ListByUserID(ctx context.Context, userID, linkID string) ([]*account.Account, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID, linkID)
	}
	return nil, nil
}

func (m *MockAccountRepo) GetForUser(ctx context.Context, userID, accountID string) (*account.Account, error) {
	if m.GetForUserFunc != nil {
		return m.GetForUserFunc(ctx, userID, accountID)
	}
	return nil, account.ErrAccountNotFound
}

func (m *MockAccountRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	if m.CountByUserIDFunc != nil {
		return m.CountByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

// MockTransactionRepo implements transaction.Repository for testing
type MockTransactionRepo struct {
	UpsertFunc           func(ctx context.Context, params transaction.UpsertParams) (*transaction.Transaction, bool, error)
	ListFunc             func(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error)
	CountByUserIDFunc    func(ctx context.Context, userID string) (int, error)
	CountByAccountIDFunc func(ctx context.Context, accountID string) (int, error)
}

func (m *MockTransactionRepo) Upsert(ctx context.Context, params transaction.UpsertParams) (*transaction.Transaction, bool, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return nil, false, nil
}

func (m *MockTransactionRepo) List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockTransactionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	if m.CountByUserIDFunc != nil {
		return m.CountByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockTransactionRepo) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	if m.CountByAccountIDFunc != nil {
		return m.CountByAccountIDFunc(ctx, accountID)
	}
	return 0, nil
}

// MockSyncLogRepo implements synclog.Repository for testing
type MockSyncLogRepo struct {
	StartFunc        func(ctx context.Context, linkID string) (*synclog.SyncLog, error)
	FinishFunc       func(ctx context.Context, id string, result synclog.Result) error
	ListByLinkIDFunc func(ctx context.Context, linkID string, limit int) ([]*synclog.SyncLog, error)
}

func (m *MockSyncLogRepo) Start(ctx context.Context, linkID string) (*synclog.SyncLog, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, linkID)
	}
	return nil, nil
}

func (m *MockSyncLogRepo) Finish(ctx context.Context, id string, result synclog.Result) error {
	if m.FinishFunc != nil {
		return m.FinishFunc(ctx, id, result)
	}
	return nil
}

func (m *MockSyncLogRepo) ListByLinkID(ctx context.Context, linkID string, limit int) ([]*synclog.SyncLog, error) {
	if m.ListByLinkIDFunc != nil {
		return m.ListByLinkIDFunc(ctx, linkID, limit)
	}
	return nil, nil
}

// MockConnector implements Connector for testing
type MockConnector struct {
	ConnectFunc    func(ctx context.Context, userID string) (*openfinance.ConnectResult, error)
	DisconnectFunc func(ctx context.Context, userID, linkID string) (*link.Link, error)
}

func (m *MockConnector) Connect(ctx context.Context, userID string) (*openfinance.ConnectResult, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockConnector) Disconnect(ctx context.Context, userID, linkID string) (*link.Link, error) {
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc(ctx, userID, linkID)
	}
	return nil, nil
}

// MockSyncer implements Syncer for testing
type MockSyncer struct {
	SyncByIDFunc func(ctx context.Context, linkID string) (*openfinance.LinkSyncResult, error)
	SyncAllFunc  func(ctx context.Context) ([]*openfinance.LinkSyncResult, error)
}

func (m *MockSyncer) SyncByID(ctx context.Context, linkID string) (*openfinance.LinkSyncResult, error) {
	if m.SyncByIDFunc != nil {
		return m.SyncByIDFunc(ctx, linkID)
	}
	return &openfinance.LinkSyncResult{LinkID: linkID}, nil
}

func (m *MockSyncer) SyncAll(ctx context.Context) ([]*openfinance.LinkSyncResult, error) {
	if m.SyncAllFunc != nil {
		return m.SyncAllFunc(ctx)
	}
	return nil, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }
