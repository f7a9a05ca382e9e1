package openfinance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ofsync/internal/domain/account"
	"ofsync/internal/domain/link"
	"ofsync/internal/domain/synclog"
	"ofsync/internal/domain/transaction"
	ofclient "ofsync/internal/infrastructure/openfinance"
)

// memLinks is an in-memory link.Repository with the same terminal guard as
// the SQL implementation.
type memLinks struct {
	mu      sync.Mutex
	links   map[string]*link.Link
	updates int
}

func newMemLinks(links ...*link.Link) *memLinks {
	m := &memLinks{links: make(map[string]*link.Link)}
	for _, l := range links {
		cp := *l
		m.links[l.ID] = &cp
	}
	return m
}

func (m *memLinks) get(id string) *link.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return nil
	}
	cp := *l
	return &cp
}

func (m *memLinks) Create(ctx context.Context, params link.CreateParams) (*link.Link, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	l := &link.Link{
		ID:        params.ID,
		UserID:    params.UserID,
		Provider:  params.Provider,
		Status:    link.Transition("", link.EventConnectInitiated),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.links[l.ID] = l
	cp := *l
	return &cp, nil
}

func (m *memLinks) GetByID(ctx context.Context, id string) (*link.Link, error) {
	if l := m.get(id); l != nil {
		return l, nil
	}
	return nil, link.ErrLinkNotFound
}

func (m *memLinks) GetByProviderLinkID(ctx context.Context, providerLinkID string) (*link.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.ProviderLinkID == providerLinkID && !l.Status.IsTerminal() {
			cp := *l
			return &cp, nil
		}
	}
	return nil, link.ErrLinkNotFound
}

func (m *memLinks) ListByUserID(ctx context.Context, userID string) ([]*link.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*link.Link
	for _, l := range m.links {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLinks) ListSyncable(ctx context.Context) ([]*link.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*link.Link
	for _, l := range m.links {
		if l.Syncable() {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLinks) UpdateState(ctx context.Context, id string, u link.StateUpdate) (*link.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return nil, link.ErrLinkNotFound
	}
	if l.Status.IsTerminal() && u.Status != l.Status && !(l.Status == link.StatusExpired && u.Status == link.StatusRevoked) {
		return nil, link.ErrLinkTerminal
	}
	l.Status = u.Status
	if u.ErrorMessage != nil {
		l.ErrorMessage = *u.ErrorMessage
	}
	if u.ProviderLinkID != nil {
		l.ProviderLinkID = *u.ProviderLinkID
	}
	if u.InstitutionName != nil {
		l.InstitutionName = *u.InstitutionName
	}
	if u.ConsentExpiresAt != nil {
		t := *u.ConsentExpiresAt
		l.ConsentExpiresAt = &t
	}
	l.UpdatedAt = time.Now().UTC()
	m.updates++
	cp := *l
	return &cp, nil
}

func (m *memLinks) MarkSynced(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return link.ErrLinkNotFound
	}
	l.LastSyncedAt = &at
	return nil
}

// memAccounts keys rows by (link, provider account id).
type memAccounts struct {
	mu    sync.Mutex
	rows  map[string]*account.Account
	links *memLinks
}

func newMemAccounts(links *memLinks) *memAccounts {
	return &memAccounts{rows: make(map[string]*account.Account), links: links}
}

func (m *memAccounts) Upsert(ctx context.Context, p account.UpsertParams) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.LinkID + "|" + p.ProviderAccountID
	a, ok := m.rows[key]
	if !ok {
		a = &account.Account{ID: uuid.NewString(), LinkID: p.LinkID, ProviderAccountID: p.ProviderAccountID}
		m.rows[key] = a
	}
	a.Name = p.Name
	a.Type = p.Type
	a.Subtype = p.Subtype
	a.Currency = p.Currency
	a.BalanceCurrent = p.BalanceCurrent
	a.BalanceAvailable = p.BalanceAvailable
	a.BalanceUpdatedAt = p.BalanceUpdatedAt
	a.Raw = p.Raw
	cp := *a
	return &cp, nil
}

func (m *memAccounts) ListByUserID(ctx context.Context, userID, linkID string) ([]*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.Account
	for _, a := range m.rows {
		l := m.links.get(a.LinkID)
		if l == nil || l.UserID != userID {
			continue
		}
		if linkID != "" && a.LinkID != linkID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAccounts) GetForUser(ctx context.Context, userID, accountID string) (*account.Account, error) {
	all, _ := m.ListByUserID(ctx, userID, "")
	for _, a := range all {
		if a.ID == accountID {
			return a, nil
		}
	}
	return nil, account.ErrAccountNotFound
}

func (m *memAccounts) CountByUserID(ctx context.Context, userID string) (int, error) {
	all, _ := m.ListByUserID(ctx, userID, "")
	return len(all), nil
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memTxns keys rows by (account, provider transaction id).
type memTxns struct {
	mu   sync.Mutex
	rows map[string]*transaction.Transaction
	err  error
}

func newMemTxns() *memTxns {
	return &memTxns{rows: make(map[string]*transaction.Transaction)}
}

func (m *memTxns) Upsert(ctx context.Context, p transaction.UpsertParams) (*transaction.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	key := p.AccountID + "|" + p.ProviderTransactionID
	t, ok := m.rows[key]
	if !ok {
		t = &transaction.Transaction{ID: uuid.NewString(), AccountID: p.AccountID, ProviderTransactionID: p.ProviderTransactionID}
		m.rows[key] = t
	}
	t.Amount = p.Amount
	t.Type = p.Type
	t.Status = p.Status
	t.Category = p.Category
	t.Description = p.Description
	t.Date = p.Date
	cp := *t
	return &cp, !ok, nil
}

func (m *memTxns) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	return nil, nil
}

func (m *memTxns) CountByUserID(ctx context.Context, userID string) (int, error) {
	return m.count(), nil
}

func (m *memTxns) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.rows {
		if t.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (m *memTxns) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memLogs enforces that finished rows are not rewritten.
type memLogs struct {
	mu   sync.Mutex
	rows []*synclog.SyncLog
}

func (m *memLogs) Start(ctx context.Context, linkID string) (*synclog.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := &synclog.SyncLog{ID: fmt.Sprintf("log-%d", len(m.rows)+1), LinkID: linkID, Status: synclog.StatusRunning, StartedAt: time.Now()}
	m.rows = append(m.rows, l)
	cp := *l
	return &cp, nil
}

func (m *memLogs) Finish(ctx context.Context, id string, r synclog.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.rows {
		if l.ID == id && l.Status == synclog.StatusRunning {
			now := time.Now()
			l.Status = r.Status
			l.AccountsFetched = r.AccountsFetched
			l.TransactionsFetched = r.TransactionsFetched
			l.ErrorMessage = r.ErrorMessage
			l.FinishedAt = &now
		}
	}
	return nil
}

func (m *memLogs) ListByLinkID(ctx context.Context, linkID string, limit int) ([]*synclog.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*synclog.SyncLog
	for _, l := range m.rows {
		if l.LinkID == linkID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLogs) last() *synclog.SyncLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return nil
	}
	cp := *m.rows[len(m.rows)-1]
	return &cp
}

// MockClient is a mock implementation of ofclient.ClientInterface
type MockClient struct {
	AuthenticateFunc       func(ctx context.Context) (string, error)
	CreateConnectTokenFunc func(ctx context.Context, apiKey string, req ofclient.ConnectTokenRequest) (string, error)
	ListAccountsFunc       func(ctx context.Context, apiKey, itemID string) ([]ofclient.Account, error)
	ListTransactionsFunc   func(ctx context.Context, apiKey, accountID, cursor string, pageSize int) (*ofclient.TransactionPage, error)
	DeleteItemFunc         func(ctx context.Context, apiKey, itemID string) error
}

func (m *MockClient) Authenticate(ctx context.Context) (string, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx)
	}
	return "api-key", nil
}

func (m *MockClient) CreateConnectToken(ctx context.Context, apiKey string, req ofclient.ConnectTokenRequest) (string, error) {
	if m.CreateConnectTokenFunc != nil {
		return m.CreateConnectTokenFunc(ctx, apiKey, req)
	}
	return "connect-token", nil
}

func (m *MockClient) ListAccounts(ctx context.Context, apiKey, itemID string) ([]ofclient.Account, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, apiKey, itemID)
	}
	return nil, nil
}

func (m *MockClient) ListTransactions(ctx context.Context, apiKey, accountID, cursor string, pageSize int) (*ofclient.TransactionPage, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, apiKey, accountID, cursor, pageSize)
	}
	return &ofclient.TransactionPage{}, nil
}

func (m *MockClient) DeleteItem(ctx context.Context, apiKey, itemID string) error {
	if m.DeleteItemFunc != nil {
		return m.DeleteItemFunc(ctx, apiKey, itemID)
	}
	return nil
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) EnqueueSync(ctx context.Context, linkID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, linkID)
	return q.err
}

func (q *fakeQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	links []*link.Link
}

func (n *fakeNotifier) LinkStatusChanged(ctx context.Context, l *link.Link) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, l)
	return nil
}

// memLocker is a process-local Locker.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}
