package openfinance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ofsync/internal/domain/account"
	"ofsync/internal/domain/link"
	"ofsync/internal/domain/synclog"
	"ofsync/internal/domain/transaction"
	ofclient "ofsync/internal/infrastructure/openfinance"
	"ofsync/internal/shared/logger"
)

const (
	defaultRunTimeout  = 2 * time.Minute
	defaultPageSize    = 100
	defaultMaxPages    = 1000
	defaultConcurrency = 4
)

// SyncConfig bounds a single sync run and the all-links sweep.
type SyncConfig struct {
	RunTimeout  time.Duration
	PageSize    int
	MaxPages    int
	Concurrency int
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaultRunTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}

// LinkSyncResult summarizes one link's sync run. Error is empty on success.
type LinkSyncResult struct {
	LinkID       string `json:"link_id"`
	Accounts     int    `json:"accounts"`
	Transactions int    `json:"transactions"`
	Error        string `json:"error"`
	Skipped      bool   `json:"skipped,omitempty"`
}

// SyncEngine pulls accounts and transactions for connected links into the
// stores. It never changes a link's status.
type SyncEngine struct {
	client   ofclient.ClientInterface
	links    link.Repository
	accounts account.Repository
	txns     transaction.Repository
	logs     synclog.Repository
	locker   Locker
	cfg      SyncConfig
	now      func() time.Time
}

// NewSyncEngine creates a sync engine. locker may be nil, in which case
// concurrent runs for the same link are not serialized.
func NewSyncEngine(
	client ofclient.ClientInterface,
	links link.Repository,
	accounts account.Repository,
	txns transaction.Repository,
	logs synclog.Repository,
	locker Locker,
	cfg SyncConfig,
) *SyncEngine {
	return &SyncEngine{
		client:   client,
		links:    links,
		accounts: accounts,
		txns:     txns,
		logs:     logs,
		locker:   locker,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// SyncByID syncs a single link. Unknown ids return link.ErrLinkNotFound.
func (e *SyncEngine) SyncByID(ctx context.Context, linkID string) (*LinkSyncResult, error) {
	l, err := e.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	return e.SyncLink(ctx, l), nil
}

// SyncAll syncs every syncable link with bounded concurrency. Results keep
// the order in which links were listed.
func (e *SyncEngine) SyncAll(ctx context.Context) ([]*LinkSyncResult, error) {
	links, err := e.links.ListSyncable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable links: %w", err)
	}

	results := make([]*LinkSyncResult, len(links))

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, l := range links {
		g.Go(func() error {
			results[i] = e.SyncLink(ctx, l)
			return nil
		})
	}
	// SyncLink reports failures in its result, so no goroutine returns an error.
	g.Wait()

	logger.FromContext(ctx).Info("sync sweep finished", zap.Int("links", len(links)))
	return results, nil
}

// SyncLink runs one sync for l. Failures are reported in the result and the
// SyncLog rather than returned.
func (e *SyncEngine) SyncLink(ctx context.Context, l *link.Link) *LinkSyncResult {
	res := &LinkSyncResult{LinkID: l.ID}
	if !l.Syncable() {
		res.Error = ErrLinkNotSyncable.Error()
		return res
	}

	log, ctx := logger.With(ctx, zap.String("link_id", l.ID))

	if e.locker != nil {
		unlock, acquired, err := e.locker.TryLock(ctx, "link:"+l.ID)
		switch {
		case err != nil:
			log.Warn("sync lock unavailable, running unlocked", zap.Error(err))
		case !acquired:
			log.Info("sync already running for link, skipping")
			res.Skipped = true
			syncRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "skipped")))
			return res
		default:
			defer unlock()
		}
	}

	// The caller's snapshot may predate a disconnect or revocation that
	// landed before the lock was taken.
	current, err := e.links.GetByID(ctx, l.ID)
	if err != nil && !errors.Is(err, link.ErrLinkNotFound) {
		log.Error("failed to reload link", zap.Error(err))
		res.Error = fmt.Sprintf("failed to reload link: %v", err)
		return res
	}
	if current == nil || !current.Syncable() {
		log.Info("link no longer syncable, sync not started")
		res.Error = ErrLinkNotSyncable.Error()
		return res
	}
	l = current

	ctx, span := syncTracer.Start(ctx, "sync.link",
		trace.WithAttributes(attribute.String("link.id", l.ID)),
	)
	defer span.End()

	start := e.now()

	entry, err := e.logs.Start(ctx, l.ID)
	if err != nil {
		log.Error("failed to open sync log", zap.Error(err))
		res.Error = fmt.Sprintf("failed to open sync log: %v", err)
		span.SetStatus(codes.Error, res.Error)
		return res
	}

	failures := e.run(ctx, log, l, res)

	// bookkeeping must survive the run timeout or a cancelled caller
	bookCtx := context.WithoutCancel(ctx)

	status := synclog.StatusSuccess
	if len(failures) > 0 {
		status = synclog.StatusError
		res.Error = strings.Join(failures, "; ")
		span.SetStatus(codes.Error, res.Error)
	}

	if err := e.logs.Finish(bookCtx, entry.ID, synclog.Result{
		Status:              status,
		AccountsFetched:     res.Accounts,
		TransactionsFetched: res.Transactions,
		ErrorMessage:        res.Error,
	}); err != nil {
		log.Error("failed to finalize sync log", zap.String("sync_log_id", entry.ID), zap.Error(err))
	}

	syncRuns.Add(bookCtx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	syncDuration.Record(bookCtx, e.now().Sub(start).Seconds())
	syncTransactions.Add(bookCtx, int64(res.Transactions))

	log.Info("sync finished",
		zap.String("status", string(status)),
		zap.Int("accounts", res.Accounts),
		zap.Int("transactions", res.Transactions),
		zap.Duration("duration", e.now().Sub(start)),
	)
	return res
}

// run performs the fetch and upsert work under the run timeout and returns
// the failures it collected.
func (e *SyncEngine) run(ctx context.Context, log *zap.Logger, l *link.Link, res *LinkSyncResult) []string {
	var failures []string

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	apiKey, err := e.client.Authenticate(runCtx)
	if err != nil {
		return append(failures, fmt.Sprintf("authenticate: %v", err))
	}

	remote, err := e.client.ListAccounts(runCtx, apiKey, l.ProviderLinkID)
	if err != nil {
		return append(failures, fmt.Sprintf("list accounts: %v", err))
	}

	type syncedAccount struct {
		rowID      string
		providerID string
	}
	stored := make([]syncedAccount, 0, len(remote))

	for i, a := range remote {
		if runCtx.Err() != nil {
			failures = append(failures, abortMessage(runCtx, e.cfg.RunTimeout, len(remote)-i))
			break
		}
		row, err := e.upsertAccount(runCtx, l, a)
		if err != nil {
			log.Warn("account upsert failed", zap.String("provider_account_id", a.ID), zap.Error(err))
			failures = append(failures, fmt.Sprintf("account %s: %v", a.ID, err))
			continue
		}
		res.Accounts++
		stored = append(stored, syncedAccount{rowID: row.ID, providerID: a.ID})
	}

	for i, a := range stored {
		if runCtx.Err() != nil {
			failures = append(failures, abortMessage(runCtx, e.cfg.RunTimeout, len(stored)-i))
			break
		}
		n, err := e.syncTransactions(runCtx, apiKey, a.rowID, a.providerID)
		res.Transactions += n
		if err != nil {
			log.Warn("transaction sync aborted for account",
				zap.String("provider_account_id", a.providerID),
				zap.Int("transactions", n),
				zap.Error(err),
			)
			failures = append(failures, fmt.Sprintf("account %s transactions: %v", a.providerID, err))
		}
	}

	if err := e.links.MarkSynced(context.WithoutCancel(ctx), l.ID, e.now().UTC()); err != nil {
		failures = append(failures, fmt.Sprintf("mark synced: %v", err))
	}

	return failures
}

// syncTransactions follows the cursor for one account and returns how many
// distinct transactions were upserted.
func (e *SyncEngine) syncTransactions(ctx context.Context, apiKey, accountRowID, providerAccountID string) (int, error) {
	seenCursors := make(map[string]struct{})
	seenTxns := make(map[string]struct{})
	cursor := ""

	for page := 0; ; page++ {
		if page >= e.cfg.MaxPages {
			return len(seenTxns), fmt.Errorf("page limit of %d reached", e.cfg.MaxPages)
		}

		p, err := e.client.ListTransactions(ctx, apiKey, providerAccountID, cursor, e.cfg.PageSize)
		if err != nil {
			return len(seenTxns), err
		}

		for _, t := range p.Results {
			if err := e.upsertTransaction(ctx, accountRowID, t); err != nil {
				return len(seenTxns), fmt.Errorf("transaction %s: %w", t.ID, err)
			}
			seenTxns[t.ID] = struct{}{}
		}

		if p.Next == "" {
			return len(seenTxns), nil
		}
		if _, repeated := seenCursors[p.Next]; repeated || p.Next == cursor {
			return len(seenTxns), fmt.Errorf("pagination cursor %q repeated", p.Next)
		}
		seenCursors[p.Next] = struct{}{}
		cursor = p.Next
	}
}

func (e *SyncEngine) upsertAccount(ctx context.Context, l *link.Link, a ofclient.Account) (*account.Account, error) {
	updatedAt, err := a.GetUpdatedAt()
	if err != nil {
		return nil, err
	}
	if updatedAt == nil {
		now := e.now().UTC()
		updatedAt = &now
	}

	params := account.UpsertParams{
		LinkID:            l.ID,
		ProviderAccountID: a.ID,
		Name:              a.DisplayName(),
		Type:              a.Type,
		Subtype:           a.Subtype,
		Currency:          a.CurrencyCode,
		BalanceCurrent:    a.Balance,
		BalanceAvailable:  a.AvailableBalance(),
		BalanceUpdatedAt:  updatedAt,
		Raw:               a.Raw,
	}
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return e.accounts.Upsert(ctx, params)
}

func (e *SyncEngine) upsertTransaction(ctx context.Context, accountRowID string, t ofclient.Transaction) error {
	date, err := t.GetDate()
	if err != nil {
		return err
	}

	params := transaction.UpsertParams{
		AccountID:             accountRowID,
		ProviderTransactionID: t.ID,
		Amount:                t.Amount,
		Currency:              t.CurrencyCode,
		Type:                  t.Type,
		Status:                t.Status,
		Category:              t.CategoryName(),
		Description:           t.Description,
		MerchantName:          t.MerchantName(),
		Raw:                   t.Raw,
	}
	if date != nil {
		params.Date = *date
	}
	params.Normalize()
	if err := params.Validate(); err != nil {
		return err
	}

	_, _, err = e.txns.Upsert(ctx, params)
	return err
}

func abortMessage(ctx context.Context, timeout time.Duration, remaining int) string {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("run timeout of %s exceeded, %d account(s) not processed", timeout, remaining)
	}
	return fmt.Sprintf("run cancelled (%v), %d account(s) not processed", ctx.Err(), remaining)
}
