package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/result-messaging/internal/cache"
	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/repo"
)

// Caller identifies who a messaging operation acts for.
type Caller struct {
	UserID string
	// Admin callers see and resend failures of every user.
	Admin bool
}

type BalanceSource interface {
	Balance(ctx context.Context) (string, error)
}

// Messaging ties dispatch to failure bookkeeping and the receipts journal.
type Messaging struct {
	dispatcher *Dispatcher
	failures   repo.FailedSMSRepository
	receipts   cache.ReceiptCache
	logger     *slog.Logger
	now        func() time.Time

	gateway  BalanceSource
	balances cache.BalanceCache

	onResend func(status string)
}

func NewMessaging(d *Dispatcher, failures repo.FailedSMSRepository, receipts cache.ReceiptCache, logger *slog.Logger) *Messaging {
	if receipts == nil {
		receipts = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Messaging{
		dispatcher: d,
		failures:   failures,
		receipts:   receipts,
		logger:     logger,
		now:        time.Now,
		balances:   cache.Noop{},
	}
}

// WithBalance enables Balance; c may be nil to disable caching.
func (m *Messaging) WithBalance(src BalanceSource, c cache.BalanceCache) *Messaging {
	m.gateway = src
	if c != nil {
		m.balances = c
	}
	return m
}

// WithResendHook registers a callback invoked with each resend item status.
func (m *Messaging) WithResendHook(fn func(status string)) *Messaging {
	m.onResend = fn
	return m
}

// SendManual sends one message to every number and records the failures.
// Persistence problems are returned alongside the dispatch result, which is
// always complete. The send and its bookkeeping outlive a cancelled ctx.
func (m *Messaging) SendManual(ctx context.Context, caller Caller, message string, numbers []string) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	res := m.dispatcher.Dispatch(ctx, message, numbers)

	m.storeReceipts(ctx, caller, res.Successes)
	if _, err := m.failures.CreateMany(ctx, caller.UserID, res.Failures); err != nil {
		return res, fmt.Errorf("record failures: %w", err)
	}

	m.logger.Info("manual send finished",
		"user_id", caller.UserID,
		"sent", res.SentCount,
		"failed", res.FailedCount,
	)
	return res, nil
}

func (m *Messaging) SendRows(ctx context.Context, caller Caller, rows []RecipientRow) (RowResult, error) {
	ctx = context.WithoutCancel(ctx)
	res := m.dispatcher.DispatchRows(ctx, rows)

	m.storeReceipts(ctx, caller, res.Successes)
	if _, err := m.failures.CreateMany(ctx, caller.UserID, res.Failures); err != nil {
		return res, fmt.Errorf("record failures: %w", err)
	}

	m.logger.Info("row send finished",
		"user_id", caller.UserID,
		"rows", len(rows),
		"sent", res.SentCount,
		"failed", res.FailedCount,
	)
	return res, nil
}

type FailureQuery struct {
	UnresolvedOnly bool
	Limit          int
	Offset         int
}

func (m *Messaging) ListFailures(ctx context.Context, caller Caller, q FailureQuery) ([]model.FailedSMS, error) {
	f := repo.FailedFilter{
		Unresolved: q.UnresolvedOnly,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if !caller.Admin {
		f.UserID = caller.UserID
	}
	return m.failures.List(ctx, f)
}

func (m *Messaging) Recent(ctx context.Context, caller Caller, n int) ([]cache.Receipt, error) {
	return m.receipts.Recent(ctx, caller.UserID, n)
}

// Balance returns the gateway credit, served from cache when fresh.
func (m *Messaging) Balance(ctx context.Context) (string, error) {
	if m.gateway == nil {
		return "", errors.New("balance source not configured")
	}
	if b, ok := m.balances.GetBalance(ctx); ok {
		return b, nil
	}

	b, err := m.gateway.Balance(ctx)
	if err != nil {
		return "", err
	}
	if err := m.balances.SetBalance(ctx, b); err != nil {
		m.logger.Warn("balance cache write failed", "err", err)
	}
	return b, nil
}

func (m *Messaging) storeReceipts(ctx context.Context, caller Caller, sent []model.Recipient) {
	at := m.now()
	for _, r := range sent {
		if err := m.receipts.StoreSent(ctx, caller.UserID, r, at); err != nil {
			m.logger.Warn("receipt store failed", "normalized", r.Normalized, "err", err)
			return
		}
	}
}
