package cache

import (
	"context"
	"time"

	"github.com/LeventeLantos/result-messaging/internal/model"
)

// Receipt records one accepted send.
type Receipt struct {
	Number     string    `json:"number"`
	Normalized string    `json:"normalized"`
	Info       string    `json:"info"`
	SentAt     time.Time `json:"sent_at"`
}

type ReceiptCache interface {
	StoreSent(ctx context.Context, userID string, r model.Recipient, sentAt time.Time) error
	// Recent returns up to n receipts, newest first.
	Recent(ctx context.Context, userID string, n int) ([]Receipt, error)
}

type BalanceCache interface {
	GetBalance(ctx context.Context) (string, bool)
	SetBalance(ctx context.Context, balance string) error
}

// Noop is used when Redis is not configured.
type Noop struct{}

func (Noop) StoreSent(context.Context, string, model.Recipient, time.Time) error { return nil }
func (Noop) Recent(context.Context, string, int) ([]Receipt, error)              { return []Receipt{}, nil }
func (Noop) GetBalance(context.Context) (string, bool)                           { return "", false }
func (Noop) SetBalance(context.Context, string) error                            { return nil }
