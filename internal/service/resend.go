package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/repo"
)

// Per-item resend statuses.
const (
	StatusResolved        = "resolved"
	StatusFailed          = "failed"
	StatusNotFound        = "not_found"
	StatusAlreadyResolved = "already_resolved"
	StatusSent            = "sent"
	// StatusError marks an item the store could not load or resolve. When the
	// send itself went through, Info says so.
	StatusError = "error"
)

type ResendItem struct {
	ID         string `json:"id,omitempty"`
	Number     string `json:"number,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Status     string `json:"status"`
	Info       string `json:"info,omitempty"`
}

type ResendResult struct {
	Resolved int          `json:"resolved"`
	Failed   int          `json:"failed"`
	NotFound int          `json:"not_found"`
	Errors   int          `json:"errors"`
	Items    []ResendItem `json:"items"`
}

func (r *ResendResult) add(item ResendItem) {
	switch item.Status {
	case StatusResolved, StatusSent:
		r.Resolved++
	case StatusFailed:
		r.Failed++
	case StatusNotFound:
		r.NotFound++
	case StatusError:
		r.Errors++
	}
	r.Items = append(r.Items, item)
}

// ResendRecord is a failure supplied directly by the client. Records with an
// ID are resent from the store; the others are sent as given.
type ResendRecord struct {
	ID             string `json:"id"`
	OriginalNumber string `json:"original_number"`
	Number         string `json:"number"`
	Message        string `json:"message" validate:"required_without=ID"`
}

func (r ResendRecord) number() string {
	if r.OriginalNumber != "" {
		return r.OriginalNumber
	}
	return r.Number
}

// ResendByIDs re-dispatches stored failures. A successful resend resolves the
// record in place; a failed one leaves it unresolved. No new records are made.
// Store errors are reported per item and never abort the remaining ids.
func (m *Messaging) ResendByIDs(ctx context.Context, caller Caller, ids []string) (ResendResult, error) {
	ctx = context.WithoutCancel(ctx)
	res := ResendResult{Items: make([]ResendItem, 0, len(ids))}
	for _, id := range ids {
		res.add(m.resendOne(ctx, caller, id))
	}
	return res, nil
}

// ResendRecords resends raw records. Records without message text fail
// without a gateway call and are not stored again.
func (m *Messaging) ResendRecords(ctx context.Context, caller Caller, records []ResendRecord) (ResendResult, error) {
	ctx = context.WithoutCancel(ctx)
	res := ResendResult{Items: make([]ResendItem, 0, len(records))}

	var fresh []model.Recipient
	for _, rec := range records {
		if rec.ID != "" {
			res.add(m.resendOne(ctx, caller, rec.ID))
			continue
		}
		if strings.TrimSpace(rec.Message) == "" {
			res.add(ResendItem{Number: rec.number(), Status: StatusFailed, Info: model.ReasonMissingMessage})
			m.observeResend(StatusFailed)
			continue
		}

		out := m.dispatcher.Dispatch(ctx, rec.Message, []string{rec.number()})
		m.storeReceipts(ctx, caller, out.Successes)
		for _, r := range out.Successes {
			res.add(ResendItem{Number: r.Number, Normalized: r.Normalized, Status: StatusSent, Info: r.Info})
			m.observeResend(StatusSent)
		}
		for _, r := range out.Failures {
			res.add(ResendItem{Number: r.Number, Normalized: r.Normalized, Status: StatusFailed, Info: r.Detail()})
			m.observeResend(StatusFailed)
		}
		fresh = append(fresh, out.Failures...)
	}

	if _, err := m.failures.CreateMany(ctx, caller.UserID, fresh); err != nil {
		return res, fmt.Errorf("record failures: %w", err)
	}
	return res, nil
}

// Sweep resends up to batch of the oldest unresolved failures of all users.
// Cancelling ctx stops the sweep between items; the item in flight finishes.
func (m *Messaging) Sweep(ctx context.Context, batch int) (ResendResult, error) {
	pending, err := m.failures.OldestUnresolved(ctx, batch)
	if err != nil {
		return ResendResult{}, fmt.Errorf("load unresolved: %w", err)
	}

	work := context.WithoutCancel(ctx)
	res := ResendResult{Items: make([]ResendItem, 0, len(pending))}
	for _, f := range pending {
		if ctx.Err() != nil {
			break
		}
		res.add(m.resend(work, f))
	}

	m.logger.Info("resend sweep finished",
		"candidates", len(pending),
		"resolved", res.Resolved,
		"failed", res.Failed,
		"errors", res.Errors,
	)
	return res, nil
}

func (m *Messaging) resendOne(ctx context.Context, caller Caller, id string) ResendItem {
	f, err := m.failures.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !caller.Admin && f.UserID != caller.UserID) {
		m.observeResend(StatusNotFound)
		return ResendItem{ID: id, Status: StatusNotFound}
	}
	if err != nil {
		m.logger.Error("load failure for resend", "id", id, "err", err)
		m.observeResend(StatusError)
		return ResendItem{ID: id, Status: StatusError, Info: "failed to load record"}
	}
	if f.Resolved {
		m.observeResend(StatusAlreadyResolved)
		return ResendItem{ID: id, Number: f.OriginalNumber, Normalized: f.Normalized, Status: StatusAlreadyResolved}
	}
	return m.resend(ctx, f)
}

func (m *Messaging) resend(ctx context.Context, f model.FailedSMS) ResendItem {
	out := m.dispatcher.Dispatch(ctx, f.Message, []string{f.OriginalNumber})

	item := ResendItem{ID: f.ID, Number: f.OriginalNumber}
	if len(out.Successes) == 1 {
		r := out.Successes[0]
		item.Normalized, item.Info = r.Normalized, r.Info
		m.storeReceipts(ctx, Caller{UserID: f.UserID}, out.Successes)
		item.Status = StatusResolved
		if err := m.failures.MarkResolved(ctx, f.ID); err != nil {
			m.logger.Error("mark resolved failed", "id", f.ID, "err", err)
			item.Status = StatusError
			item.Info = "sent but not marked resolved"
		}
	} else {
		r := out.Failures[0]
		item.Normalized, item.Info = r.Normalized, r.Detail()
		item.Status = StatusFailed
	}

	m.observeResend(item.Status)
	return item
}

func (m *Messaging) observeResend(status string) {
	if m.onResend != nil {
		m.onResend(status)
	}
}
