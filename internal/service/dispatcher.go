package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeventeLantos/result-messaging/internal/client"
	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/phone"
)

type SendClient interface {
	Send(ctx context.Context, number, message string) client.Outcome
}

// Result is the outcome of one bulk send. Every input number appears exactly
// once in either Successes or Failures.
type Result struct {
	SentCount   int               `json:"sent_count"`
	FailedCount int               `json:"failed_count"`
	Successes   []model.Recipient `json:"successful_recipients"`
	Failures    []model.Recipient `json:"failed_recipients"`
	Message     string            `json:"message"`
}

// Dispatcher sends one message per recipient, sequentially, with no retries.
type Dispatcher struct {
	client SendClient

	onSent   func(ctx context.Context, r model.Recipient)
	onFailed func(ctx context.Context, r model.Recipient)
}

func NewDispatcher(client SendClient) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) WithHooks(
	onSent func(ctx context.Context, r model.Recipient),
	onFailed func(ctx context.Context, r model.Recipient),
) *Dispatcher {
	d.onSent = onSent
	d.onFailed = onFailed
	return d
}

// Dispatch sends message to every number. Caller cancellation does not cut the
// batch short: every number is attempted and each in-flight request completes.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, numbers []string) Result {
	ctx = context.WithoutCancel(ctx)
	res := Result{
		Successes: []model.Recipient{},
		Failures:  []model.Recipient{},
	}

	for _, n := range numbers {
		r := d.sendOne(ctx, n, message)
		if r.Sent {
			res.Successes = append(res.Successes, r)
		} else {
			res.Failures = append(res.Failures, r)
		}
	}

	res.SentCount = len(res.Successes)
	res.FailedCount = len(res.Failures)
	res.Message = fmt.Sprintf("Sent: %d, Failed: %d", res.SentCount, res.FailedCount)
	return res
}

func (d *Dispatcher) sendOne(ctx context.Context, number, message string) model.Recipient {
	r := model.Recipient{
		Number:     number,
		Normalized: phone.Normalize(number),
		Message:    message,
	}

	if strings.TrimSpace(message) == "" {
		r.Reason = model.ReasonMissingMessage
		d.fail(ctx, r)
		return r
	}
	if !phone.Valid(r.Normalized) {
		r.Reason = model.ReasonInvalidNumber
		d.fail(ctx, r)
		return r
	}

	out := d.client.Send(ctx, r.Normalized, message)
	r.Info = out.Info
	if !out.Sent {
		d.fail(ctx, r)
		return r
	}

	r.Sent = true
	if d.onSent != nil {
		d.onSent(ctx, r)
	}
	return r
}

func (d *Dispatcher) fail(ctx context.Context, r model.Recipient) {
	if d.onFailed != nil {
		d.onFailed(ctx, r)
	}
}
