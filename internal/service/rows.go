package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/phone"
	"github.com/LeventeLantos/result-messaging/internal/results"
	"github.com/LeventeLantos/result-messaging/internal/sheet"
)

// PhoneColumns lists the recognized phone headers, guardian before student.
var PhoneColumns = []string{
	"Guardian  Phone No",
	sheet.ColGuardianPhone,
	"Guardian Phone",
	"GuardianPhone",
	sheet.ColStudentPhone,
	"Student Phone",
}

// RecipientRow is one spreadsheet row reduced to what sending needs.
type RecipientRow struct {
	Index      int      `json:"index"`
	Candidates []string `json:"candidates"`
	Message    string   `json:"message"`
}

// RecipientRowsFrom extracts phone candidates and the Result text from rows.
// Candidates that normalize to the same number are tried once.
func RecipientRowsFrom(rows []results.Row) []RecipientRow {
	out := make([]RecipientRow, 0, len(rows))
	for i, row := range rows {
		rr := RecipientRow{Index: i, Candidates: []string{}}

		seen := map[string]bool{}
		for _, col := range PhoneColumns {
			raw := strings.TrimSpace(results.Text(row[col]))
			if raw == "" {
				continue
			}
			key := phone.Normalize(raw)
			if seen[key] {
				continue
			}
			seen[key] = true
			rr.Candidates = append(rr.Candidates, raw)
		}

		rr.Message = strings.TrimSpace(results.Text(row[results.ColResult]))
		out = append(out, rr)
	}
	return out
}

type RowOutcome struct {
	Index     int    `json:"index"`
	Delivered bool   `json:"delivered"`
	Number    string `json:"number,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type RowResult struct {
	SentCount   int               `json:"sent_count"`
	FailedCount int               `json:"failed_count"`
	Rows        []RowOutcome      `json:"rows"`
	Successes   []model.Recipient `json:"successful_recipients"`
	// Failures holds every failed attempt of rows that were not delivered.
	Failures []model.Recipient `json:"failed_recipients"`
	Message  string            `json:"message"`
}

// DispatchRows sends each row's message to its first candidate number that
// the gateway accepts. Like Dispatch it ignores caller cancellation.
func (d *Dispatcher) DispatchRows(ctx context.Context, rows []RecipientRow) RowResult {
	ctx = context.WithoutCancel(ctx)
	res := RowResult{
		Rows:      make([]RowOutcome, 0, len(rows)),
		Successes: []model.Recipient{},
		Failures:  []model.Recipient{},
	}

	for _, row := range rows {
		outcome := RowOutcome{Index: row.Index}

		switch {
		case strings.TrimSpace(row.Message) == "":
			r := model.Recipient{Number: firstOr(row.Candidates), Reason: model.ReasonMissingMessage}
			r.Normalized = phone.Normalize(r.Number)
			d.fail(ctx, r)
			res.Failures = append(res.Failures, r)
			outcome.Reason = model.ReasonMissingMessage

		case len(row.Candidates) == 0:
			r := model.Recipient{Message: row.Message, Reason: model.ReasonNoPhone}
			d.fail(ctx, r)
			res.Failures = append(res.Failures, r)
			outcome.Reason = model.ReasonNoPhone

		default:
			var attempts []model.Recipient
			for _, c := range row.Candidates {
				r := d.sendOne(ctx, c, row.Message)
				if r.Sent {
					res.Successes = append(res.Successes, r)
					outcome.Delivered = true
					outcome.Number = r.Normalized
					break
				}
				attempts = append(attempts, r)
			}
			if !outcome.Delivered {
				res.Failures = append(res.Failures, attempts...)
				outcome.Reason = attempts[len(attempts)-1].Detail()
			}
		}

		if outcome.Delivered {
			res.SentCount++
		} else {
			res.FailedCount++
		}
		res.Rows = append(res.Rows, outcome)
	}

	res.Message = fmt.Sprintf("SMS sent to %d numbers. Failed: %d", res.SentCount, res.FailedCount)
	return res
}

func firstOr(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
