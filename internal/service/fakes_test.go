package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LeventeLantos/result-messaging/internal/client"
	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/repo"
)

// fakeClient accepts every number except those listed in reject. Like the real
// client it fails without sending once ctx is done. afterSend runs once the
// message counts as delivered to the gateway.
type fakeClient struct {
	mu        sync.Mutex
	reject    map[string]string
	calls     []string
	afterSend func()
}

func (f *fakeClient) Send(ctx context.Context, number, message string) client.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return client.Outcome{Info: err.Error()}
	}
	f.calls = append(f.calls, number)
	if f.afterSend != nil {
		f.afterSend()
	}
	if info, ok := f.reject[number]; ok {
		return client.Outcome{Sent: false, Info: info}
	}
	return client.Outcome{Sent: true, Info: "SMS Submitted Successfully"}
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memFailures struct {
	mu      sync.Mutex
	seq     int
	records map[string]model.FailedSMS
}

func newMemFailures() *memFailures {
	return &memFailures{records: map[string]model.FailedSMS{}}
}

func (m *memFailures) CreateMany(ctx context.Context, userID string, failures []model.Recipient) ([]model.FailedSMS, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.FailedSMS
	for _, f := range failures {
		m.seq++
		rec := model.FailedSMS{
			ID:             fmt.Sprintf("f-%d", m.seq),
			UserID:         userID,
			OriginalNumber: f.Number,
			Normalized:     f.Normalized,
			Message:        f.Message,
			Info:           f.Detail(),
			CreatedAt:      time.Unix(int64(m.seq), 0),
		}
		m.records[rec.ID] = rec
		out = append(out, rec)
	}
	return out, nil
}

func (m *memFailures) List(ctx context.Context, f repo.FailedFilter) ([]model.FailedSMS, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.FailedSMS{}
	for _, r := range m.records {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Unresolved && r.Resolved {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memFailures) Get(ctx context.Context, id string) (model.FailedSMS, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return model.FailedSMS{}, repo.ErrNotFound
	}
	return r, nil
}

func (m *memFailures) MarkResolved(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return repo.ErrNotFound
	}
	r.Resolved = true
	m.records[id] = r
	return nil
}

func (m *memFailures) OldestUnresolved(ctx context.Context, limit int) ([]model.FailedSMS, error) {
	all, _ := m.List(ctx, repo.FailedFilter{Unresolved: true})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memFailures) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// flakyFailures fails Get or MarkResolved for selected ids.
type flakyFailures struct {
	*memFailures
	getErr     map[string]error
	resolveErr map[string]error
}

func (f *flakyFailures) Get(ctx context.Context, id string) (model.FailedSMS, error) {
	if err := f.getErr[id]; err != nil {
		return model.FailedSMS{}, err
	}
	return f.memFailures.Get(ctx, id)
}

func (f *flakyFailures) MarkResolved(ctx context.Context, id string) error {
	if err := f.resolveErr[id]; err != nil {
		return err
	}
	return f.memFailures.MarkResolved(ctx, id)
}
