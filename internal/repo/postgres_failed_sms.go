package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/LeventeLantos/result-messaging/internal/model"
)

type PostgresFailedSMSRepo struct {
	pool PgxPool
	now  func() time.Time
}

func NewPostgresFailedSMSRepo(pool PgxPool) *PostgresFailedSMSRepo {
	return &PostgresFailedSMSRepo{pool: pool, now: time.Now}
}

const failedColumns = `id, user_id, original_number, normalized, message, info, created_at, resolved`

func (r *PostgresFailedSMSRepo) CreateMany(ctx context.Context, userID string, failures []model.Recipient) ([]model.FailedSMS, error) {
	if len(failures) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed_sms: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := r.now().UTC()
	out := make([]model.FailedSMS, 0, len(failures))
	for _, f := range failures {
		rec := model.FailedSMS{
			ID:             uuid.NewString(),
			UserID:         userID,
			OriginalNumber: f.Number,
			Normalized:     f.Normalized,
			Message:        f.Message,
			Info:           f.Detail(),
			CreatedAt:      now,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO failed_sms (`+failedColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		`, rec.ID, rec.UserID, rec.OriginalNumber, rec.Normalized, rec.Message, rec.Info, rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed_sms: insert: %w", err)
		}
		out = append(out, rec)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed_sms: commit: %w", err)
	}
	return out, nil
}

func (r *PostgresFailedSMSRepo) List(ctx context.Context, f FailedFilter) ([]model.FailedSMS, error) {
	if f.Limit <= 0 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Unresolved {
		where = append(where, "resolved = false")
	}

	q := `SELECT ` + failedColumns + ` FROM failed_sms`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.query(ctx, q, args...)
}

func (r *PostgresFailedSMSRepo) OldestUnresolved(ctx context.Context, limit int) ([]model.FailedSMS, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	return r.query(ctx, `
		SELECT `+failedColumns+`
		FROM failed_sms
		WHERE resolved = false
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
}

func (r *PostgresFailedSMSRepo) Get(ctx context.Context, id string) (model.FailedSMS, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.FailedSMS{}, ErrNotFound
	}

	var m model.FailedSMS
	err := r.pool.QueryRow(ctx, `SELECT `+failedColumns+` FROM failed_sms WHERE id = $1`, id).
		Scan(&m.ID, &m.UserID, &m.OriginalNumber, &m.Normalized, &m.Message, &m.Info, &m.CreatedAt, &m.Resolved)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FailedSMS{}, ErrNotFound
	}
	if err != nil {
		return model.FailedSMS{}, fmt.Errorf("failed_sms: get: %w", err)
	}
	return m, nil
}

func (r *PostgresFailedSMSRepo) MarkResolved(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE failed_sms SET resolved = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed_sms: mark resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresFailedSMSRepo) query(ctx context.Context, q string, args ...any) ([]model.FailedSMS, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed_sms: query: %w", err)
	}
	defer rows.Close()

	out := []model.FailedSMS{}
	for rows.Next() {
		var m model.FailedSMS
		if err := rows.Scan(&m.ID, &m.UserID, &m.OriginalNumber, &m.Normalized, &m.Message, &m.Info, &m.CreatedAt, &m.Resolved); err != nil {
			return nil, fmt.Errorf("failed_sms: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
