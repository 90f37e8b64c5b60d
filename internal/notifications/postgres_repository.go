package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores scheduled notifications in the relational
// database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("notifications: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const notificationColumns = `id, user_id, target_phone, target_name, title, body, send_at,
	pdf_path, attachment_url, status, retry_count, repeat_days, from_automation,
	event_data, created_at, updated_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var userID *uuid.UUID
	var eventData []byte
	if err := row.Scan(
		&n.ID, &userID, &n.TargetPhone, &n.TargetName, &n.Title, &n.Body, &n.SendAt,
		&n.PDFPath, &n.AttachmentURL, &n.Status, &n.RetryCount, &n.RepeatDays, &n.FromAutomation,
		&eventData, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notifications: scan notification: %w", err)
	}
	if userID != nil {
		n.UserID = *userID
	}
	if len(eventData) > 0 {
		if err := json.Unmarshal(eventData, &n.EventData); err != nil {
			return nil, fmt.Errorf("notifications: decode event data: %w", err)
		}
	}
	return &n, nil
}

func (r *PostgresRepository) Schedule(ctx context.Context, in *ScheduleInput) (*Notification, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	eventData, err := json.Marshal(in.EventData)
	if err != nil {
		return nil, fmt.Errorf("notifications: encode event data: %w", err)
	}
	query := `
		INSERT INTO scheduled_notifications (
			id, user_id, target_phone, target_name, title, body, send_at,
			pdf_path, attachment_url, status, repeat_days, from_automation, event_data
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING ` + notificationColumns
	var userID *uuid.UUID
	if in.UserID != uuid.Nil {
		userID = &in.UserID
	}
	return scanNotification(r.pool.QueryRow(ctx, query,
		uuid.New(), userID, in.TargetPhone, in.TargetName, in.Title, in.Body, in.SendAt,
		in.PDFPath, in.AttachmentURL, StatusPending, in.RepeatDays, in.FromAutomation, eventData,
	))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM scheduled_notifications WHERE id = $1`
	return scanNotification(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, status string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM scheduled_notifications
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY send_at
		LIMIT $3`
	var uid *uuid.UUID
	if userID != uuid.Nil {
		uid = &userID
	}
	rows, err := r.pool.Query(ctx, query, uid, status, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: list failed: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *PostgresRepository) Cancel(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	query := `
		UPDATE scheduled_notifications
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3 AND ($4::uuid IS NULL OR user_id = $4)
		RETURNING ` + notificationColumns
	var uid *uuid.UUID
	if userID != uuid.Nil {
		uid = &userID
	}
	n, err := scanNotification(r.pool.QueryRow(ctx, query, StatusCancelled, id, StatusPending, uid))
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, ErrNotificationNotFound) {
		return nil, err
	}
	// distinguish a missing row from a non-pending one
	if _, getErr := r.GetByID(ctx, id); getErr == nil {
		return nil, ErrNotCancellable
	}
	return nil, ErrNotificationNotFound
}

func (r *PostgresRepository) Due(ctx context.Context, now time.Time, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM scheduled_notifications
		WHERE status = $1 AND send_at <= $2
		ORDER BY send_at
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, StatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: due query failed: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *PostgresRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx,
		`UPDATE scheduled_notifications SET status = $1, updated_at = now() WHERE id = $2`,
		StatusSent, id,
	)
}

func (r *PostgresRepository) Rearm(ctx context.Context, id uuid.UUID, nextAt time.Time) error {
	return r.exec(ctx,
		`UPDATE scheduled_notifications SET status = $1, send_at = $2, retry_count = 0, updated_at = now() WHERE id = $3`,
		StatusPending, nextAt, id,
	)
}

func (r *PostgresRepository) Reschedule(ctx context.Context, id uuid.UUID, nextAt time.Time) error {
	return r.exec(ctx,
		`UPDATE scheduled_notifications SET status = $1, send_at = $2, retry_count = retry_count + 1, updated_at = now() WHERE id = $3`,
		StatusPending, nextAt, id,
	)
}

func (r *PostgresRepository) MarkError(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx,
		`UPDATE scheduled_notifications SET status = $1, retry_count = retry_count + 1, updated_at = now() WHERE id = $2`,
		StatusError, id,
	)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("notifications: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func collectNotifications(rows pgx.Rows) ([]*Notification, error) {
	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
