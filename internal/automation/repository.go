package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTriggerNotFound signals a legitimate miss on lookup.
var ErrTriggerNotFound = errors.New("automation: trigger not found")

// Repository defines the interface for trigger storage.
type Repository interface {
	Create(ctx context.Context, trigger *Trigger) (*Trigger, error)
	ListByEvent(ctx context.Context, eventType string) ([]*Trigger, error)
	RecordRun(ctx context.Context, id uuid.UUID, at time.Time) error
}

// InMemoryRepository keeps triggers in a map.
type InMemoryRepository struct {
	mu       sync.RWMutex
	triggers map[uuid.UUID]*Trigger
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{triggers: make(map[uuid.UUID]*Trigger)}
}

func (r *InMemoryRepository) Create(ctx context.Context, trigger *Trigger) (*Trigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *trigger
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = time.Now().UTC()
	r.triggers[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *InMemoryRepository) ListByEvent(ctx context.Context, eventType string) ([]*Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Trigger
	for _, t := range r.triggers {
		if t.Enabled && t.EventType == eventType {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) RecordRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.triggers[id]
	if !ok {
		return ErrTriggerNotFound
	}
	t.Runs++
	t.LastRunAt = &at
	return nil
}

// PgxPool is the subset of pgxpool.Pool the repository needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores triggers in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("automation: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, trigger *Trigger) (*Trigger, error) {
	conditions, err := json.Marshal(trigger.Conditions)
	if err != nil {
		return nil, fmt.Errorf("automation: encode conditions: %w", err)
	}
	params, err := json.Marshal(trigger.ActionParams)
	if err != nil {
		return nil, fmt.Errorf("automation: encode action params: %w", err)
	}
	id := trigger.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
		INSERT INTO automation_triggers (id, user_id, event_type, conditions, action, action_params, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`
	cp := *trigger
	cp.ID = id
	if err := r.pool.QueryRow(ctx, query,
		id, trigger.UserID, trigger.EventType, conditions, trigger.Action, params, trigger.Enabled,
	).Scan(&cp.CreatedAt); err != nil {
		return nil, fmt.Errorf("automation: insert trigger: %w", err)
	}
	return &cp, nil
}

func (r *PostgresRepository) ListByEvent(ctx context.Context, eventType string) ([]*Trigger, error) {
	query := `
		SELECT id, user_id, event_type, conditions, action, action_params, enabled, runs, last_run_at, created_at
		FROM automation_triggers
		WHERE event_type = $1 AND enabled`
	rows, err := r.pool.Query(ctx, query, eventType)
	if err != nil {
		return nil, fmt.Errorf("automation: list triggers: %w", err)
	}
	defer rows.Close()

	var out []*Trigger
	for rows.Next() {
		var t Trigger
		var conditions, params []byte
		if err := rows.Scan(&t.ID, &t.UserID, &t.EventType, &conditions, &t.Action, &params, &t.Enabled, &t.Runs, &t.LastRunAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("automation: scan trigger: %w", err)
		}
		if err := json.Unmarshal(conditions, &t.Conditions); err != nil {
			return nil, fmt.Errorf("automation: decode conditions: %w", err)
		}
		if err := json.Unmarshal(params, &t.ActionParams); err != nil {
			return nil, fmt.Errorf("automation: decode action params: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) RecordRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE automation_triggers SET runs = runs + 1, last_run_at = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("automation: record run: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTriggerNotFound
	}
	return nil
}
