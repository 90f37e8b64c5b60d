package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for notification storage. Sweep
// transitions (sent / re-arm / retry / terminal error) are explicit
// methods so the sweeper owns the policy and the store owns the rows.
type Repository interface {
	Schedule(ctx context.Context, in *ScheduleInput) (*Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status string, limit int) ([]*Notification, error)
	Cancel(ctx context.Context, userID, id uuid.UUID) (*Notification, error)
	Due(ctx context.Context, now time.Time, limit int) ([]*Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	Rearm(ctx context.Context, id uuid.UUID, nextAt time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, nextAt time.Time) error
	MarkError(ctx context.Context, id uuid.UUID) error
}

// InMemoryRepository keeps notifications in a map.
type InMemoryRepository struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*Notification
	now           func() time.Time
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		notifications: make(map[uuid.UUID]*Notification),
		now:           time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *InMemoryRepository) WithClock(now func() time.Time) *InMemoryRepository {
	r.now = now
	return r
}

func (r *InMemoryRepository) Schedule(ctx context.Context, in *ScheduleInput) (*Notification, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	n := &Notification{
		ID:             uuid.New(),
		UserID:         in.UserID,
		TargetPhone:    in.TargetPhone,
		TargetName:     in.TargetName,
		Title:          in.Title,
		Body:           in.Body,
		SendAt:         in.SendAt,
		PDFPath:        in.PDFPath,
		AttachmentURL:  in.AttachmentURL,
		Status:         StatusPending,
		RepeatDays:     in.RepeatDays,
		FromAutomation: in.FromAutomation,
		EventData:      in.EventData,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.notifications[n.ID] = n
	return clone(n), nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	return clone(n), nil
}

func (r *InMemoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, status string, limit int) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Notification
	for _, n := range r.notifications {
		if userID != uuid.Nil && n.UserID != userID {
			continue
		}
		if status != "" && n.Status != status {
			continue
		}
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SendAt.Before(out[j].SendAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Cancel(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || (userID != uuid.Nil && n.UserID != userID) {
		return nil, ErrNotificationNotFound
	}
	if n.Status != StatusPending {
		return nil, ErrNotCancellable
	}
	n.Status = StatusCancelled
	n.UpdatedAt = r.now().UTC()
	return clone(n), nil
}

func (r *InMemoryRepository) Due(ctx context.Context, now time.Time, limit int) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Notification
	for _, n := range r.notifications {
		if n.Status == StatusPending && !n.SendAt.After(now) {
			out = append(out, clone(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SendAt.Before(out[j].SendAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.mutate(id, func(n *Notification) {
		n.Status = StatusSent
	})
}

func (r *InMemoryRepository) Rearm(ctx context.Context, id uuid.UUID, nextAt time.Time) error {
	return r.mutate(id, func(n *Notification) {
		n.Status = StatusPending
		n.SendAt = nextAt
		n.RetryCount = 0
	})
}

func (r *InMemoryRepository) Reschedule(ctx context.Context, id uuid.UUID, nextAt time.Time) error {
	return r.mutate(id, func(n *Notification) {
		n.Status = StatusPending
		n.SendAt = nextAt
		n.RetryCount++
	})
}

func (r *InMemoryRepository) MarkError(ctx context.Context, id uuid.UUID) error {
	return r.mutate(id, func(n *Notification) {
		n.Status = StatusError
		n.RetryCount++
	})
}

func (r *InMemoryRepository) mutate(id uuid.UUID, apply func(*Notification)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	apply(n)
	n.UpdatedAt = r.now().UTC()
	return nil
}

func clone(n *Notification) *Notification {
	cp := *n
	if n.EventData != nil {
		cp.EventData = make(map[string]any, len(n.EventData))
		for k, v := range n.EventData {
			cp.EventData[k] = v
		}
	}
	return &cp
}
