package orders

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for service-order storage.
type Repository interface {
	Create(ctx context.Context, userID uuid.UUID, in *CreateOrderInput) (*ServiceOrder, error)
	GetByNumber(ctx context.Context, userID uuid.UUID, number string) (*ServiceOrder, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceOrder, error)
	List(ctx context.Context, filter ListFilter) ([]*ServiceOrder, error)
	UpdateStatus(ctx context.Context, userID uuid.UUID, number, status string) (*ServiceOrder, error)
	Update(ctx context.Context, userID uuid.UUID, number string, in *UpdateOrderInput) (*ServiceOrder, error)
	AppendNote(ctx context.Context, userID uuid.UUID, number, note string) (*ServiceOrder, error)
	AddPart(ctx context.Context, userID uuid.UUID, number string, part Part) (*ServiceOrder, error)
	SearchByClient(ctx context.Context, userID uuid.UUID, query string, limit int) ([]*ServiceOrder, error)
	Totals(ctx context.Context, filter ListFilter) (*Totals, error)
	Balance(ctx context.Context, userID uuid.UUID, period string, now time.Time) (*Balance, error)
}

// InMemoryRepository keeps orders in a map. Used by tests and as a
// degraded mode when no database is configured.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*ServiceOrder
	daySeq map[string]int
	now    func() time.Time
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		orders: make(map[uuid.UUID]*ServiceOrder),
		daySeq: make(map[string]int),
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *InMemoryRepository) WithClock(now func() time.Time) *InMemoryRepository {
	r.now = now
	return r
}

func (r *InMemoryRepository) Create(ctx context.Context, userID uuid.UUID, in *CreateOrderInput) (*ServiceOrder, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	day := now.Format("20060102")
	r.daySeq[day]++

	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	order := &ServiceOrder{
		ID:              uuid.New(),
		UserID:          userID,
		OrderNumber:     OrderNumberFor(now, r.daySeq[day]),
		ClientName:      in.ClientName,
		ClientPhone:     in.ClientPhone,
		ClientEmail:     in.ClientEmail,
		ClientAddress:   in.ClientAddress,
		Title:           in.Title,
		Description:     in.Description,
		Category:        in.Category,
		Priority:        priority,
		Status:          StatusOpen,
		EstimatedAmount: in.EstimatedAmount,
		TotalAmount:     in.TotalAmount,
		OpenedAt:        now,
		ExpectedAt:      in.ExpectedAt,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.orders[order.ID] = order
	return cloneOrder(order), nil
}

func (r *InMemoryRepository) GetByNumber(ctx context.Context, userID uuid.UUID, number string) (*ServiceOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.OrderNumber == number && (userID == uuid.Nil || o.UserID == userID) {
			return cloneOrder(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*ServiceOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ServiceOrder
	cutoff := time.Time{}
	if filter.Days > 0 {
		cutoff = r.now().UTC().AddDate(0, 0, -filter.Days)
	}
	for _, o := range r.orders {
		if filter.UserID != uuid.Nil && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if !cutoff.IsZero() && o.OpenedAt.Before(cutoff) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, userID uuid.UUID, number, status string) (*ServiceOrder, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findLocked(userID, number)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	now := r.now().UTC()
	o.Status = status
	o.UpdatedAt = now
	if status == StatusDone {
		o.CompletedAt = &now
	} else {
		o.CompletedAt = nil
	}
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, userID uuid.UUID, number string, in *UpdateOrderInput) (*ServiceOrder, error) {
	if in.Empty() {
		return nil, ErrEmptyUpdate
	}
	if in.Priority != nil && !ValidPriority(*in.Priority) {
		return nil, ErrInvalidPriority
	}
	if in.TotalAmount != nil && *in.TotalAmount < 0 {
		return nil, ErrNegativeAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findLocked(userID, number)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&o.ClientName, in.ClientName)
	apply(&o.ClientPhone, in.ClientPhone)
	apply(&o.ClientEmail, in.ClientEmail)
	apply(&o.ClientAddress, in.ClientAddress)
	apply(&o.Title, in.Title)
	apply(&o.Description, in.Description)
	apply(&o.Category, in.Category)
	apply(&o.Priority, in.Priority)
	if in.TotalAmount != nil {
		o.TotalAmount = *in.TotalAmount
	}
	if in.ExpectedAt != nil {
		o.ExpectedAt = in.ExpectedAt
	}
	o.UpdatedAt = r.now().UTC()
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) AppendNote(ctx context.Context, userID uuid.UUID, number, note string) (*ServiceOrder, error) {
	if strings.TrimSpace(note) == "" {
		return nil, ErrEmptyUpdate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findLocked(userID, number)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Notes == "" {
		o.Notes = note
	} else {
		o.Notes += "\n" + note
	}
	o.UpdatedAt = r.now().UTC()
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) AddPart(ctx context.Context, userID uuid.UUID, number string, part Part) (*ServiceOrder, error) {
	if strings.TrimSpace(part.Name) == "" {
		return nil, ErrEmptyUpdate
	}
	if part.Quantity <= 0 {
		part.Quantity = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findLocked(userID, number)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	o.Parts = append(o.Parts, part)
	o.UpdatedAt = r.now().UTC()
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) SearchByClient(ctx context.Context, userID uuid.UUID, query string, limit int) ([]*ServiceOrder, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ServiceOrder
	for _, o := range r.orders {
		if userID != uuid.Nil && o.UserID != userID {
			continue
		}
		if strings.Contains(strings.ToLower(o.ClientName), q) || strings.Contains(o.ClientPhone, q) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Totals(ctx context.Context, filter ListFilter) (*Totals, error) {
	matched, err := r.List(ctx, ListFilter{UserID: filter.UserID, Status: filter.Status, Days: filter.Days})
	if err != nil {
		return nil, err
	}
	totals := &Totals{ByStatus: make(map[string]int)}
	for _, o := range matched {
		totals.Count++
		totals.EstimatedSum += o.EstimatedAmount
		totals.FinalSum += o.TotalAmount
		totals.ByStatus[o.Status]++
	}
	return totals, nil
}

func (r *InMemoryRepository) Balance(ctx context.Context, userID uuid.UUID, period string, now time.Time) (*Balance, error) {
	since, err := PeriodStart(period, now)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bal := &Balance{Period: period, Since: since}
	for _, o := range r.orders {
		if userID != uuid.Nil && o.UserID != userID {
			continue
		}
		if o.Status == StatusCancelled || o.OpenedAt.Before(since) {
			continue
		}
		bal.Count++
		bal.Sum += o.TotalAmount
	}
	return bal, nil
}

func (r *InMemoryRepository) findLocked(userID uuid.UUID, number string) *ServiceOrder {
	for _, o := range r.orders {
		if o.OrderNumber == number && (userID == uuid.Nil || o.UserID == userID) {
			return o
		}
	}
	return nil
}

func cloneOrder(o *ServiceOrder) *ServiceOrder {
	cp := *o
	if o.ExpectedAt != nil {
		t := *o.ExpectedAt
		cp.ExpectedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Parts = append([]Part(nil), o.Parts...)
	return &cp
}

// PeriodStart resolves the "day" and "month" balance periods to their
// starting instant in the supplied time's location.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "day":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	default:
		return time.Time{}, ErrInvalidPeriod
	}
}
