package leads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores leads keyed by email.
type Repository interface {
	// Upsert inserts or refreshes a lead. isNew reports whether the
	// email was seen for the first time.
	Upsert(ctx context.Context, req *CadastrarRequest) (lead *Lead, isNew bool, err error)
	GetByEmail(ctx context.Context, email string) (*Lead, error)
	List(ctx context.Context, limit, offset int) ([]*Lead, error)
	MarkWelcomeSent(ctx context.Context, id uuid.UUID) error
}

// InMemoryRepository keeps leads in a map, for tests and degraded mode.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{leads: make(map[string]*Lead)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, req *CadastrarRequest) (*Lead, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.leads[req.Email]; ok {
		existing.Nome = req.Nome
		if req.Telefone != "" {
			existing.Telefone = req.Telefone
		}
		if req.Feedback != "" {
			existing.Feedback = req.Feedback
		}
		existing.UpdatedAt = time.Now().UTC()
		cp := *existing
		return &cp, false, nil
	}

	lead := &Lead{
		ID:        uuid.New(),
		Nome:      req.Nome,
		Email:     req.Email,
		Telefone:  req.Telefone,
		Feedback:  req.Feedback,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	r.leads[req.Email] = lead
	cp := *lead
	return &cp, true, nil
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[email]
	if !ok {
		return nil, ErrLeadNotFound
	}
	cp := *lead
	return &cp, nil
}

func (r *InMemoryRepository) List(ctx context.Context, limit, offset int) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		cp := *lead
		out = append(out, &cp)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) MarkWelcomeSent(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.leads {
		if lead.ID == id {
			lead.WelcomeSent = true
			return nil
		}
	}
	return ErrLeadNotFound
}
