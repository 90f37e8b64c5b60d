package contacts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/whatsapp"
)

// Repository defines the interface for contact storage.
type Repository interface {
	Upsert(ctx context.Context, userID uuid.UUID, in *UpsertInput) (*Contact, error)
	FindByPhone(ctx context.Context, userID uuid.UUID, phone string) (*Contact, error)
	Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]*Contact, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*Contact, error)
	Delete(ctx context.Context, userID uuid.UUID, phone string) error
}

// InMemoryRepository keeps contacts in a map, keyed the same way the
// database unique constraint is.
type InMemoryRepository struct {
	mu       sync.RWMutex
	contacts map[string]*Contact
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{contacts: make(map[string]*Contact)}
}

func key(userID uuid.UUID, phone string) string {
	return userID.String() + "|" + phone
}

func (r *InMemoryRepository) Upsert(ctx context.Context, userID uuid.UUID, in *UpsertInput) (*Contact, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.contacts[key(userID, in.Phone)]; ok {
		if in.Name != "" {
			existing.Name = in.Name
		}
		if in.Email != "" {
			existing.Email = in.Email
		}
		if in.Notes != "" {
			existing.Notes = in.Notes
		}
		existing.Favorite = in.Favorite
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}

	contact := &Contact{
		ID:        uuid.New(),
		UserID:    userID,
		Phone:     in.Phone,
		Name:      in.Name,
		Email:     in.Email,
		Notes:     in.Notes,
		Favorite:  in.Favorite,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.contacts[key(userID, in.Phone)] = contact
	cp := *contact
	return &cp, nil
}

func (r *InMemoryRepository) FindByPhone(ctx context.Context, userID uuid.UUID, phone string) (*Contact, error) {
	phone = whatsapp.NormalizePhone(phone)
	r.mu.RLock()
	defer r.mu.RUnlock()
	contact, ok := r.contacts[key(userID, phone)]
	if !ok {
		return nil, ErrContactNotFound
	}
	cp := *contact
	return &cp, nil
}

func (r *InMemoryRepository) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]*Contact, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	digits := whatsapp.NormalizePhone(q)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Contact
	for _, c := range r.contacts {
		if c.UserID != userID {
			continue
		}
		if strings.Contains(strings.ToLower(c.Name), q) || (digits != "" && strings.Contains(c.Phone, digits)) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sortContacts(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) List(ctx context.Context, userID uuid.UUID, limit int) ([]*Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Contact
	for _, c := range r.contacts {
		if c.UserID != userID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sortContacts(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, userID uuid.UUID, phone string) error {
	phone = whatsapp.NormalizePhone(phone)
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(userID, phone)
	if _, ok := r.contacts[k]; !ok {
		return ErrContactNotFound
	}
	delete(r.contacts, k)
	return nil
}

func sortContacts(cs []*Contact) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Favorite != cs[j].Favorite {
			return cs[i].Favorite
		}
		return strings.ToLower(cs[i].Name) < strings.ToLower(cs[j].Name)
	})
}
