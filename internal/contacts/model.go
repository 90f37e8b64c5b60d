package contacts

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/whatsapp"
)

var (
	// ErrContactNotFound signals a legitimate miss on lookup.
	ErrContactNotFound = errors.New("contacts: contact not found")
	// ErrPhoneRequired rejects contacts without a phone number.
	ErrPhoneRequired = errors.New("contacts: phone required")
)

// Contact is an address-book entry owned by one WhatsApp user.
// (user_id, phone) is unique; saving the same phone twice updates the
// existing row instead of duplicating it.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertInput carries the fields accepted when saving a contact.
type UpsertInput struct {
	Phone    string
	Name     string
	Email    string
	Notes    string
	Favorite bool
}

// Normalize strips phone decoration and trims text fields.
func (in *UpsertInput) Normalize() error {
	in.Phone = whatsapp.NormalizePhone(in.Phone)
	if in.Phone == "" {
		return ErrPhoneRequired
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Notes = strings.TrimSpace(in.Notes)
	return nil
}
