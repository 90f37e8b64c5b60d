package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status values a service order can hold.
const (
	StatusOpen          = "open"
	StatusInProgress    = "in_progress"
	StatusAwaitingParts = "awaiting_parts"
	StatusDone          = "done"
	StatusCancelled     = "cancelled"
)

// Priority values a service order can hold.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var validStatuses = map[string]bool{
	StatusOpen:          true,
	StatusInProgress:    true,
	StatusAwaitingParts: true,
	StatusDone:          true,
	StatusCancelled:     true,
}

var validPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool { return validStatuses[s] }

// ValidPriority reports whether p is a known order priority.
func ValidPriority(p string) bool { return validPriorities[p] }

// Part is a line item attached to an order, stored as JSONB.
type Part struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// ServiceOrder is a billable unit of work owned by one WhatsApp user.
type ServiceOrder struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	OrderNumber     string     `json:"order_number"`
	ClientName      string     `json:"client_name"`
	ClientPhone     string     `json:"client_phone,omitempty"`
	ClientEmail     string     `json:"client_email,omitempty"`
	ClientAddress   string     `json:"client_address,omitempty"`
	Title           string     `json:"title,omitempty"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category,omitempty"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	EstimatedAmount float64    `json:"estimated_amount"`
	TotalAmount     float64    `json:"total_amount"`
	OpenedAt        time.Time  `json:"opened_at"`
	ExpectedAt      *time.Time `json:"expected_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Parts           []Part     `json:"parts,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateOrderInput carries the fields accepted when opening an order.
type CreateOrderInput struct {
	ClientName      string
	ClientPhone     string
	ClientEmail     string
	ClientAddress   string
	Title           string
	Description     string
	Category        string
	Priority        string
	EstimatedAmount float64
	TotalAmount     float64
	ExpectedAt      *time.Time
	Notes           string
}

// Validate checks the minimum shape of a new order.
func (in *CreateOrderInput) Validate() error {
	if strings.TrimSpace(in.ClientName) == "" {
		return ErrClientNameRequired
	}
	if in.Priority != "" && !ValidPriority(in.Priority) {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, in.Priority)
	}
	if in.EstimatedAmount < 0 || in.TotalAmount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// UpdateOrderInput carries a partial update; nil fields are left untouched.
type UpdateOrderInput struct {
	ClientName    *string
	ClientPhone   *string
	ClientEmail   *string
	ClientAddress *string
	Title         *string
	Description   *string
	Category      *string
	Priority      *string
	TotalAmount   *float64
	ExpectedAt    *time.Time
}

// Empty reports whether the update would change nothing.
func (in *UpdateOrderInput) Empty() bool {
	return in.ClientName == nil && in.ClientPhone == nil && in.ClientEmail == nil &&
		in.ClientAddress == nil && in.Title == nil && in.Description == nil &&
		in.Category == nil && in.Priority == nil && in.TotalAmount == nil &&
		in.ExpectedAt == nil
}

// ListFilter narrows list queries. UserID == uuid.Nil means all users
// (ops surface only; the engine always scopes to one user).
type ListFilter struct {
	UserID uuid.UUID
	Status string
	Days   int
	Limit  int
	Offset int
}

// Totals aggregates counts and sums over a set of orders.
type Totals struct {
	Count        int            `json:"count"`
	EstimatedSum float64        `json:"estimated_sum"`
	FinalSum     float64        `json:"final_sum"`
	ByStatus     map[string]int `json:"by_status"`
}

// Balance is the period revenue summary used by the financial tools.
type Balance struct {
	Period string    `json:"period"`
	Since  time.Time `json:"since"`
	Count  int       `json:"count"`
	Sum    float64   `json:"sum"`
}

// OrderNumberFor builds the human-readable number for the given day and
// per-day sequence, e.g. OS-20260830-000042.
func OrderNumberFor(day time.Time, seq int) string {
	return fmt.Sprintf("OS-%s-%06d", day.Format("20060102"), seq)
}
