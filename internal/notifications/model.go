package notifications

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/whatsapp"
)

// Status values a scheduled notification can hold.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// MaxRetries is the delivery attempt cap before a notification goes
// terminally to error.
const MaxRetries = 3

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusSent:      true,
	StatusError:     true,
	StatusCancelled: true,
}

// ValidStatus reports whether s is a known notification status.
func ValidStatus(s string) bool { return validStatuses[s] }

var (
	// ErrNotificationNotFound signals a legitimate miss on lookup.
	ErrNotificationNotFound = errors.New("notifications: notification not found")
	// ErrNotCancellable rejects cancelling a non-pending notification.
	ErrNotCancellable = errors.New("notifications: only pending notifications can be cancelled")
	// ErrPhoneRequired rejects notifications without a target phone.
	ErrPhoneRequired = errors.New("notifications: target phone required")
	// ErrBodyRequired rejects notifications without a body.
	ErrBodyRequired = errors.New("notifications: body required")
)

// Notification is one scheduled WhatsApp delivery.
type Notification struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id,omitempty"`
	TargetPhone    string         `json:"target_phone"`
	TargetName     string         `json:"target_name,omitempty"`
	Title          string         `json:"title,omitempty"`
	Body           string         `json:"body"`
	SendAt         time.Time      `json:"send_at"`
	PDFPath        string         `json:"pdf_path,omitempty"`
	AttachmentURL  string         `json:"attachment_url,omitempty"`
	Status         string         `json:"status"`
	RetryCount     int            `json:"retry_count"`
	RepeatDays     int            `json:"repeat_days,omitempty"`
	FromAutomation bool           `json:"from_automation"`
	EventData      map[string]any `json:"event_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Recurring reports whether the notification re-arms after a send.
func (n *Notification) Recurring() bool { return n.RepeatDays > 0 }

// ScheduleInput carries the fields accepted when queueing a notification.
type ScheduleInput struct {
	UserID         uuid.UUID
	TargetPhone    string
	TargetName     string
	Title          string
	Body           string
	SendAt         time.Time
	PDFPath        string
	AttachmentURL  string
	RepeatDays     int
	FromAutomation bool
	EventData      map[string]any
}

// Validate normalizes the phone and checks required fields.
func (in *ScheduleInput) Validate() error {
	in.TargetPhone = whatsapp.NormalizePhone(in.TargetPhone)
	if in.TargetPhone == "" {
		return ErrPhoneRequired
	}
	if strings.TrimSpace(in.Body) == "" {
		return ErrBodyRequired
	}
	if in.RepeatDays < 0 {
		in.RepeatDays = 0
	}
	return nil
}
