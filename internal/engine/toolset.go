package engine

import (
	"context"
	"strings"
	"time"

	"github.com/castrolabs/osbot/internal/automation"
	"github.com/castrolabs/osbot/internal/chat"
	"github.com/castrolabs/osbot/internal/contacts"
	"github.com/castrolabs/osbot/internal/notifications"
	"github.com/castrolabs/osbot/internal/orders"
	"github.com/castrolabs/osbot/internal/pdf"
	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

// Toolset binds every tool handler to its collaborators and builds the
// validated registry.
type Toolset struct {
	Orders        orders.Repository
	Contacts      contacts.Repository
	Notifications notifications.Repository
	Chat          chat.Store
	Gateway       whatsapp.Gateway
	Renderer      *pdf.Renderer
	Automation    *automation.Evaluator
	Logger        *logging.Logger
	Now           func() time.Time
}

// Registry registers the full catalog and validates it.
func (t *Toolset) Registry() (*Registry, error) {
	if t.Logger == nil {
		t.Logger = logging.Default()
	}
	if t.Now == nil {
		t.Now = time.Now
	}
	r := NewRegistry()
	t.registerOrderTools(r)
	t.registerContactTools(r)
	t.registerNotificationTools(r)
	t.registerMessagingTools(r)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (t *Toolset) fireAutomation(ctx context.Context, eventType string, payload map[string]any) {
	if t.Automation == nil {
		return
	}
	t.Automation.Fire(ctx, eventType, payload)
}

// The user's statuses arrive in Portuguese; map them onto the stored enum.
var statusAliases = map[string]string{
	"open":             orders.StatusOpen,
	"aberta":           orders.StatusOpen,
	"aberto":           orders.StatusOpen,
	"in_progress":      orders.StatusInProgress,
	"em andamento":     orders.StatusInProgress,
	"andamento":        orders.StatusInProgress,
	"awaiting_parts":   orders.StatusAwaitingParts,
	"aguardando peças": orders.StatusAwaitingParts,
	"aguardando pecas": orders.StatusAwaitingParts,
	"done":             orders.StatusDone,
	"concluída":        orders.StatusDone,
	"concluida":        orders.StatusDone,
	"pronta":           orders.StatusDone,
	"finalizada":       orders.StatusDone,
	"cancelled":        orders.StatusCancelled,
	"cancelada":        orders.StatusCancelled,
	"cancelado":        orders.StatusCancelled,
}

var priorityAliases = map[string]string{
	"low":      orders.PriorityLow,
	"baixa":    orders.PriorityLow,
	"normal":   orders.PriorityNormal,
	"high":     orders.PriorityHigh,
	"alta":     orders.PriorityHigh,
	"urgent":   orders.PriorityUrgent,
	"urgente":  orders.PriorityUrgent,
	"urgência": orders.PriorityUrgent,
}

func canonicalStatus(s string) (string, bool) {
	mapped, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return mapped, ok
}

func canonicalPriority(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", true
	}
	mapped, ok := priorityAliases[strings.ToLower(strings.TrimSpace(s))]
	return mapped, ok
}

// JSON-schema helpers for tool parameter objects.

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numProp(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolProp(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}
