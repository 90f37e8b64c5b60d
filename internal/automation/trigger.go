package automation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Actions a trigger can run when it matches.
const (
	ActionScheduleNotification = "schedule_notification"
	ActionSendMessage          = "send_message"
)

// Trigger is a stored automation rule. Conditions are matched exactly
// against the event payload; ActionParams feed the action with `{{var}}`
// placeholders resolved from the same payload.
type Trigger struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	EventType    string         `json:"event_type"`
	Conditions   map[string]any `json:"conditions"`
	Action       string         `json:"action"`
	ActionParams map[string]any `json:"action_params"`
	Enabled      bool           `json:"enabled"`
	Runs         int            `json:"runs"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Matches reports whether every condition key/value pair equals the
// corresponding event payload entry. An empty condition set matches all.
func (t *Trigger) Matches(eventType string, payload map[string]any) bool {
	if !t.Enabled || t.EventType != eventType {
		return false
	}
	for k, want := range t.Conditions {
		got, ok := payload[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render substitutes {{var}} placeholders with values from the payload.
// Unknown placeholders are left untouched so a misconfigured template is
// visible instead of silently blank.
func Render(template string, payload map[string]any) string {
	if template == "" || len(payload) == 0 {
		return template
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := payload[name]; ok {
			return fmt.Sprint(value)
		}
		return match
	})
}
