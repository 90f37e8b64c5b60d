package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AutomationScheduler adapts the repository to the automation trigger
// actions without the automation package importing this one's types.
type AutomationScheduler struct {
	repo Repository
}

// NewAutomationScheduler wraps a repository for trigger use.
func NewAutomationScheduler(repo Repository) *AutomationScheduler {
	return &AutomationScheduler{repo: repo}
}

func (a *AutomationScheduler) ScheduleFromAutomation(ctx context.Context, userID uuid.UUID, phone, name, title, body string, sendAt time.Time, eventData map[string]any) error {
	_, err := a.repo.Schedule(ctx, &ScheduleInput{
		UserID:         userID,
		TargetPhone:    phone,
		TargetName:     name,
		Title:          title,
		Body:           body,
		SendAt:         sendAt,
		FromAutomation: true,
		EventData:      eventData,
	})
	return err
}
