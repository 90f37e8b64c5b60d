package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/castrolabs/osbot/internal/leads"
	"github.com/castrolabs/osbot/pkg/logging"
)

// Service alerts the operator about business events. Failures are
// logged, never propagated: a broken email provider must not break the
// flow that triggered the alert.
type Service struct {
	email         EmailSender
	operatorEmail string
	logger        *logging.Logger
}

// NewService creates a notification service. A nil sender disables it.
func NewService(email EmailSender, operatorEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, operatorEmail: operatorEmail, logger: logger}
}

// NewLeadAlert emails the operator about a fresh lead signup.
func (s *Service) NewLeadAlert(ctx context.Context, lead *leads.Lead) {
	if s == nil || s.email == nil || s.operatorEmail == "" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Novo lead cadastrado: %s\n", lead.Nome)
	fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	if lead.Telefone != "" {
		fmt.Fprintf(&b, "Telefone: %s\n", lead.Telefone)
	}
	if lead.Feedback != "" {
		fmt.Fprintf(&b, "\nFeedback:\n%s\n", lead.Feedback)
	}

	msg := EmailMessage{
		To:      s.operatorEmail,
		Subject: "Novo lead: " + lead.Nome,
		Body:    b.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("lead alert email failed", "error", err, "lead_email", lead.Email)
	}
}
