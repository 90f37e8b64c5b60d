package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/castrolabs/osbot/internal/leads"
	"github.com/castrolabs/osbot/pkg/logging"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestNewLeadAlert(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, "dono@oficina.com.br", logging.Default())

	svc.NewLeadAlert(context.Background(), &leads.Lead{
		Nome:     "Maria Silva",
		Email:    "maria@example.com",
		Telefone: "5511988887777",
		Feedback: "quero automatizar minhas OS",
	})

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d emails, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "dono@oficina.com.br" {
		t.Errorf("to = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "Maria Silva") {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"maria@example.com", "5511988887777", "quero automatizar"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestNewLeadAlertUnconfigured(t *testing.T) {
	sender := &recordingSender{}

	// no operator email: nothing goes out
	NewService(sender, "", logging.Default()).
		NewLeadAlert(context.Background(), &leads.Lead{Nome: "Ana", Email: "a@example.com"})
	if len(sender.sent) != 0 {
		t.Fatalf("sent = %d emails, want 0", len(sender.sent))
	}

	// no sender either: must not panic
	NewService(nil, "dono@oficina.com.br", logging.Default()).
		NewLeadAlert(context.Background(), &leads.Lead{Nome: "Ana", Email: "a@example.com"})
}

func TestNewLeadAlertSendFailureSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	svc := NewService(sender, "dono@oficina.com.br", logging.Default())

	// must not panic or propagate
	svc.NewLeadAlert(context.Background(), &leads.Lead{Nome: "Ana", Email: "a@example.com"})
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d attempts, want 1", len(sender.sent))
	}
}

func TestNewSendGridSenderRequiresKey(t *testing.T) {
	if s := NewSendGridSender(SendGridConfig{}, logging.Default()); s != nil {
		t.Fatal("expected nil sender without API key")
	}
	if s := NewSendGridSender(SendGridConfig{APIKey: "SG.test"}, logging.Default()); s == nil {
		t.Fatal("expected sender with API key")
	}
}
