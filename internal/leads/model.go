package leads

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lead is one submission from the public signup form, keyed by email.
type Lead struct {
	ID          uuid.UUID `json:"id"`
	Nome        string    `json:"nome"`
	Email       string    `json:"email"`
	Telefone    string    `json:"telefone,omitempty"`
	Feedback    string    `json:"feedback,omitempty"`
	WelcomeSent bool      `json:"welcome_sent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CadastrarRequest is the body of POST /api/leads/cadastrar.
type CadastrarRequest struct {
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Telefone string `json:"telefone"`
	Feedback string `json:"feedback"`
}

// Validate trims and checks the submission.
func (r *CadastrarRequest) Validate() error {
	r.Nome = strings.TrimSpace(r.Nome)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Telefone = strings.TrimSpace(r.Telefone)
	r.Feedback = strings.TrimSpace(r.Feedback)

	if r.Nome == "" || len(r.Nome) > 255 {
		return ErrInvalidName
	}
	if len(r.Email) > 255 || !emailRe.MatchString(r.Email) {
		return ErrInvalidEmail
	}
	if len(r.Feedback) > 5000 {
		return ErrFeedbackTooLong
	}
	return nil
}
