package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

// OperatorNotifier alerts the operator about a new lead. Implemented by
// the notify service; nil disables alerts.
type OperatorNotifier interface {
	NewLeadAlert(ctx context.Context, lead *Lead)
}

// Handler serves the public lead-capture endpoint.
type Handler struct {
	repo     Repository
	gateway  whatsapp.Gateway
	notifier OperatorNotifier
	logger   *logging.Logger
}

// NewHandler creates a leads handler. gateway and notifier may be nil.
func NewHandler(repo Repository, gateway whatsapp.Gateway, notifier OperatorNotifier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, gateway: gateway, notifier: notifier, logger: logger}
}

// CadastrarResponse is the body returned by POST /api/leads/cadastrar.
type CadastrarResponse struct {
	Success         bool      `json:"success"`
	Mensagem        string    `json:"mensagem"`
	NovoLead        bool      `json:"novo_lead"`
	MensagemEnviada bool      `json:"mensagem_enviada"`
	Lead            *LeadView `json:"lead,omitempty"`
}

// LeadView is the slice of the lead echoed back to the form.
type LeadView struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

// Cadastrar handles POST /api/leads/cadastrar.
func (h *Handler) Cadastrar(w http.ResponseWriter, r *http.Request) {
	var req CadastrarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCadastrarError(w, http.StatusBadRequest, "Corpo da requisição inválido.")
		return
	}

	lead, isNew, err := h.repo.Upsert(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName):
			writeCadastrarError(w, http.StatusBadRequest, "Informe um nome com até 255 caracteres.")
		case errors.Is(err, ErrInvalidEmail):
			writeCadastrarError(w, http.StatusBadRequest, "Informe um email válido.")
		case errors.Is(err, ErrFeedbackTooLong):
			writeCadastrarError(w, http.StatusBadRequest, "O feedback pode ter no máximo 5000 caracteres.")
		default:
			h.logger.Error("lead upsert failed", "error", err)
			writeCadastrarError(w, http.StatusInternalServerError, "Não foi possível salvar o cadastro agora.")
		}
		return
	}

	sent := h.sendWelcome(r.Context(), lead)

	if isNew && h.notifier != nil {
		h.notifier.NewLeadAlert(r.Context(), lead)
	}

	h.logger.Info("lead registered", "email", lead.Email, "new", isNew, "welcome_sent", sent)

	msg := "Cadastro atualizado com sucesso!"
	if isNew {
		msg = "Cadastro realizado com sucesso!"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CadastrarResponse{
		Success:         true,
		Mensagem:        msg,
		NovoLead:        isNew,
		MensagemEnviada: sent,
		Lead:            &LeadView{ID: lead.ID.String(), Nome: lead.Nome, Email: lead.Email},
	})
}

// sendWelcome delivers the welcome WhatsApp when a phone is present and
// records the send. Failures only cost the flag.
func (h *Handler) sendWelcome(ctx context.Context, lead *Lead) bool {
	if h.gateway == nil || lead.WelcomeSent {
		return false
	}
	phone := whatsapp.NormalizePhone(lead.Telefone)
	if phone == "" {
		return false
	}
	text := welcomeText(lead.Nome)
	if err := h.gateway.SendText(ctx, phone, text); err != nil {
		h.logger.Warn("welcome message failed", "error", err, "phone", phone)
		return false
	}
	if err := h.repo.MarkWelcomeSent(ctx, lead.ID); err != nil {
		h.logger.Warn("mark welcome sent failed", "error", err, "lead", lead.ID)
	}
	return true
}

func welcomeText(nome string) string {
	first := nome
	for i, r := range nome {
		if r == ' ' {
			first = nome[:i]
			break
		}
	}
	return "Olá, " + first + "! 👋 Obrigado pelo interesse no assistente de ordens de serviço. Em breve entraremos em contato por aqui."
}

func writeCadastrarError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(CadastrarResponse{Success: false, Mensagem: msg})
}
