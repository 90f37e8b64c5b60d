package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/notifications"
	"github.com/castrolabs/osbot/internal/whatsapp"
)

func (t *Toolset) registerNotificationTools(r *Registry) {
	r.register("agendar_notificacao",
		"Agenda um lembrete ou mensagem para ser enviada no futuro. A data pode vir em linguagem natural (amanhã às 14h, sexta 9h, daqui 2 horas).",
		objectSchema(map[string]any{
			"mensagem":      strProp("Texto da mensagem a enviar"),
			"titulo":        strProp("Título opcional da notificação"),
			"quando":        strProp("Quando enviar, em linguagem natural ou ISO"),
			"telefone":      strProp("Telefone do destinatário. Vazio envia para o próprio usuário"),
			"nome_destino":  strProp("Nome do destinatário"),
			"repetir_dias":  intProp("Repete a cada N dias (0 = uma vez só)"),
			"anexo_pdf_os":  strProp("Número de OS cujo PDF deve ir anexado"),
		}, "mensagem", "quando"),
		t.handleScheduleNotification, presentAny(presentNotificationScheduled))

	r.register("listar_notificacoes",
		"Lista as notificações agendadas do usuário.",
		objectSchema(map[string]any{
			"status": strProp("Filtra por status: pendente, enviada, erro, cancelada"),
			"limite": intProp("Máximo de notificações a retornar"),
		}),
		t.handleListNotifications, presentAny(presentNotificationList))

	r.register("cancelar_notificacao",
		"Cancela uma notificação agendada (apenas pendentes).",
		objectSchema(map[string]any{
			"id": strProp("ID da notificação a cancelar"),
		}, "id"),
		t.handleCancelNotification, presentAny(func(n *notifications.Notification) string {
			return "🚫 Notificação de " + FormatDate(n.SendAt) + " cancelada."
		}))
}

type scheduleNotificationArgs struct {
	Mensagem    string `json:"mensagem"`
	Titulo      string `json:"titulo"`
	Quando      string `json:"quando"`
	Telefone    string `json:"telefone"`
	NomeDestino string `json:"nome_destino"`
	RepetirDias int    `json:"repetir_dias"`
	AnexoPDFOS  string `json:"anexo_pdf_os"`
}

func (t *Toolset) handleScheduleNotification(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args scheduleNotificationArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.Mensagem) == "" {
		return nil, Validation("Qual mensagem você quer agendar?")
	}
	when := ParseWhen(args.Quando, t.Now())

	phone := args.Telefone
	if whatsapp.NormalizePhone(phone) == "" {
		phone = tc.UserPhone
	}

	in := &notifications.ScheduleInput{
		UserID:      tc.UserID,
		TargetPhone: phone,
		TargetName:  args.NomeDestino,
		Title:       args.Titulo,
		Body:        args.Mensagem,
		SendAt:      when.At,
		RepeatDays:  args.RepetirDias,
	}
	if args.AnexoPDFOS != "" {
		order, opErr := t.lookupOrder(ctx, tc, args.AnexoPDFOS)
		if opErr != nil {
			return nil, opErr
		}
		if t.Renderer == nil {
			return nil, Internal(errors.New("engine: no pdf renderer configured"))
		}
		path, err := t.Renderer.RenderOrder(order)
		if err != nil {
			return nil, Internal(err)
		}
		in.PDFPath = path
	}

	n, err := t.Notifications.Schedule(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, notifications.ErrPhoneRequired):
			return nil, Validation("Preciso de um telefone válido para agendar o envio.")
		case errors.Is(err, notifications.ErrBodyRequired):
			return nil, Validation("Qual mensagem você quer agendar?")
		}
		return nil, Persistence(err)
	}
	return n, nil
}

var notificationStatusAliases = map[string]string{
	"pendente":  notifications.StatusPending,
	"pendentes": notifications.StatusPending,
	"enviada":   notifications.StatusSent,
	"enviadas":  notifications.StatusSent,
	"erro":      notifications.StatusError,
	"cancelada": notifications.StatusCancelled,
	"pending":   notifications.StatusPending,
	"sent":      notifications.StatusSent,
	"error":     notifications.StatusError,
	"cancelled": notifications.StatusCancelled,
}

type listNotificationsArgs struct {
	Status string `json:"status"`
	Limite int    `json:"limite"`
}

func (t *Toolset) handleListNotifications(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args listNotificationsArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	status := ""
	if s := strings.ToLower(strings.TrimSpace(args.Status)); s != "" {
		mapped, ok := notificationStatusAliases[s]
		if !ok {
			return nil, Validation("Não reconheci esse status. Use pendente, enviada, erro ou cancelada.")
		}
		status = mapped
	}
	limit := args.Limite
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	list, err := t.Notifications.ListByUser(ctx, tc.UserID, status, limit)
	if err != nil {
		return nil, Persistence(err)
	}
	return list, nil
}

type cancelNotificationArgs struct {
	ID string `json:"id"`
}

func (t *Toolset) handleCancelNotification(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args cancelNotificationArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	id, err := uuid.Parse(strings.TrimSpace(args.ID))
	if err != nil {
		return nil, Validation("Esse ID de notificação não parece válido.")
	}
	n, err := t.Notifications.Cancel(ctx, tc.UserID, id)
	if err != nil {
		switch {
		case errors.Is(err, notifications.ErrNotificationNotFound):
			return nil, NotFound("Não encontrei essa notificação.")
		case errors.Is(err, notifications.ErrNotCancellable):
			return nil, Validation("Essa notificação já foi enviada ou cancelada, não dá mais para cancelar.")
		}
		return nil, Persistence(err)
	}
	return n, nil
}
