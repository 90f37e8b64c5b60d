package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/castrolabs/osbot/internal/contacts"
	"github.com/castrolabs/osbot/internal/notifications"
	"github.com/castrolabs/osbot/internal/orders"
)

// maxListed caps how many rows a list template prints before
// collapsing the rest into "+N".
const maxListed = 10

var statusLabels = map[string]string{
	orders.StatusOpen:          "Aberta",
	orders.StatusInProgress:    "Em andamento",
	orders.StatusAwaitingParts: "Aguardando peças",
	orders.StatusDone:          "Concluída",
	orders.StatusCancelled:     "Cancelada",
}

var priorityLabels = map[string]string{
	orders.PriorityLow:    "Baixa",
	orders.PriorityNormal: "Normal",
	orders.PriorityHigh:   "Alta",
	orders.PriorityUrgent: "Urgente",
}

// FormatMoney renders a non-negative amount as Brazilian currency,
// e.g. 1234.5 -> "R$ 1.234,50".
func FormatMoney(amount float64) string {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	cents := int64(math.Round(amount * 100))
	intPart := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", intPart)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return fmt.Sprintf("R$ %s,%02d", b.String(), frac)
}

// FormatDate renders an instant the way the assistant always shows
// dates, e.g. "30/08/2026 às 14:00".
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006") + " às " + t.Format("15:04")
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

func priorityLabel(priority string) string {
	if label, ok := priorityLabels[priority]; ok {
		return label
	}
	return priority
}

func presentOrderCreated(o *orders.ServiceOrder) string {
	var b strings.Builder
	b.WriteString("✅ Ordem de serviço criada!\n\n")
	b.WriteString("📋 *" + o.OrderNumber + "*\n")
	b.WriteString("👤 Cliente: " + o.ClientName + "\n")
	if o.Title != "" {
		b.WriteString("🔧 Serviço: " + o.Title + "\n")
	}
	b.WriteString("💰 Valor: " + FormatMoney(o.TotalAmount) + "\n")
	b.WriteString("📅 Aberta em: " + FormatDate(o.OpenedAt))
	if o.ExpectedAt != nil {
		b.WriteString("\n⏳ Previsão: " + o.ExpectedAt.Format("02/01/2006"))
	}
	return b.String()
}

func presentOrderDetails(o *orders.ServiceOrder) string {
	var b strings.Builder
	b.WriteString("📋 *" + o.OrderNumber + "*\n")
	b.WriteString("👤 " + o.ClientName)
	if o.ClientPhone != "" {
		b.WriteString(" (" + o.ClientPhone + ")")
	}
	b.WriteString("\n")
	if o.Title != "" {
		b.WriteString("🔧 " + o.Title + "\n")
	}
	if o.Description != "" {
		b.WriteString(o.Description + "\n")
	}
	b.WriteString("📌 Status: " + statusLabel(o.Status) + "\n")
	b.WriteString("⚡ Prioridade: " + priorityLabel(o.Priority) + "\n")
	b.WriteString("💰 Valor: " + FormatMoney(o.TotalAmount) + "\n")
	b.WriteString("📅 Aberta em: " + FormatDate(o.OpenedAt))
	if o.ExpectedAt != nil {
		b.WriteString("\n⏳ Previsão: " + o.ExpectedAt.Format("02/01/2006"))
	}
	if o.CompletedAt != nil {
		b.WriteString("\n✅ Concluída em: " + FormatDate(*o.CompletedAt))
	}
	if len(o.Parts) > 0 {
		b.WriteString("\n🔩 Peças:")
		for _, part := range o.Parts {
			b.WriteString(fmt.Sprintf("\n  • %dx %s — %s", part.Quantity, part.Name, FormatMoney(part.UnitPrice)))
		}
	}
	if o.Notes != "" {
		b.WriteString("\n📝 " + o.Notes)
	}
	return b.String()
}

func presentOrderList(list []*orders.ServiceOrder) string {
	if len(list) == 0 {
		return "Nenhuma ordem de serviço encontrada."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 %d ordem(ns) de serviço:\n", len(list)))
	shown := list
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, o := range shown {
		b.WriteString(fmt.Sprintf("\n• *%s* — %s — %s — %s",
			o.OrderNumber, o.ClientName, statusLabel(o.Status), FormatMoney(o.TotalAmount)))
	}
	if rest := len(list) - len(shown); rest > 0 {
		b.WriteString(fmt.Sprintf("\n\n…e mais %d.", rest))
	}
	return b.String()
}

func presentStatusChanged(o *orders.ServiceOrder) string {
	return fmt.Sprintf("✅ Status da *%s* atualizado para *%s*.", o.OrderNumber, statusLabel(o.Status))
}

func presentTotals(t *orders.Totals) string {
	var b strings.Builder
	b.WriteString("📊 Totalizadores:\n")
	b.WriteString(fmt.Sprintf("• Ordens: %d\n", t.Count))
	for _, status := range []string{orders.StatusOpen, orders.StatusInProgress, orders.StatusAwaitingParts, orders.StatusDone, orders.StatusCancelled} {
		if count := t.ByStatus[status]; count > 0 {
			b.WriteString(fmt.Sprintf("  • %s: %d\n", statusLabel(status), count))
		}
	}
	b.WriteString("• Orçado: " + FormatMoney(t.EstimatedSum) + "\n")
	b.WriteString("• Total: " + FormatMoney(t.FinalSum))
	return b.String()
}

func presentBalance(b *orders.Balance) string {
	label := "do dia"
	if b.Period == "month" {
		label = "do mês"
	}
	return fmt.Sprintf("💰 Saldo %s: %s em %d ordem(ns).", label, FormatMoney(b.Sum), b.Count)
}

func presentNotificationScheduled(n *notifications.Notification) string {
	var b strings.Builder
	b.WriteString("⏰ Lembrete agendado!\n")
	if n.TargetName != "" {
		b.WriteString("👤 Para: " + n.TargetName + "\n")
	}
	b.WriteString("📅 Quando: " + FormatDate(n.SendAt.Local()))
	if n.Recurring() {
		b.WriteString(fmt.Sprintf("\n🔁 Repete a cada %d dia(s)", n.RepeatDays))
	}
	return b.String()
}

func presentNotificationList(list []*notifications.Notification) string {
	if len(list) == 0 {
		return "Nenhum lembrete agendado."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⏰ %d lembrete(s):\n", len(list)))
	shown := list
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, n := range shown {
		summary := n.Title
		if summary == "" {
			summary = n.Body
			if runes := []rune(summary); len(runes) > 40 {
				summary = string(runes[:40]) + "…"
			}
		}
		b.WriteString(fmt.Sprintf("\n• %s — %s (%s)", FormatDate(n.SendAt.Local()), summary, n.Status))
	}
	if rest := len(list) - len(shown); rest > 0 {
		b.WriteString(fmt.Sprintf("\n\n…e mais %d.", rest))
	}
	return b.String()
}

func presentContact(c *contacts.Contact) string {
	var b strings.Builder
	b.WriteString("👤 *" + displayName(c) + "*\n")
	b.WriteString("📱 " + c.Phone)
	if c.Email != "" {
		b.WriteString("\n📧 " + c.Email)
	}
	if c.Notes != "" {
		b.WriteString("\n📝 " + c.Notes)
	}
	if c.Favorite {
		b.WriteString("\n⭐ Favorito")
	}
	return b.String()
}

func presentContactList(list []*contacts.Contact) string {
	if len(list) == 0 {
		return "Nenhum contato salvo."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📇 %d contato(s):\n", len(list)))
	shown := list
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, c := range shown {
		star := ""
		if c.Favorite {
			star = " ⭐"
		}
		b.WriteString(fmt.Sprintf("\n• %s — %s%s", displayName(c), c.Phone, star))
	}
	if rest := len(list) - len(shown); rest > 0 {
		b.WriteString(fmt.Sprintf("\n\n…e mais %d.", rest))
	}
	return b.String()
}

func displayName(c *contacts.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Phone
}
