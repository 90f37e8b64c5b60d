package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/castrolabs/osbot/internal/whatsapp"
)

func (t *Toolset) registerMessagingTools(r *Registry) {
	r.register("enviar_mensagem_whatsapp",
		"Envia agora uma mensagem de WhatsApp para um número ou contato salvo.",
		objectSchema(map[string]any{
			"destino":  strProp("Telefone ou nome de um contato salvo"),
			"mensagem": strProp("Texto a enviar"),
		}, "destino", "mensagem"),
		t.handleSendMessage, presentAny(func(sent *sentMessage) string {
			if sent.ContactName != "" {
				return fmt.Sprintf("✅ Mensagem enviada para %s (%s).", sent.ContactName, sent.Phone)
			}
			return "✅ Mensagem enviada para " + sent.Phone + "."
		}))

	r.register("enviar_pdf_os_para_contato",
		"Gera o PDF de uma ordem de serviço e envia por WhatsApp para um número ou contato salvo.",
		objectSchema(map[string]any{
			"numero_os": strProp("Número da ordem de serviço"),
			"destino":   strProp("Telefone ou nome de um contato salvo. Vazio envia para o cliente da OS"),
			"mensagem":  strProp("Legenda opcional a acompanhar o PDF"),
		}, "numero_os"),
		t.handleSendOrderPDF, presentAny(func(sent *sentMessage) string {
			if sent.ContactName != "" {
				return fmt.Sprintf("📄 PDF da *%s* enviado para %s (%s).", sent.OrderNumber, sent.ContactName, sent.Phone)
			}
			return fmt.Sprintf("📄 PDF da *%s* enviado para %s.", sent.OrderNumber, sent.Phone)
		}))
}

type sentMessage struct {
	Phone       string `json:"phone"`
	ContactName string `json:"contact_name,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

// resolveTarget turns a phone or a saved-contact name into a dialable number.
func (t *Toolset) resolveTarget(ctx context.Context, tc ToolContext, target string) (phone, name string, opErr *OperationError) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", "", Validation("Para quem devo enviar? Me diga um telefone ou o nome de um contato salvo.")
	}
	if normalized := whatsapp.NormalizePhone(target); normalized != "" {
		if c, err := t.Contacts.FindByPhone(ctx, tc.UserID, normalized); err == nil {
			return c.Phone, c.Name, nil
		}
		return normalized, "", nil
	}
	matches, err := t.Contacts.Search(ctx, tc.UserID, target, 2)
	if err != nil {
		return "", "", Persistence(err)
	}
	switch len(matches) {
	case 0:
		return "", "", NotFound("Não achei nenhum contato chamado " + target + ". Me passa o telefone?")
	case 1:
		return matches[0].Phone, matches[0].Name, nil
	default:
		return "", "", Validation("Tenho mais de um contato parecido com " + target + ". Qual deles — ou me passa o telefone?")
	}
}

type sendMessageArgs struct {
	Destino  string `json:"destino"`
	Mensagem string `json:"mensagem"`
}

func (t *Toolset) handleSendMessage(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args sendMessageArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.Mensagem) == "" {
		return nil, Validation("Qual mensagem devo enviar?")
	}
	phone, name, opErr := t.resolveTarget(ctx, tc, args.Destino)
	if opErr != nil {
		return nil, opErr
	}
	if err := t.Gateway.SendText(ctx, phone, args.Mensagem); err != nil {
		return nil, Transport(err)
	}
	return &sentMessage{Phone: phone, ContactName: name}, nil
}

type sendOrderPDFArgs struct {
	NumeroOS string `json:"numero_os"`
	Destino  string `json:"destino"`
	Mensagem string `json:"mensagem"`
}

func (t *Toolset) handleSendOrderPDF(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args sendOrderPDFArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	order, opErr := t.lookupOrder(ctx, tc, args.NumeroOS)
	if opErr != nil {
		return nil, opErr
	}

	var phone, name string
	if strings.TrimSpace(args.Destino) == "" {
		if order.ClientPhone == "" {
			return nil, Validation("Essa OS não tem telefone de cliente. Para quem devo enviar?")
		}
		phone, name = whatsapp.NormalizePhone(order.ClientPhone), order.ClientName
	} else {
		phone, name, opErr = t.resolveTarget(ctx, tc, args.Destino)
		if opErr != nil {
			return nil, opErr
		}
	}

	if t.Renderer == nil {
		return nil, Internal(errors.New("engine: no pdf renderer configured"))
	}
	path, err := t.Renderer.RenderOrder(order)
	if err != nil {
		return nil, Internal(err)
	}

	caption := strings.TrimSpace(args.Mensagem)
	if caption == "" {
		caption = "Ordem de Serviço " + order.OrderNumber
	}
	media := t.Renderer.PublicURL(path)
	if media == "" {
		media = path
	}
	if err := t.Gateway.SendMedia(ctx, phone, media, caption); err != nil {
		return nil, Transport(err)
	}
	if err := os.Remove(path); err != nil {
		t.Logger.Warn("temp pdf cleanup failed", "path", path, "error", err)
	}
	return &sentMessage{Phone: phone, ContactName: name, OrderNumber: order.OrderNumber}, nil
}
