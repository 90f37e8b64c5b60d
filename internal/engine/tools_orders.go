package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/castrolabs/osbot/internal/contacts"
	"github.com/castrolabs/osbot/internal/orders"
)

func (t *Toolset) registerOrderTools(r *Registry) {
	r.register("criar_ordem_servico",
		"Cria uma nova ordem de serviço para um cliente. Use quando o usuário pedir para abrir/criar uma OS.",
		objectSchema(map[string]any{
			"nome_cliente":     strProp("Nome do cliente"),
			"telefone_cliente": strProp("Telefone do cliente, se informado"),
			"email_cliente":    strProp("E-mail do cliente"),
			"endereco":         strProp("Endereço do cliente"),
			"servico":          strProp("Título curto do serviço, ex: troca de torneira"),
			"descricao":        strProp("Descrição detalhada do serviço"),
			"categoria":        strProp("Categoria do serviço"),
			"prioridade":       strProp("Prioridade: baixa, normal, alta ou urgente"),
			"valor":            numProp("Valor total em reais"),
			"valor_estimado":   numProp("Valor estimado/orçado em reais"),
			"previsao":         strProp("Previsão de conclusão, data em linguagem natural"),
			"observacoes":      strProp("Observações livres"),
		}, "nome_cliente"),
		t.handleCreateOrder, presentAny(presentOrderCreated))

	r.register("consultar_ordem_servico",
		"Consulta uma ordem de serviço pelo número (formato OS-AAAAMMDD-NNNNNN).",
		objectSchema(map[string]any{
			"numero_os": strProp("Número da ordem de serviço"),
		}, "numero_os"),
		t.handleGetOrder, presentAny(presentOrderDetails))

	r.register("listar_ordens_servico",
		"Lista ordens de serviço do usuário, com filtros opcionais de status e período.",
		objectSchema(map[string]any{
			"status": strProp("Filtra por status: aberta, em andamento, aguardando peças, concluída, cancelada"),
			"dias":   intProp("Considera apenas ordens abertas nos últimos N dias"),
			"limite": intProp("Máximo de ordens a retornar"),
		}),
		t.handleListOrders, presentAny(presentOrderList))

	r.register("atualizar_status_ordem",
		"Atualiza o status de uma ordem de serviço.",
		objectSchema(map[string]any{
			"numero_os": strProp("Número da ordem de serviço"),
			"status":    strProp("Novo status: aberta, em andamento, aguardando peças, concluída, cancelada"),
		}, "numero_os", "status"),
		t.handleUpdateStatus, presentAny(presentStatusChanged))

	r.register("atualizar_ordem_servico",
		"Atualiza campos de uma ordem de serviço existente (cliente, serviço, valor, previsão...).",
		objectSchema(map[string]any{
			"numero_os":        strProp("Número da ordem de serviço"),
			"nome_cliente":     strProp("Novo nome do cliente"),
			"telefone_cliente": strProp("Novo telefone do cliente"),
			"servico":          strProp("Novo título do serviço"),
			"descricao":        strProp("Nova descrição"),
			"categoria":        strProp("Nova categoria"),
			"prioridade":       strProp("Nova prioridade"),
			"valor":            numProp("Novo valor total em reais"),
			"previsao":         strProp("Nova previsão de conclusão"),
		}, "numero_os"),
		t.handleUpdateOrder, presentAny(presentOrderDetails))

	r.register("adicionar_observacao_ordem",
		"Acrescenta uma observação a uma ordem de serviço.",
		objectSchema(map[string]any{
			"numero_os":  strProp("Número da ordem de serviço"),
			"observacao": strProp("Texto da observação"),
		}, "numero_os", "observacao"),
		t.handleAppendNote, presentAny(func(o *orders.ServiceOrder) string {
			return fmt.Sprintf("📝 Observação registrada na *%s*.", o.OrderNumber)
		}))

	r.register("registrar_peca_ordem",
		"Registra uma peça utilizada em uma ordem de serviço.",
		objectSchema(map[string]any{
			"numero_os":      strProp("Número da ordem de serviço"),
			"nome_peca":      strProp("Nome da peça"),
			"quantidade":     intProp("Quantidade (padrão 1)"),
			"valor_unitario": numProp("Valor unitário em reais"),
		}, "numero_os", "nome_peca"),
		t.handleAddPart, presentAny(func(o *orders.ServiceOrder) string {
			part := o.Parts[len(o.Parts)-1]
			return fmt.Sprintf("🔩 Peça registrada na *%s*: %dx %s — %s.",
				o.OrderNumber, part.Quantity, part.Name, FormatMoney(part.UnitPrice))
		}))

	r.register("buscar_ordens_cliente",
		"Busca ordens de serviço pelo nome ou telefone do cliente.",
		objectSchema(map[string]any{
			"cliente": strProp("Nome ou telefone do cliente"),
		}, "cliente"),
		t.handleSearchOrders, presentAny(presentOrderList))

	r.register("gerar_pdf_ordem",
		"Gera o PDF de uma ordem de serviço para envio.",
		objectSchema(map[string]any{
			"numero_os": strProp("Número da ordem de serviço"),
		}, "numero_os"),
		t.handleRenderPDF, presentAny(func(res *pdfResult) string {
			if res.URL != "" {
				return fmt.Sprintf("📄 PDF da *%s* gerado: %s", res.Order.OrderNumber, res.URL)
			}
			return fmt.Sprintf("📄 PDF da *%s* gerado e anexado.", res.Order.OrderNumber)
		}))

	r.register("obter_totalizadores",
		"Retorna contagens e somas das ordens de serviço, com filtros opcionais.",
		objectSchema(map[string]any{
			"status": strProp("Filtra por status"),
			"dias":   intProp("Considera apenas os últimos N dias"),
		}),
		t.handleTotals, presentAny(presentTotals))

	r.register("resumo_financeiro",
		"Resumo financeiro (saldo) do dia ou do mês corrente.",
		objectSchema(map[string]any{
			"periodo": strProp("Período: dia ou mes"),
		}),
		t.handleBalance, presentAny(presentBalance))
}

// presentAny adapts a typed template to the registry signature.
func presentAny[T any](f func(T) string) TemplateFunc {
	return func(data any) string {
		typed, ok := data.(T)
		if !ok {
			return ""
		}
		return f(typed)
	}
}

type createOrderArgs struct {
	NomeCliente     string  `json:"nome_cliente"`
	TelefoneCliente string  `json:"telefone_cliente"`
	EmailCliente    string  `json:"email_cliente"`
	Endereco        string  `json:"endereco"`
	Servico         string  `json:"servico"`
	Descricao       string  `json:"descricao"`
	Categoria       string  `json:"categoria"`
	Prioridade      string  `json:"prioridade"`
	Valor           float64 `json:"valor"`
	ValorEstimado   float64 `json:"valor_estimado"`
	Previsao        string  `json:"previsao"`
	Observacoes     string  `json:"observacoes"`
}

func (t *Toolset) handleCreateOrder(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args createOrderArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.NomeCliente) == "" {
		return nil, Validation("Preciso do nome do cliente para abrir a OS. Qual é?")
	}
	priority, ok := canonicalPriority(args.Prioridade)
	if !ok {
		return nil, Validation("Não reconheci essa prioridade. Use baixa, normal, alta ou urgente.")
	}

	in := &orders.CreateOrderInput{
		ClientName:      strings.TrimSpace(args.NomeCliente),
		ClientPhone:     args.TelefoneCliente,
		ClientEmail:     args.EmailCliente,
		ClientAddress:   args.Endereco,
		Title:           args.Servico,
		Description:     args.Descricao,
		Category:        args.Categoria,
		Priority:        priority,
		EstimatedAmount: args.ValorEstimado,
		TotalAmount:     args.Valor,
		Notes:           args.Observacoes,
	}
	if args.Previsao != "" {
		when := ParseWhen(args.Previsao, t.Now())
		in.ExpectedAt = &when.At
	}

	order, err := t.Orders.Create(ctx, tc.UserID, in)
	if err != nil {
		if errors.Is(err, orders.ErrNegativeAmount) {
			return nil, Validation("O valor da OS não pode ser negativo.")
		}
		return nil, Persistence(err)
	}

	// a client phone doubles as an address-book upsert
	if args.TelefoneCliente != "" {
		if _, err := t.Contacts.Upsert(ctx, tc.UserID, &contacts.UpsertInput{
			Phone: args.TelefoneCliente,
			Name:  order.ClientName,
			Email: args.EmailCliente,
		}); err != nil {
			t.Logger.Warn("contact upsert on order create failed", "error", err, "order", order.OrderNumber)
		}
	}

	t.fireAutomation(ctx, "order.created", map[string]any{
		"order_number": order.OrderNumber,
		"client_name":  order.ClientName,
		"client_phone": order.ClientPhone,
		"total_amount": order.TotalAmount,
	})
	return order, nil
}

type orderNumberArgs struct {
	NumeroOS string `json:"numero_os"`
}

func (t *Toolset) lookupOrder(ctx context.Context, tc ToolContext, number string) (*orders.ServiceOrder, *OperationError) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, Validation("Qual o número da OS? (formato OS-AAAAMMDD-NNNNNN)")
	}
	order, err := t.Orders.GetByNumber(ctx, tc.UserID, number)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, NotFound("Não encontrei a OS " + number + ". Confere o número?")
		}
		return nil, Persistence(err)
	}
	return order, nil
}

func (t *Toolset) handleGetOrder(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args orderNumberArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	return t.lookupOrder(ctx, tc, args.NumeroOS)
}

type listOrdersArgs struct {
	Status string `json:"status"`
	Dias   int    `json:"dias"`
	Limite int    `json:"limite"`
}

func (t *Toolset) handleListOrders(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args listOrdersArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	filter := orders.ListFilter{UserID: tc.UserID, Days: args.Dias, Limit: args.Limite}
	if filter.Limit <= 0 || filter.Limit > 50 {
		filter.Limit = 50
	}
	if args.Status != "" {
		status, ok := canonicalStatus(args.Status)
		if !ok {
			return nil, Validation("Não reconheci esse status. Use aberta, em andamento, aguardando peças, concluída ou cancelada.")
		}
		filter.Status = status
	}
	list, err := t.Orders.List(ctx, filter)
	if err != nil {
		return nil, Persistence(err)
	}
	return list, nil
}

type updateStatusArgs struct {
	NumeroOS string `json:"numero_os"`
	Status   string `json:"status"`
}

func (t *Toolset) handleUpdateStatus(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args updateStatusArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	status, ok := canonicalStatus(args.Status)
	if !ok {
		return nil, Validation("Não reconheci esse status. Use aberta, em andamento, aguardando peças, concluída ou cancelada.")
	}
	number := strings.ToUpper(strings.TrimSpace(args.NumeroOS))
	order, err := t.Orders.UpdateStatus(ctx, tc.UserID, number, status)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, NotFound("Não encontrei a OS " + number + ". Confere o número?")
		}
		return nil, Persistence(err)
	}
	t.fireAutomation(ctx, "order.status_changed", map[string]any{
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"client_name":  order.ClientName,
		"client_phone": order.ClientPhone,
	})
	return order, nil
}

type updateOrderArgs struct {
	NumeroOS        string   `json:"numero_os"`
	NomeCliente     *string  `json:"nome_cliente"`
	TelefoneCliente *string  `json:"telefone_cliente"`
	Servico         *string  `json:"servico"`
	Descricao       *string  `json:"descricao"`
	Categoria       *string  `json:"categoria"`
	Prioridade      *string  `json:"prioridade"`
	Valor           *float64 `json:"valor"`
	Previsao        *string  `json:"previsao"`
}

func (t *Toolset) handleUpdateOrder(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args updateOrderArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	in := &orders.UpdateOrderInput{
		ClientName:  args.NomeCliente,
		ClientPhone: args.TelefoneCliente,
		Title:       args.Servico,
		Description: args.Descricao,
		Category:    args.Categoria,
		TotalAmount: args.Valor,
	}
	if args.Prioridade != nil {
		priority, ok := canonicalPriority(*args.Prioridade)
		if !ok {
			return nil, Validation("Não reconheci essa prioridade. Use baixa, normal, alta ou urgente.")
		}
		in.Priority = &priority
	}
	if args.Previsao != nil && *args.Previsao != "" {
		when := ParseWhen(*args.Previsao, t.Now())
		in.ExpectedAt = &when.At
	}

	number := strings.ToUpper(strings.TrimSpace(args.NumeroOS))
	order, err := t.Orders.Update(ctx, tc.UserID, number, in)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return nil, NotFound("Não encontrei a OS " + number + ". Confere o número?")
		case errors.Is(err, orders.ErrEmptyUpdate):
			return nil, Validation("O que você quer alterar nessa OS?")
		case errors.Is(err, orders.ErrNegativeAmount):
			return nil, Validation("O valor da OS não pode ser negativo.")
		}
		return nil, Persistence(err)
	}
	return order, nil
}

type appendNoteArgs struct {
	NumeroOS   string `json:"numero_os"`
	Observacao string `json:"observacao"`
}

func (t *Toolset) handleAppendNote(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args appendNoteArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.Observacao) == "" {
		return nil, Validation("Qual observação você quer registrar?")
	}
	number := strings.ToUpper(strings.TrimSpace(args.NumeroOS))
	order, err := t.Orders.AppendNote(ctx, tc.UserID, number, strings.TrimSpace(args.Observacao))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, NotFound("Não encontrei a OS " + number + ". Confere o número?")
		}
		return nil, Persistence(err)
	}
	return order, nil
}

type addPartArgs struct {
	NumeroOS      string  `json:"numero_os"`
	NomePeca      string  `json:"nome_peca"`
	Quantidade    int     `json:"quantidade"`
	ValorUnitario float64 `json:"valor_unitario"`
}

func (t *Toolset) handleAddPart(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args addPartArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.NomePeca) == "" {
		return nil, Validation("Qual o nome da peça?")
	}
	number := strings.ToUpper(strings.TrimSpace(args.NumeroOS))
	order, err := t.Orders.AddPart(ctx, tc.UserID, number, orders.Part{
		Name:      strings.TrimSpace(args.NomePeca),
		Quantity:  args.Quantidade,
		UnitPrice: args.ValorUnitario,
	})
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, NotFound("Não encontrei a OS " + number + ". Confere o número?")
		}
		return nil, Persistence(err)
	}
	return order, nil
}

type searchOrdersArgs struct {
	Cliente string `json:"cliente"`
}

func (t *Toolset) handleSearchOrders(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args searchOrdersArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.Cliente) == "" {
		return nil, Validation("De qual cliente você quer ver as ordens?")
	}
	list, err := t.Orders.SearchByClient(ctx, tc.UserID, args.Cliente, 20)
	if err != nil {
		return nil, Persistence(err)
	}
	return list, nil
}

// pdfResult carries the rendered file so the dispatch loop can attach it.
type pdfResult struct {
	Order *orders.ServiceOrder `json:"order"`
	Path  string               `json:"path"`
	URL   string               `json:"url,omitempty"`
}

func (p *pdfResult) mediaPath() string { return p.Path }

func (t *Toolset) handleRenderPDF(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args orderNumberArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	order, opErr := t.lookupOrder(ctx, tc, args.NumeroOS)
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
	return &pdfResult{Order: order, Path: path, URL: t.Renderer.PublicURL(path)}, nil
}

type totalsArgs struct {
	Status string `json:"status"`
	Dias   int    `json:"dias"`
}

func (t *Toolset) handleTotals(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args totalsArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	filter := orders.ListFilter{UserID: tc.UserID, Days: args.Dias}
	if args.Status != "" {
		status, ok := canonicalStatus(args.Status)
		if !ok {
			return nil, Validation("Não reconheci esse status. Use aberta, em andamento, aguardando peças, concluída ou cancelada.")
		}
		filter.Status = status
	}
	totals, err := t.Orders.Totals(ctx, filter)
	if err != nil {
		return nil, Persistence(err)
	}
	return totals, nil
}

type balanceArgs struct {
	Periodo string `json:"periodo"`
}

func (t *Toolset) handleBalance(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args balanceArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	period := "month"
	switch strings.ToLower(strings.TrimSpace(args.Periodo)) {
	case "", "mes", "mês", "month", "mensal":
		period = "month"
	case "dia", "day", "hoje", "diário", "diario":
		period = "day"
	default:
		return nil, Validation("O resumo é do dia ou do mês?")
	}
	balance, err := t.Orders.Balance(ctx, tc.UserID, period, t.Now())
	if err != nil {
		return nil, Persistence(err)
	}
	return balance, nil
}
