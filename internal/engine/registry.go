package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// catalogNames is the complete tool catalog. Registry.Validate enforces
// that every name has exactly one handler and one template registered.
var catalogNames = []string{
	"criar_ordem_servico",
	"consultar_ordem_servico",
	"listar_ordens_servico",
	"atualizar_status_ordem",
	"atualizar_ordem_servico",
	"adicionar_observacao_ordem",
	"registrar_peca_ordem",
	"buscar_ordens_cliente",
	"gerar_pdf_ordem",
	"obter_totalizadores",
	"resumo_financeiro",
	"agendar_notificacao",
	"listar_notificacoes",
	"cancelar_notificacao",
	"salvar_contato",
	"buscar_contato_salvo",
	"listar_contatos",
	"excluir_contato",
	"enviar_mensagem_whatsapp",
	"enviar_pdf_os_para_contato",
}

// ToolContext carries the resolved caller identity into a handler.
type ToolContext struct {
	UserID    uuid.UUID
	UserPhone string
	ChatID    string
}

// HandlerFunc performs one tool's side effects. Expected failures come
// back as *OperationError; success returns the structured result.
type HandlerFunc func(ctx context.Context, tc ToolContext, args json.RawMessage) (any, *OperationError)

// TemplateFunc turns a successful handler result into the preformatted
// string the final LLM turn must copy verbatim.
type TemplateFunc func(data any) string

type entry struct {
	def      openai.Tool
	handle   HandlerFunc
	template TemplateFunc
}

// mediaCarrier marks handler results that produced a file to attach.
type mediaCarrier interface {
	mediaPath() string
}

// Registry maps tool names to their schema, handler and template.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func (r *Registry) register(name, description string, params map[string]any, handle HandlerFunc, template TemplateFunc) {
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("engine: duplicate tool %q", name))
	}
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	r.entries[name] = entry{
		def: openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  params,
			},
		},
		handle:   handle,
		template: template,
	}
}

// Validate checks the registry against the catalog: every name present,
// nothing extra, every entry with a handler and a template.
func (r *Registry) Validate() error {
	for _, name := range catalogNames {
		e, ok := r.entries[name]
		if !ok {
			return fmt.Errorf("engine: catalog tool %q has no handler", name)
		}
		if e.handle == nil {
			return fmt.Errorf("engine: tool %q registered without handler", name)
		}
		if e.template == nil {
			return fmt.Errorf("engine: tool %q registered without template", name)
		}
	}
	if len(r.entries) != len(catalogNames) {
		for name := range r.entries {
			if !catalogContains(name) {
				return fmt.Errorf("engine: tool %q is not in the catalog", name)
			}
		}
	}
	return nil
}

func catalogContains(name string) bool {
	for _, n := range catalogNames {
		if n == name {
			return true
		}
	}
	return false
}

// Tools returns the catalog in the LLM request shape.
func (r *Registry) Tools() []openai.Tool {
	out := make([]openai.Tool, 0, len(catalogNames))
	for _, name := range catalogNames {
		if e, ok := r.entries[name]; ok {
			out = append(out, e.def)
		}
	}
	return out
}

// Dispatch runs one tool call. It never propagates a failure: unknown
// tools, handler errors and panics all come back as a failed ToolResult
// carrying a user-safe message.
func (r *Registry) Dispatch(ctx context.Context, tc ToolContext, name string, args json.RawMessage) (result ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = failureResult(name, Internal(fmt.Errorf("panic: %v", rec)))
		}
	}()

	e, ok := r.entries[name]
	if !ok {
		return failureResult(name, Internal(fmt.Errorf("unknown tool %q", name)))
	}
	data, opErr := e.handle(ctx, tc, args)
	if opErr != nil {
		return failureResult(name, opErr)
	}
	hint := e.template(data)
	media := ""
	if carrier, ok := data.(mediaCarrier); ok {
		media = carrier.mediaPath()
	}
	return successResult(name, data, hint, media)
}

// parseArgs decodes the JSON argument object of a tool call.
func parseArgs(raw json.RawMessage, into any) *OperationError {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return Validation("Não entendi os dados do pedido. Pode repetir com mais detalhes?")
	}
	return nil
}
