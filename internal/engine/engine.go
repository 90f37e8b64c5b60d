package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/castrolabs/osbot/internal/chat"
	"github.com/castrolabs/osbot/internal/observability/metrics"
	"github.com/castrolabs/osbot/pkg/logging"
)

// maxToolRounds bounds how many times one inbound message may loop
// through model → tools → model before we force a final reply.
const maxToolRounds = 3

// hydrateLimit is how many persisted messages seed an empty history.
const hydrateLimit = 10

// ChatClient is the slice of the LLM client the engine needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
}

// Inbound is one user message as extracted by the webhook ingress.
type Inbound struct {
	Text      string
	UserPhone string
	ChatID    string
	UserName  string
}

// Outbound is the reply to send back, with an optional file to attach.
type Outbound struct {
	ReplyText string
	MediaPath string
}

// Engine turns one inbound message into one outbound reply, running
// tool calls against the repositories in between.
type Engine struct {
	llm      ChatClient
	toolset  *Toolset
	registry *Registry
	history  History
	chat     chat.Store
	metrics  *metrics.BotMetrics
	logger   *logging.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// NewEngine wires the toolset into a validated registry. It fails fast
// when the tool catalog is incomplete.
func NewEngine(client ChatClient, toolset *Toolset, history History, m *metrics.BotMetrics, logger *logging.Logger) (*Engine, error) {
	if client == nil {
		return nil, errors.New("engine: nil chat client")
	}
	if toolset == nil {
		return nil, errors.New("engine: nil toolset")
	}
	if toolset.Chat == nil {
		return nil, errors.New("engine: toolset has no chat store")
	}
	registry, err := toolset.Registry()
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = NewMemoryHistory()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		llm:      client,
		toolset:  toolset,
		registry: registry,
		history:  history,
		chat:     toolset.Chat,
		metrics:  m,
		logger:   logger,
		locks:    newKeyedMutex(),
		now:      toolset.Now,
	}, nil
}

// HandleUserMessage processes one user turn end to end. Deliveries for
// the same (phone, chat) pair are serialized; different conversations
// proceed independently.
func (e *Engine) HandleUserMessage(ctx context.Context, in Inbound) (Outbound, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Outbound{}, errors.New("engine: empty message")
	}

	unlock := e.locks.lock(in.UserPhone + "|" + in.ChatID)
	defer unlock()

	user, err := e.chat.ResolveUser(ctx, in.UserPhone, in.UserName)
	if err != nil {
		return Outbound{}, fmt.Errorf("engine: resolve user: %w", err)
	}
	conv, err := e.chat.ResolveConversation(ctx, user.ID, in.ChatID)
	if err != nil {
		return Outbound{}, fmt.Errorf("engine: resolve conversation: %w", err)
	}

	historyKey := in.UserPhone + "|" + in.ChatID
	work, err := e.history.Load(ctx, historyKey)
	if err != nil {
		e.logger.Warn("history load failed", "error", err, "chat_id", in.ChatID)
		work = nil
	}
	if len(work) == 0 {
		work = e.hydrate(ctx, conv.ID)
	}

	if _, err := e.chat.SaveMessage(ctx, conv.ID, in.Text, false); err != nil {
		e.logger.Warn("persist user turn failed", "error", err, "chat_id", in.ChatID)
	}

	work = append(work, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: in.Text,
	})

	tc := ToolContext{UserID: user.ID, UserPhone: user.Phone, ChatID: in.ChatID}
	reply, mediaPath := e.converse(ctx, tc, in.UserName, &work)

	if _, err := e.chat.SaveMessage(ctx, conv.ID, reply, true); err != nil {
		e.logger.Warn("persist assistant turn failed", "error", err, "chat_id", in.ChatID)
	}
	work = append(work, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	if err := e.history.Save(ctx, historyKey, work); err != nil {
		e.logger.Warn("history save failed", "error", err, "chat_id", in.ChatID)
	}

	return Outbound{ReplyText: reply, MediaPath: mediaPath}, nil
}

// hydrate seeds an empty working history from the persisted transcript.
func (e *Engine) hydrate(ctx context.Context, conversationID uuid.UUID) []openai.ChatCompletionMessage {
	msgs, err := e.chat.RecentMessages(ctx, conversationID, hydrateLimit)
	if err != nil {
		e.logger.Warn("history hydration failed", "error", err)
		return nil
	}
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.FromMe {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// converse runs the model → tools → model rounds. The working history
// is mutated in place so tool turns survive into later messages. It
// never returns an empty reply.
func (e *Engine) converse(ctx context.Context, tc ToolContext, userName string, work *[]openai.ChatCompletionMessage) (reply, mediaPath string) {
	system := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(userName, e.now()),
	}
	tools := e.registry.Tools()

	for round := 0; round < maxToolRounds; round++ {
		phase := "classify"
		if round > 0 {
			phase = "finalize"
		}

		prompt := make([]openai.ChatCompletionMessage, 0, len(*work)+2)
		prompt = append(prompt, system)
		prompt = append(prompt, *work...)
		if round > 0 {
			prompt = append(prompt, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: verbatimHint,
			})
		}

		started := e.now()
		msg, err := e.llm.Chat(ctx, prompt, tools)
		e.metrics.ObserveLLMLatency(phase, time.Since(started).Seconds())
		if err != nil {
			e.logger.Error("llm call failed", "error", err, "phase", phase)
			return apologyReply, mediaPath
		}

		if len(msg.ToolCalls) == 0 {
			if strings.TrimSpace(msg.Content) == "" {
				return apologyReply, mediaPath
			}
			return msg.Content, mediaPath
		}

		*work = append(*work, msg)
		for _, call := range msg.ToolCalls {
			result := e.registry.Dispatch(ctx, tc, call.Function.Name, json.RawMessage(call.Function.Arguments))
			outcome := "ok"
			if !result.Success {
				outcome = "error"
			}
			e.metrics.ObserveTool(call.Function.Name, outcome)
			e.logger.Info("tool dispatched", "tool", call.Function.Name, "success", result.Success)
			if result.MediaPath != "" {
				mediaPath = result.MediaPath
			}

			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(`{"success":false,"error":"resultado indisponível"}`)
			}
			*work = append(*work, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    string(payload),
			})
		}
	}

	e.logger.Warn("tool round limit reached", "chat_id", tc.ChatID)
	return apologyReply, mediaPath
}
