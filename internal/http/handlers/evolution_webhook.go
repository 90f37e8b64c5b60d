package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/castrolabs/osbot/internal/engine"
	"github.com/castrolabs/osbot/internal/observability/metrics"
	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

var errNoTranscriber = errors.New("handlers: no transcriber configured")

// messageEngine is the slice of the engine the webhook needs.
type messageEngine interface {
	HandleUserMessage(ctx context.Context, in engine.Inbound) (engine.Outbound, error)
}

// transcriber turns a voice note into text.
type transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// EvolutionWebhookConfig wires the webhook handler.
type EvolutionWebhookConfig struct {
	Engine      messageEngine
	Gateway     whatsapp.Gateway
	Transcriber transcriber
	APIKey      string
	// PublicBaseURL turns generated file paths into URLs for SendMedia.
	PublicBaseURL  string
	AllowedPhones  []string
	BlockedPhones  []string
	ProcessTimeout time.Duration
	Logger         *logging.Logger
	Metrics        *metrics.BotMetrics
}

// EvolutionWebhookHandler normalizes Evolution API webhook deliveries
// and feeds extracted user messages to the engine.
type EvolutionWebhookHandler struct {
	engine         messageEngine
	gateway        whatsapp.Gateway
	transcriber    transcriber
	apiKey         string
	publicBaseURL  string
	allowed        map[string]struct{}
	blocked        map[string]struct{}
	processTimeout time.Duration
	logger         *logging.Logger
	metrics        *metrics.BotMetrics
}

// NewEvolutionWebhookHandler creates the webhook handler.
func NewEvolutionWebhookHandler(cfg EvolutionWebhookConfig) *EvolutionWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	return &EvolutionWebhookHandler{
		engine:         cfg.Engine,
		gateway:        cfg.Gateway,
		transcriber:    cfg.Transcriber,
		apiKey:         cfg.APIKey,
		publicBaseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		allowed:        phoneSet(cfg.AllowedPhones),
		blocked:        phoneSet(cfg.BlockedPhones),
		processTimeout: cfg.ProcessTimeout,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}
}

func phoneSet(phones []string) map[string]struct{} {
	if len(phones) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(phones))
	for _, p := range phones {
		if digits := whatsapp.NormalizePhone(p); digits != "" {
			out[digits] = struct{}{}
		}
	}
	return out
}

// webhookResponse is the body returned for every delivery.
type webhookResponse struct {
	Received bool   `json:"received"`
	Message  string `json:"message,omitempty"`
}

// Handle serves POST /webhook and any provider sub-path under it.
func (h *EvolutionWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.observe("invalid", "bad_request")
		writeWebhook(w, http.StatusBadRequest, webhookResponse{Received: false, Message: "invalid JSON body"})
		return
	}

	if !h.authorized(r, body) {
		h.observe("unknown", "unauthorized")
		writeWebhook(w, http.StatusUnauthorized, webhookResponse{Received: false, Message: "invalid api key"})
		return
	}

	evt := normalizeEvent(r.URL.Path, body)
	switch evt.Name {
	case "messages.upsert":
		msgs := extractMessages(evt.Data)
		h.logger.Info("webhook received", "event", evt.Name, "instance", evt.Instance, "messages", len(msgs))
		for _, msg := range msgs {
			go h.process(msg)
		}
		h.observe(evt.Name, "ok")
	case "messages.update", "chats.update", "connection.update":
		h.logger.Debug("webhook event ignored", "event", evt.Name)
		h.observe(evt.Name, "ignored")
	default:
		h.logger.Debug("unknown webhook event", "event", evt.Name)
		h.observe("unknown", "ignored")
	}

	// always 200 once dispatch is attempted: provider retries must not
	// be triggered by downstream business errors
	writeWebhook(w, http.StatusOK, webhookResponse{Received: true})
}

func (h *EvolutionWebhookHandler) observe(event, status string) {
	h.metrics.ObserveWebhook(event, status)
}

// authorized checks the shared-secret API key against the accepted
// header locations and the payload itself. No configured key means
// open access.
func (h *EvolutionWebhookHandler) authorized(r *http.Request, body map[string]any) bool {
	if h.apiKey == "" {
		return true
	}
	candidates := []string{
		r.Header.Get("x-evolution-apikey"),
		r.Header.Get("x-api-key"),
		r.Header.Get("apikey"),
		strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
	}
	if v, ok := body["apikey"].(string); ok {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		if c != "" && c == h.apiKey {
			return true
		}
	}
	return false
}

// normalizedEvent is the canonical {event, instance, data} form.
type normalizedEvent struct {
	Name     string
	Instance string
	Data     any
}

var eventSepRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeEvent resolves the event name from the body, falling back to
// the request path, and collapses punctuation to dot-separated tokens.
func normalizeEvent(path string, body map[string]any) normalizedEvent {
	name, _ := body["event"].(string)
	if name == "" {
		name = strings.Trim(strings.TrimPrefix(path, "/webhook"), "/")
	}
	name = eventSepRe.ReplaceAllString(strings.ToLower(name), ".")
	name = strings.Trim(name, ".")

	instance, _ := body["instance"].(string)

	var data any = body
	if d, ok := body["data"]; ok && d != nil {
		data = d
	} else if p, ok := body["payload"]; ok && p != nil {
		data = p
	}
	return normalizedEvent{Name: name, Instance: instance, Data: data}
}

// rawMessage is one provider message before filtering.
type rawMessage struct {
	ChatID  string
	Phone   string
	Name    string
	Text    string
	AudioID string
	FromMe  bool
}

// extractMessages walks the known payload shapes: data.messages[], a
// bare array, a single message object, then one level of data.data.
func extractMessages(data any) []rawMessage {
	switch v := data.(type) {
	case []any:
		var out []rawMessage
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				if msg, ok := parseMessage(obj); ok {
					out = append(out, msg)
				}
			}
		}
		return out
	case map[string]any:
		if list, ok := v["messages"].([]any); ok {
			return extractMessages(list)
		}
		if _, hasMsg := v["message"]; hasMsg {
			if msg, ok := parseMessage(v); ok {
				return []rawMessage{msg}
			}
			return nil
		}
		if _, hasKey := v["key"]; hasKey {
			if msg, ok := parseMessage(v); ok {
				return []rawMessage{msg}
			}
			return nil
		}
		if inner, ok := v["data"]; ok {
			return extractMessages(inner)
		}
	}
	return nil
}

// parseMessage pulls chat id, sender and content out of one message
// object in the Evolution/Baileys shape.
func parseMessage(obj map[string]any) (rawMessage, bool) {
	var msg rawMessage

	if key, ok := obj["key"].(map[string]any); ok {
		msg.ChatID, _ = key["remoteJid"].(string)
		msg.FromMe, _ = key["fromMe"].(bool)
		msg.AudioID, _ = key["id"].(string)
	}
	msg.Name, _ = obj["pushName"].(string)
	msg.Phone = whatsapp.NormalizePhone(msg.ChatID)

	content, _ := obj["message"].(map[string]any)
	if content == nil {
		return msg, false
	}
	if text, ok := content["conversation"].(string); ok && text != "" {
		msg.Text = text
	} else if ext, ok := content["extendedTextMessage"].(map[string]any); ok {
		msg.Text, _ = ext["text"].(string)
	}
	if _, ok := content["audioMessage"]; !ok {
		msg.AudioID = ""
	}

	if msg.ChatID == "" || msg.Phone == "" {
		return msg, false
	}
	if msg.Text == "" && msg.AudioID == "" {
		return msg, false
	}
	return msg, true
}

// process handles one extracted message asynchronously: filter, maybe
// transcribe, run the engine, send the reply.
func (h *EvolutionWebhookHandler) process(msg rawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), h.processTimeout)
	defer cancel()

	if msg.FromMe {
		return
	}
	if !h.phoneAllowed(msg.Phone) {
		h.logger.Debug("message from filtered phone dropped", "phone", msg.Phone)
		return
	}

	text := msg.Text
	if text == "" && msg.AudioID != "" {
		transcribed, err := h.transcribe(ctx, msg.AudioID)
		if err != nil {
			h.logger.Error("voice note transcription failed", "error", err, "chat_id", msg.ChatID)
			h.reply(ctx, msg.Phone, "Desculpa, não consegui ouvir seu áudio. Pode escrever?", "")
			return
		}
		text = transcribed
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	out, err := h.engine.HandleUserMessage(ctx, engine.Inbound{
		Text:      text,
		UserPhone: msg.Phone,
		ChatID:    msg.ChatID,
		UserName:  msg.Name,
	})
	if err != nil {
		h.logger.Error("message handling failed", "error", err, "chat_id", msg.ChatID)
		return
	}
	h.reply(ctx, msg.Phone, out.ReplyText, out.MediaPath)
}

func (h *EvolutionWebhookHandler) transcribe(ctx context.Context, messageID string) (string, error) {
	if h.transcriber == nil {
		return "", errNoTranscriber
	}
	audio, err := h.gateway.DownloadMedia(ctx, messageID)
	if err != nil {
		return "", err
	}
	return h.transcriber.Transcribe(ctx, audio)
}

func (h *EvolutionWebhookHandler) reply(ctx context.Context, phone, text, mediaPath string) {
	if text != "" {
		if err := h.gateway.SendText(ctx, phone, text); err != nil {
			h.logger.Error("reply send failed", "error", err, "phone", phone)
			h.metrics.ObserveOutbound("text", "error")
		} else {
			h.metrics.ObserveOutbound("text", "ok")
		}
	}
	if mediaPath != "" {
		media := mediaPath
		if h.publicBaseURL != "" {
			if i := strings.LastIndex(mediaPath, "/"); i >= 0 {
				media = h.publicBaseURL + "/files/" + mediaPath[i+1:]
			}
		}
		if err := h.gateway.SendMedia(ctx, phone, media, ""); err != nil {
			h.logger.Error("media send failed", "error", err, "phone", phone)
			h.metrics.ObserveOutbound("media", "error")
		} else {
			h.metrics.ObserveOutbound("media", "ok")
		}
	}
}

func (h *EvolutionWebhookHandler) phoneAllowed(phone string) bool {
	if _, ok := h.blocked[phone]; ok {
		return false
	}
	if len(h.allowed) == 0 {
		return true
	}
	_, ok := h.allowed[phone]
	return ok
}

func writeWebhook(w http.ResponseWriter, status int, resp webhookResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
