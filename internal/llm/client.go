package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/castrolabs/osbot/pkg/logging"
)

// Config describes how to reach the LLM provider.
type Config struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	TranscribeModel string
	Timeout         time.Duration
}

// Client wraps the OpenAI-compatible API used for intent classification,
// tool calling and audio transcription.
type Client struct {
	api             *openai.Client
	chatModel       string
	transcribeModel string
	timeout         time.Duration
	logger          *logging.Logger
}

// NewClient validates the configuration and returns a ready-to-use client.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: api key required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:             openai.NewClientWithConfig(clientConfig),
		chatModel:       cfg.ChatModel,
		transcribeModel: cfg.TranscribeModel,
		timeout:         cfg.Timeout,
		logger:          logger,
	}, nil
}

// Chat sends the conversation to the model. When tools are provided the model
// may answer with tool calls instead of (or in addition to) text. Transient
// failures are retried once before surfacing the error.
func (c *Client) Chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: messages,
	}
	if len(tools) > 0 {
		req.Tools = tools
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()
		if err == nil {
			if len(resp.Choices) == 0 {
				return openai.ChatCompletionMessage{}, errors.New("llm: empty chat response")
			}
			return resp.Choices[0].Message, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("llm chat failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return openai.ChatCompletionMessage{}, ctx.Err()
		}
	}
	return openai.ChatCompletionMessage{}, fmt.Errorf("llm: chat completion failed: %w", lastErr)
}

// Transcribe converts an audio payload (ogg/opus voice note) to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("llm: empty audio payload")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: "voice-note.ogg",
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("llm: transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
