package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
)

// maxHistoryMessages bounds the working transcript handed to the model.
// Older turns fall off; the database transcript keeps everything.
const maxHistoryMessages = 20

// History holds the per-conversation working transcript between webhook
// deliveries. Implementations must be safe for concurrent use.
type History interface {
	Load(ctx context.Context, key string) ([]openai.ChatCompletionMessage, error)
	Save(ctx context.Context, key string, msgs []openai.ChatCompletionMessage) error
}

// trimHistory keeps the newest messages and drops orphaned tool results
// left at the head after the cut, since the API rejects a tool message
// without its preceding assistant tool call.
func trimHistory(msgs []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(msgs) > maxHistoryMessages {
		msgs = msgs[len(msgs)-maxHistoryMessages:]
	}
	for len(msgs) > 0 && msgs[0].Role == openai.ChatMessageRoleTool {
		msgs = msgs[1:]
	}
	return msgs
}

// MemoryHistory keeps transcripts in process memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]openai.ChatCompletionMessage
}

// NewMemoryHistory creates an empty in-process history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]openai.ChatCompletionMessage)}
}

func (h *MemoryHistory) Load(ctx context.Context, key string) ([]openai.ChatCompletionMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stored := h.entries[key]
	out := make([]openai.ChatCompletionMessage, len(stored))
	copy(out, stored)
	return out, nil
}

func (h *MemoryHistory) Save(ctx context.Context, key string, msgs []openai.ChatCompletionMessage) error {
	msgs = trimHistory(msgs)
	stored := make([]openai.ChatCompletionMessage, len(msgs))
	copy(stored, msgs)
	h.mu.Lock()
	h.entries[key] = stored
	h.mu.Unlock()
	return nil
}

// RedisHistory keeps transcripts in Redis so multiple instances see the
// same working context. Entries expire on their own after the TTL.
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHistory wraps a Redis client. A zero ttl defaults to 24h.
func NewRedisHistory(client *redis.Client, ttl time.Duration) *RedisHistory {
	if client == nil {
		panic("engine: nil redis client")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisHistory{client: client, ttl: ttl}
}

func (h *RedisHistory) redisKey(key string) string { return "osbot:history:" + key }

func (h *RedisHistory) Load(ctx context.Context, key string) ([]openai.ChatCompletionMessage, error) {
	raw, err := h.client.Get(ctx, h.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("engine: load history: %w", err)
	}
	var msgs []openai.ChatCompletionMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		// a corrupt entry is not worth failing the turn over
		return nil, nil
	}
	return msgs, nil
}

func (h *RedisHistory) Save(ctx context.Context, key string, msgs []openai.ChatCompletionMessage) error {
	raw, err := json.Marshal(trimHistory(msgs))
	if err != nil {
		return fmt.Errorf("engine: encode history: %w", err)
	}
	if err := h.client.Set(ctx, h.redisKey(key), raw, h.ttl).Err(); err != nil {
		return fmt.Errorf("engine: save history: %w", err)
	}
	return nil
}

// keyedMutex serializes work per conversation so two webhook deliveries
// for the same chat cannot interleave tool calls.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
