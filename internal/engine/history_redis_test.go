package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
)

func newRedisHistory(t *testing.T) (*RedisHistory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisHistory(client, time.Hour), mr
}

func TestRedisHistoryRoundTrip(t *testing.T) {
	h, _ := newRedisHistory(t)
	ctx := context.Background()

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "oi"},
		{Role: openai.ChatMessageRoleAssistant, Content: "Olá! Como posso ajudar?"},
	}
	if err := h.Save(ctx, "5511999990000|chat", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := h.Load(ctx, "5511999990000|chat")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[1].Content != "Olá! Como posso ajudar?" {
		t.Fatalf("loaded = %+v", got)
	}
}

func TestRedisHistoryMissingKey(t *testing.T) {
	h, _ := newRedisHistory(t)
	got, err := h.Load(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil history, got %+v", got)
	}
}

func TestRedisHistoryCorruptEntryIgnored(t *testing.T) {
	h, mr := newRedisHistory(t)
	mr.Set("osbot:history:bad", "{not json")

	got, err := h.Load(context.Background(), "bad")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil history for corrupt entry, got %+v", got)
	}
}

func TestRedisHistoryExpires(t *testing.T) {
	h, mr := newRedisHistory(t)
	ctx := context.Background()

	msgs := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "oi"}}
	if err := h.Save(ctx, "k", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	got, err := h.Load(ctx, "k")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired history, got %+v", got)
	}
}

func TestRedisHistorySaveTrims(t *testing.T) {
	h, _ := newRedisHistory(t)
	ctx := context.Background()

	var msgs []openai.ChatCompletionMessage
	for i := 0; i < maxHistoryMessages+5; i++ {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "m"})
	}
	if err := h.Save(ctx, "k", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := h.Load(ctx, "k")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != maxHistoryMessages {
		t.Fatalf("len = %d, want %d", len(got), maxHistoryMessages)
	}
}
