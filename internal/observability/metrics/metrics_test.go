package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBotMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)
	m.ObserveWebhook("messages.upsert", "dispatched")
	m.ObserveTool("criar_ordem_servico", "success")
	m.ObserveLLMLatency("tool_selection", 1.2)
	m.ObserveSweep("sent")
	m.ObserveOutbound("text", "ok")
}

func TestBotMetricsNilSafe(t *testing.T) {
	var m *BotMetrics
	m.ObserveWebhook("event", "status")
	m.ObserveTool("tool", "outcome")
	m.ObserveLLMLatency("phase", 0.1)
	m.ObserveSweep("outcome")
	m.ObserveOutbound("kind", "status")
}
