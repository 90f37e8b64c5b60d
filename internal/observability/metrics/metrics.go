package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the assistant's flows.
type BotMetrics struct {
	webhookTotal  *prometheus.CounterVec
	toolTotal     *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	sweepTotal    *prometheus.CounterVec
	outboundTotal *prometheus.CounterVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osbot",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total inbound webhook events by normalized type",
		}, []string{"event_type", "status"}),
		toolTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osbot",
			Subsystem: "engine",
			Name:      "tool_dispatch_total",
			Help:      "Total tool dispatches by tool name and outcome",
		}, []string{"tool", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "osbot",
			Subsystem: "engine",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM round trips",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"phase"}),
		sweepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osbot",
			Subsystem: "notifications",
			Name:      "sweep_total",
			Help:      "Total notification sweep outcomes",
		}, []string{"outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osbot",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"kind", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.toolTotal, m.llmLatency, m.sweepTotal, m.outboundTotal)
	return m
}

func (m *BotMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BotMetrics) ObserveTool(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolTotal.WithLabelValues(tool, outcome).Inc()
}

func (m *BotMetrics) ObserveLLMLatency(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(phase).Observe(seconds)
}

func (m *BotMetrics) ObserveSweep(outcome string) {
	if m == nil {
		return
	}
	m.sweepTotal.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveOutbound(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}
