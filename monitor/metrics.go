// Package monitor exposes Prometheus metrics for the completion path.
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chatbridge/chatbridge/bridge"
)

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatbridge",
		Name:      "completions_total",
		Help:      "Completions by model, mode (sync/stream) and outcome.",
	}, []string{"model", "mode", "outcome"})

	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatbridge",
		Name:      "completion_duration_seconds",
		Help:      "Wall time of completion requests.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model", "mode"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatbridge",
		Name:      "tokens_total",
		Help:      "Tokens consumed, split by prompt/completion.",
	}, []string{"model", "kind"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatbridge",
		Name:      "active_streams",
		Help:      "Streamed completions currently being delivered.",
	})
)

// RecordCompletion counts one finished completion request.
func RecordCompletion(model, mode string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	completionsTotal.WithLabelValues(model, mode, outcome).Inc()
	completionDuration.WithLabelValues(model, mode).Observe(time.Since(start).Seconds())
}

// RecordUsage counts the tokens the endpoint reported.
func RecordUsage(model string, u bridge.Usage) {
	if u.PromptTokens > 0 {
		tokensTotal.WithLabelValues(model, "prompt").Add(float64(u.PromptTokens))
	}
	if u.CompletionTokens > 0 {
		tokensTotal.WithLabelValues(model, "completion").Add(float64(u.CompletionTokens))
	}
}

// StreamStarted / StreamFinished bracket one SSE delivery.
func StreamStarted()  { activeSessions.Inc() }
func StreamFinished() { activeSessions.Dec() }
