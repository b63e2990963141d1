// Package metrics exposes Prometheus instruments fed by domain.Hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the bot's Prometheus instruments and registry.
type Collector struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	appends       prometheus.Counter
	historySize   *prometheus.GaugeVec
}

// NewCollector creates the instruments on a dedicated registry that also
// carries the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agrobot_requests_total",
				Help: "Chat requests by outcome.",
			},
			[]string{"outcome"},
		),
		modelDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agrobot_model_request_duration_seconds",
				Help:    "Latency of model provider calls.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"result"},
		),
		appends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agrobot_history_appends_total",
			Help: "Turns appended to conversation history.",
		}),
		historySize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agrobot_history_entries",
				Help: "Entries held by a conversation after the last append.",
			},
			[]string{"conversation"},
		),
	}

	c.registry.MustRegister(
		c.requests,
		c.modelDuration,
		c.appends,
		c.historySize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Hooks returns callbacks that record pipeline events.
// The history gauge is only labeled for the global conversation to keep
// cardinality bounded in session scope.
func (c *Collector) Hooks() domain.Hooks {
	return domain.Hooks{
		OnTurn: func(_ context.Context, e *domain.TurnEvent) {
			c.requests.WithLabelValues(e.Outcome).Inc()
		},
		OnModelCall: func(_ context.Context, e *domain.ModelEvent) {
			result := domain.Kind(e.Err)
			if e.Err == nil && e.Fallback {
				result = "fallback"
			}
			c.modelDuration.WithLabelValues(result).Observe(e.Duration.Seconds())
		},
		OnAppend: func(_ context.Context, conversationID string, entries int) {
			c.appends.Inc()
			label := "session"
			if conversationID == domain.GlobalConversation {
				label = domain.GlobalConversation
			}
			c.historySize.WithLabelValues(label).Set(float64(entries))
		},
	}
}
