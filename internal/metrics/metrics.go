// Package metrics exposes Prometheus collectors for the platform,
// fed from the system event bus so instrumented components need no
// direct dependency on it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casthq/warden/internal/events"
)

// Metrics holds the platform collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal       *prometheus.CounterVec
	agentActionsTotal *prometheus.CounterVec
	transactionsTotal *prometheus.CounterVec
	agentsCreated     prometheus.Counter
	systemErrors      prometheus.Counter

	unsubscribe func()
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "events_total",
			Help:      "System events emitted, by type.",
		}, []string{"type"}),

		agentActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "agent_actions_total",
			Help:      "Agent decisions and external intents, by action.",
		}, []string{"action"}),

		transactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "transactions_total",
			Help:      "Chain transactions recorded, by type and status.",
		}, []string{"type", "status"}),

		agentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "agents_created_total",
			Help:      "Agents created since process start.",
		}),

		systemErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "system_errors_total",
			Help:      "System error events emitted.",
		}),
	}

	m.registry.MustRegister(
		m.eventsTotal,
		m.agentActionsTotal,
		m.transactionsTotal,
		m.agentsCreated,
		m.systemErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe subscribes the collectors to the bus. Call Close to detach.
func (m *Metrics) Observe(bus *events.Bus) {
	m.unsubscribe = bus.Subscribe(m.handle)
}

func (m *Metrics) handle(evt events.Event) {
	m.eventsTotal.WithLabelValues(string(evt.Type)).Inc()

	switch evt.Type {
	case events.TypeAgentCreated:
		m.agentsCreated.Inc()

	case events.TypeAgentAction:
		if action, ok := evt.Data["action"].(string); ok {
			m.agentActionsTotal.WithLabelValues(action).Inc()
		}

	case events.TypeTransaction:
		txType, _ := evt.Data["type"].(string)
		status, _ := evt.Data["status"].(string)
		m.transactionsTotal.WithLabelValues(txType, status).Inc()

	case events.TypeSystemError:
		m.systemErrors.Inc()
	}
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Close detaches the bus subscription.
func (m *Metrics) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}
