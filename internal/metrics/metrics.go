package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ledger collectors on a private registry so that several
// instances (one per test) never collide on registration.
type Metrics struct {
	registry        *prometheus.Registry
	inventoryOps    *prometheus.CounterVec
	maintenanceOps  *prometheus.CounterVec
	dialogueResults *prometheus.CounterVec
	accessDenied    prometheus.Counter
	pendingDialogue prometheus.GaugeFunc
}

// New creates and registers the collectors. pending reports the number of
// operators currently awaiting a quantity; it may be nil.
func New(pending func() float64) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		inventoryOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffee_inventory_operations_total",
				Help: "Inventory change attempts by action, item and outcome",
			},
			[]string{"action", "item", "outcome"},
		),
		maintenanceOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffee_maintenance_operations_total",
				Help: "Maintenance stamps by field and outcome",
			},
			[]string{"field", "outcome"},
		),
		dialogueResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffee_conversation_results_total",
				Help: "Conversation results by tag",
			},
			[]string{"tag"},
		),
		accessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coffee_access_denied_total",
			Help: "Operator events rejected by the access gate",
		}),
	}

	registry.MustRegister(m.inventoryOps, m.maintenanceOps, m.dialogueResults, m.accessDenied)
	if pending != nil {
		m.pendingDialogue = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "coffee_dialogue_pending",
			Help: "Operators currently awaiting a quantity",
		}, pending)
		registry.MustRegister(m.pendingDialogue)
	}
	return m
}

// ObserveInventory counts one inventory attempt. Safe on a nil receiver.
func (m *Metrics) ObserveInventory(action, item, outcome string) {
	if m == nil {
		return
	}
	m.inventoryOps.WithLabelValues(action, item, outcome).Inc()
}

// ObserveMaintenance counts one maintenance stamp. Safe on a nil receiver.
func (m *Metrics) ObserveMaintenance(field, outcome string) {
	if m == nil {
		return
	}
	m.maintenanceOps.WithLabelValues(field, outcome).Inc()
}

// ObserveResult counts one conversation result. Safe on a nil receiver.
func (m *Metrics) ObserveResult(tag string) {
	if m == nil {
		return
	}
	m.dialogueResults.WithLabelValues(tag).Inc()
}

// ObserveDenied counts one rejected event. Safe on a nil receiver.
func (m *Metrics) ObserveDenied() {
	if m == nil {
		return
	}
	m.accessDenied.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
