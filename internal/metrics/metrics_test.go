package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(func() float64 { return 3 })

	m.ObserveInventory("SUB", "coffee", "committed")
	m.ObserveInventory("SUB", "coffee", "committed")
	m.ObserveInventory("SUB", "coffee", "insufficient_stock")
	m.ObserveMaintenance("WATER", "committed")
	m.ObserveDenied()
	m.ObserveResult("denied")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.inventoryOps.WithLabelValues("SUB", "coffee", "committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inventoryOps.WithLabelValues("SUB", "coffee", "insufficient_stock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.maintenanceOps.WithLabelValues("WATER", "committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.accessDenied))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.pendingDialogue))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveInventory("ADD", "milk", "committed")
		m.ObserveMaintenance("SERVICE", "committed")
		m.ObserveResult("idle")
		m.ObserveDenied()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.ObserveInventory("ADD", "milk", "committed")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `coffee_inventory_operations_total{action="ADD",item="milk",outcome="committed"} 1`)
}
