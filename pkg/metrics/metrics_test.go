package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums every series of the named counter whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, label := range metric.GetLabel() {
				if v, ok := want[label.GetName()]; ok && v == label.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("create", "ok")
	m.ObserveBooking("create", "ok")
	m.ObserveBooking("create", "slot_unavailable")
	m.ObserveGatewayCall("create_intent", "ok", 20*time.Millisecond)
	m.ObserveCompensation(true)
	m.ObserveWebhook("payment_intent.succeeded", "processed")

	assert.Equal(t, 2.0, counterValue(t, reg, "clinic_booking_operations_total",
		map[string]string{"operation": "create", "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "clinic_booking_operations_total",
		map[string]string{"operation": "create", "outcome": "slot_unavailable"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "clinic_gateway_calls_total",
		map[string]string{"operation": "create_intent", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "clinic_booking_compensations_total",
		map[string]string{"result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "clinic_gateway_webhooks_total",
		map[string]string{"event_type": "payment_intent.succeeded"}))
}

func TestNilBookingMetricsIsNoop(t *testing.T) {
	var m *BookingMetrics

	assert.NotPanics(t, func() {
		m.ObserveBooking("create", "ok")
		m.ObserveGatewayCall("verify_intent", "ok", time.Millisecond)
		m.ObserveCompensation(false)
		m.ObserveWebhook("payment_intent.canceled", "ignored")
	})
}
