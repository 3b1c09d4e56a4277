// Package metrics exposes prometheus instrumentation for the runtime's
// event bus, OMS, and paper gateway as promauto-registered package-level
// collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecore_event_queue_depth",
			Help: "Current number of events waiting in the bus queue",
		},
	)

	eventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecore_events_dispatched_total",
			Help: "Total events dispatched by type",
		},
		[]string{"event_type"},
	)

	handlerPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecore_handler_panics_total",
			Help: "Total handler panics recovered by the bus, by event type",
		},
		[]string{"event_type"},
	)

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecore_orders_total",
			Help: "Total ORDER events recorded by the OMS, by status",
		},
		[]string{"status"},
	)

	tradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecore_trades_total",
			Help: "Total fills recorded, by symbol and direction",
		},
		[]string{"symbol", "direction"},
	)

	cashBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecore_cash_balance",
			Help: "Current paper gateway cash balance",
		},
	)

	positionVolume = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradecore_position_volume",
			Help: "Current position volume by symbol and direction",
		},
		[]string{"symbol", "direction"},
	)
)

// SetQueueDepth records the bus queue length after each enqueue or dequeue.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// RecordDispatch increments the dispatched-event counter for eventType.
func RecordDispatch(eventType string) {
	eventsDispatched.WithLabelValues(eventType).Inc()
}

// RecordHandlerPanic increments the recovered-panic counter for eventType.
func RecordHandlerPanic(eventType string) {
	handlerPanics.WithLabelValues(eventType).Inc()
}

// RecordOrder increments the order counter for the given terminal or
// in-flight status string (e.g. "submitting", "all_traded", "rejected").
func RecordOrder(status string) {
	ordersTotal.WithLabelValues(status).Inc()
}

// RecordTrade increments the fill counter for symbol and direction.
func RecordTrade(symbol, direction string) {
	tradesTotal.WithLabelValues(symbol, direction).Inc()
}

// SetCashBalance records the paper gateway's current cash balance.
func SetCashBalance(balance float64) {
	cashBalance.Set(balance)
}

// SetPositionVolume records the current held volume for symbol/direction.
func SetPositionVolume(symbol, direction string, volume float64) {
	positionVolume.WithLabelValues(symbol, direction).Set(volume)
}

// Handler returns the HTTP handler serving the prometheus exposition
// format, suitable for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
