package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/standardex/clob/pkg/clob/events"
)

// Metrics collects engine and API counters for the /metrics endpoint. It
// doubles as an event listener so trades and cancellations are counted off
// the matching path.
type Metrics struct {
	events.NopListener

	OrdersSubmitted *prometheus.CounterVec // by side
	OrdersRejected  prometheus.Counter
	OrdersCancelled prometheus.Counter
	TradesExecuted  prometheus.Counter
	TradeVolume     prometheus.Counter // base units
	BooksCreated    prometheus.Counter
	SubmitLatency   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clob",
			Name:      "orders_submitted_total",
			Help:      "Limit orders accepted by the engine.",
		}, []string{"side"}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clob",
			Name:      "orders_rejected_total",
			Help:      "Limit orders rejected by validation or settlement.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clob",
			Name:      "orders_cancelled_total",
			Help:      "Resting orders cancelled.",
		}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clob",
			Name:      "trades_total",
			Help:      "Individual fills executed.",
		}),
		TradeVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clob",
			Name:      "trade_volume_base_units",
			Help:      "Total traded quantity in base units.",
		}),
		BooksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clob",
			Name:      "books_created_total",
			Help:      "Order books registered.",
		}),
		SubmitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clob",
			Name:      "submit_latency_seconds",
			Help:      "End-to-end latency of submit requests.",
			Buckets:   prometheus.ExponentialBuckets(50e-6, 4, 10),
		}),
	}
	reg.MustRegister(
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.OrdersCancelled,
		m.TradesExecuted,
		m.TradeVolume,
		m.BooksCreated,
		m.SubmitLatency,
	)
	return m
}

// OnTrade implements events.Listener.
func (m *Metrics) OnTrade(t events.Trade) {
	m.TradesExecuted.Inc()
	m.TradeVolume.Add(float64(t.Qty))
}

// OnOrderCancelled implements events.Listener.
func (m *Metrics) OnOrderCancelled(events.OrderCancelled) {
	m.OrdersCancelled.Inc()
}

// OnBookCreated implements events.Listener.
func (m *Metrics) OnBookCreated(events.BookCreated) {
	m.BooksCreated.Inc()
}
