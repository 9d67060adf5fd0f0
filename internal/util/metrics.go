package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SequencesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequences_issued_total",
		Help: "Total number of order sequence numbers issued",
	}, []string{"backend"})

	SequenceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_failures_total",
		Help: "Total number of failed sequence increments",
	}, []string{"backend"})

	SequenceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sequence_latency_seconds",
		Help:    "Latency of atomic sequence increments",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	OrderNumbersBurnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_numbers_burned_total",
		Help: "Order numbers consumed by an order insert that did not commit",
	})

	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	}, []string{"source"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed orders",
	}, []string{"reason"})

	OrderDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_decisions_total",
		Help: "Total number of approve/reject decisions applied",
	}, []string{"status"})

	InventoryRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_requests_total",
		Help: "Total number of inventory requests raised",
	})

	NotificationsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_published_total",
		Help: "Total number of notification events published",
	}, []string{"type"})

	NotificationsRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_relayed_total",
		Help: "Total number of notification deliveries to websocket clients",
	}, []string{"type"})

	NotificationsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Total number of notifications dropped before delivery",
	}, []string{"reason"})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections",
		Help: "Currently open websocket connections",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
