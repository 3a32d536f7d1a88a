// Package metrics holds the order domain counters shared by handlers, services and consumers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_order_operations_total",
			Help: "Total number of cart and order operations",
		},
		[]string{"operation", "status"},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_orders_created_total",
			Help: "Total number of orders created at checkout",
		},
	)

	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_order_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from", "to"},
	)
)

func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	OrderOperations.WithLabelValues(operation, status).Inc()
}

func RecordOrdersCreated(n int) {
	OrdersCreated.Add(float64(n))
}

func RecordOrderTransition[S ~string](from, to S) {
	OrderTransitions.WithLabelValues(string(from), string(to)).Inc()
}
