package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrderCounters(t *testing.T) {
	created := testutil.ToFloat64(OrdersCreated)
	RecordOrdersCreated(3)
	assert.Equal(t, created+3, testutil.ToFloat64(OrdersCreated))

	failed := testutil.ToFloat64(OrderOperations.WithLabelValues("cancel", "error"))
	RecordOrderOperation("cancel", false)
	assert.Equal(t, failed+1, testutil.ToFloat64(OrderOperations.WithLabelValues("cancel", "error")))

	type status string
	moved := testutil.ToFloat64(OrderTransitions.WithLabelValues("shipped", "delivered"))
	RecordOrderTransition(status("shipped"), status("delivered"))
	assert.Equal(t, moved+1, testutil.ToFloat64(OrderTransitions.WithLabelValues("shipped", "delivered")))
}
