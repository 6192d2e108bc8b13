package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// NewMetrics registers into the default registry, so it runs exactly once
// for the whole package.
var testMetrics = NewMetrics("test")

func TestUpdateDBStatsSetsGauges(t *testing.T) {
	testMetrics.UpdateDBStats("postgres", 3, 2, 5)

	assert.Equal(t, 3.0, testutil.ToFloat64(testMetrics.DBConnections.WithLabelValues("postgres", "idle")))
	assert.Equal(t, 2.0, testutil.ToFloat64(testMetrics.DBConnections.WithLabelValues("postgres", "in_use")))
	assert.Equal(t, 5.0, testutil.ToFloat64(testMetrics.DBConnections.WithLabelValues("postgres", "total")))

	// A later sample overwrites, it does not accumulate.
	testMetrics.UpdateDBStats("postgres", 1, 0, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(testMetrics.DBConnections.WithLabelValues("postgres", "idle")))
	assert.Equal(t, 0.0, testutil.ToFloat64(testMetrics.DBConnections.WithLabelValues("postgres", "in_use")))
	assert.Equal(t, 1.0, testutil.ToFloat64(testMetrics.DBConnections.WithLabelValues("postgres", "total")))
}

func TestRecordRunSkipsTotalsOnError(t *testing.T) {
	before := testutil.ToFloat64(testMetrics.OrdersProcessed)
	testMetrics.RecordRun("linear", "error", time.Millisecond, 10, 2, 4)
	assert.Equal(t, before, testutil.ToFloat64(testMetrics.OrdersProcessed))

	testMetrics.RecordRun("linear", "ok", time.Millisecond, 10, 2, 4)
	assert.Equal(t, before+10, testutil.ToFloat64(testMetrics.OrdersProcessed))
}

func TestUpdateTrackingHealthSetsGauges(t *testing.T) {
	testMetrics.UpdateTrackingHealth(62.5, 75.0, 50.0)

	assert.Equal(t, 62.5, testutil.ToFloat64(testMetrics.TrackingPercentage))
	assert.Equal(t, 75.0, testutil.ToFloat64(testMetrics.ClickIDCoverage))
	assert.Equal(t, 50.0, testutil.ToFloat64(testMetrics.OrderSourceCoverage))
}
