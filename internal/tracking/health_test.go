package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attributionops/attribution-engine/internal/models"
	"github.com/attributionops/attribution-engine/internal/storage"
)

func TestCheckComputesCoverageAndBlend(t *testing.T) {
	store := storage.NewInMemoryWarehouse()

	// 4 sessions, 3 with a click ID: 75% click ID coverage.
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	store.AddSession(models.Session{SessionID: "s1", Timestamp: base, GCLID: "g"})
	store.AddSession(models.Session{SessionID: "s2", Timestamp: base, FBCLID: "f"})
	store.AddSession(models.Session{SessionID: "s3", Timestamp: base, TTCLID: "t"})
	store.AddSession(models.Session{SessionID: "s4", Timestamp: base})

	// 2 orders, 1 with a touchpoint inside 30 days: 50% source coverage.
	store.AddTouchpoint(models.Touchpoint{Timestamp: base.Add(-48 * time.Hour), CustomerKey: "c1"})
	store.AddOrder(models.Order{OrderID: "o1", Timestamp: base, CustomerKey: "c1"})
	store.AddOrder(models.Order{OrderID: "o2", Timestamp: base, CustomerKey: "c2"})

	svc := NewService(store, nil)
	h, err := svc.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), h.SessionsTotal)
	assert.Equal(t, int64(3), h.SessionsWithClickID)
	assert.Equal(t, 75.0, h.ClickIDCoverage)

	assert.Equal(t, int64(2), h.OrdersTotal)
	assert.Equal(t, int64(1), h.OrdersWithSource)
	assert.Equal(t, 50.0, h.OrderSourceCoverage)

	// Blend is the mean of the two coverages.
	assert.Equal(t, 62.5, h.TrackingPercentage)

	// 50% order-source loss crosses the 20% threshold; 25% click ID loss
	// does not cross the 25% threshold.
	require.Len(t, h.Alerts, 1)
	assert.Contains(t, h.Alerts[0], "order source coverage")
}

func TestCheckAlertsOnClickIDLoss(t *testing.T) {
	store := storage.NewInMemoryWarehouse()
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	store.AddSession(models.Session{SessionID: "s1", Timestamp: base, GCLID: "g"})
	store.AddSession(models.Session{SessionID: "s2", Timestamp: base})
	store.AddSession(models.Session{SessionID: "s3", Timestamp: base})

	svc := NewService(store, nil)
	h, err := svc.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 33.33, h.ClickIDCoverage)
	require.Len(t, h.Alerts, 1)
	assert.Contains(t, h.Alerts[0], "click ID capture")
}

func TestCheckEmptyWarehouse(t *testing.T) {
	svc := NewService(storage.NewInMemoryWarehouse(), nil)
	h, err := svc.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.0, h.ClickIDCoverage)
	assert.Equal(t, 0.0, h.OrderSourceCoverage)
	assert.Equal(t, 0.0, h.TrackingPercentage)
	assert.Empty(t, h.Alerts)
}

func TestCountOrdersWithSourceRespectsLookback(t *testing.T) {
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{OrderID: "fresh", Timestamp: base, CustomerKey: "c1"},
		{OrderID: "stale", Timestamp: base, CustomerKey: "c2"},
		{OrderID: "future_touch", Timestamp: base, CustomerKey: "c3"},
	}
	tps := []models.Touchpoint{
		{Timestamp: base.Add(-29 * 24 * time.Hour), CustomerKey: "c1"},
		{Timestamp: base.Add(-31 * 24 * time.Hour), CustomerKey: "c2"},
		{Timestamp: base.Add(24 * time.Hour), CustomerKey: "c3"},
	}

	assert.Equal(t, int64(1), countOrdersWithSource(orders, tps, 30))
}
