package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attributionops/attribution-engine/internal/models"
)

func TestOrdersInRangeFiltersByCivilDate(t *testing.T) {
	store := NewInMemoryWarehouse()
	store.AddOrder(models.Order{OrderID: "in1", Timestamp: time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC), CustomerKey: "c1"})
	store.AddOrder(models.Order{OrderID: "in2", Timestamp: time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC), CustomerKey: "c2"})
	store.AddOrder(models.Order{OrderID: "before", Timestamp: time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), CustomerKey: "c3"})
	store.AddOrder(models.Order{OrderID: "anon", Timestamp: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), CustomerKey: ""})

	orders, err := store.OrdersInRange(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "in1", orders[0].OrderID)
	assert.Equal(t, "in2", orders[1].OrderID)

	// OrderCount still counts the anonymous order.
	n, err := store.OrderCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSpendInRangeSkipsMalformedDates(t *testing.T) {
	store := NewInMemoryWarehouse()
	store.AddSpend(models.SpendRow{Platform: "meta", Date: "2024-03-10", Cost: 10})
	store.AddSpend(models.SpendRow{Platform: "meta", Date: "not-a-date", Cost: 99})
	store.AddSpend(models.SpendRow{Platform: "google", Date: "2024-03-10", Cost: 20})

	rows, err := store.SpendInRange(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "meta")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0].Cost)

	// "all" and "" disable the platform filter.
	rows, err = store.SpendInRange(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "all")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReportedValueInRangeMatchesConversionTypeCaseInsensitively(t *testing.T) {
	store := NewInMemoryWarehouse()
	store.AddReportedValue(models.ReportedValueRow{Platform: "meta", Date: "2024-03-10", ConversionType: "purchase", ReportedValue: 40})
	store.AddReportedValue(models.ReportedValueRow{Platform: "meta", Date: "2024-03-10", ConversionType: "Lead", ReportedValue: 15})

	rows, err := store.ReportedValueInRange(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "", "Purchase")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 40.0, rows[0].ReportedValue)
}

func TestSpendDimensionsDistinct(t *testing.T) {
	store := NewInMemoryWarehouse()
	store.AddSpend(models.SpendRow{Platform: "meta", Date: "2024-03-10", AccountID: "a1", CampaignID: "c1"})
	store.AddSpend(models.SpendRow{Platform: "meta", Date: "2024-03-11", AccountID: "a1", CampaignID: "c1"})
	store.AddSpend(models.SpendRow{Platform: "google", Date: "2024-03-10", AccountID: "a2", CampaignID: "c2"})

	dims, err := store.SpendDimensions(context.Background())
	require.NoError(t, err)
	assert.Len(t, dims, 2)
}

func TestPlatformsSortedDistinct(t *testing.T) {
	store := NewInMemoryWarehouse()
	store.AddSpend(models.SpendRow{Platform: "meta", Date: "2024-03-10"})
	store.AddSpend(models.SpendRow{Platform: "google", Date: "2024-03-10"})
	store.AddSpend(models.SpendRow{Platform: "meta", Date: "2024-03-11"})
	store.AddSpend(models.SpendRow{Platform: "", Date: "2024-03-11"})

	platforms, err := store.Platforms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"google", "meta"}, platforms)
}

func TestSessionCountsAndFreshness(t *testing.T) {
	store := NewInMemoryWarehouse()
	store.AddSession(models.Session{SessionID: "s1", Timestamp: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), GCLID: "g1"})
	store.AddSession(models.Session{SessionID: "s2", Timestamp: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)})
	store.AddTouchpoint(models.Touchpoint{Timestamp: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), CustomerKey: "c1"})

	counts, err := store.SessionCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)
	assert.Equal(t, int64(1), counts.WithClickID)

	fresh, err := store.Freshness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), fresh.LastSessionTS)
	assert.Equal(t, time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), fresh.LastTouchpointTS)
	assert.True(t, fresh.LastOrderTS.IsZero())
}
