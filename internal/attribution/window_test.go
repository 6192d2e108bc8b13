package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/attributionops/attribution-engine/internal/models"
)

func TestGroupByCustomerSortsAndDropsAnonymous(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tps := []models.Touchpoint{
		{Timestamp: base.Add(48 * time.Hour), CustomerKey: "c1", CampaignID: "late"},
		{Timestamp: base, CustomerKey: "c1", CampaignID: "early"},
		{Timestamp: base, CustomerKey: ""},
		{Timestamp: base.Add(time.Hour), CustomerKey: "c2"},
	}

	byCustomer := groupByCustomer(tps)
	assert.Len(t, byCustomer, 2)
	assert.Equal(t, "early", byCustomer["c1"][0].CampaignID)
	assert.Equal(t, "late", byCustomer["c1"][1].CampaignID)
}

func TestGroupByCustomerStableTies(t *testing.T) {
	// Two touchpoints at the same instant keep ingestion order.
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tps := []models.Touchpoint{
		{Timestamp: ts, CustomerKey: "c1", CampaignID: "a"},
		{Timestamp: ts, CustomerKey: "c1", CampaignID: "b"},
	}

	byCustomer := groupByCustomer(tps)
	assert.Equal(t, "a", byCustomer["c1"][0].CampaignID)
	assert.Equal(t, "b", byCustomer["c1"][1].CampaignID)
}

func TestWindowForInclusiveBounds(t *testing.T) {
	orderTS := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	lookback := 7 * 24 * time.Hour

	tps := []models.Touchpoint{
		{Timestamp: orderTS.Add(-lookback).Add(-time.Second), CustomerKey: "c1", CampaignID: "too_old"},
		{Timestamp: orderTS.Add(-lookback), CustomerKey: "c1", CampaignID: "boundary_start"},
		{Timestamp: orderTS.Add(-24 * time.Hour), CustomerKey: "c1", CampaignID: "inside"},
		{Timestamp: orderTS, CustomerKey: "c1", CampaignID: "boundary_end"},
		{Timestamp: orderTS.Add(time.Second), CustomerKey: "c1", CampaignID: "after_order"},
	}

	window := windowFor(tps, orderTS, lookback)
	assert.Len(t, window, 3)
	assert.Equal(t, "boundary_start", window[0].CampaignID)
	assert.Equal(t, "inside", window[1].CampaignID)
	assert.Equal(t, "boundary_end", window[2].CampaignID)
}

func TestWindowForNoTouchpoints(t *testing.T) {
	orderTS := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Empty(t, windowFor(nil, orderTS, 7*24*time.Hour))

	// Only future touchpoints: nothing is eligible.
	tps := []models.Touchpoint{
		{Timestamp: orderTS.Add(time.Hour), CustomerKey: "c1"},
	}
	assert.Empty(t, windowFor(tps, orderTS, 7*24*time.Hour))
}

func TestWindowForShrinkingLookbackNeverGrows(t *testing.T) {
	orderTS := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	var tps []models.Touchpoint
	for d := 1; d <= 20; d++ {
		tps = append(tps, models.Touchpoint{
			Timestamp:   orderTS.Add(-time.Duration(d) * 24 * time.Hour),
			CustomerKey: "c1",
		})
	}

	prev := len(windowFor(tps, orderTS, 30*24*time.Hour))
	for days := 29; days >= 0; days-- {
		n := len(windowFor(tps, orderTS, time.Duration(days)*24*time.Hour))
		assert.LessOrEqual(t, n, prev, "lookback %d days", days)
		prev = n
	}
}

func TestWindowForZeroLookback(t *testing.T) {
	// Zero lookback keeps only touchpoints at the order instant.
	orderTS := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tps := []models.Touchpoint{
		{Timestamp: orderTS.Add(-time.Minute), CustomerKey: "c1"},
		{Timestamp: orderTS, CustomerKey: "c1", CampaignID: "at_order"},
	}

	window := windowFor(tps, orderTS, 0)
	assert.Len(t, window, 1)
	assert.Equal(t, "at_order", window[0].CampaignID)
}

func TestBuildAccountMapFirstNonEmptyWins(t *testing.T) {
	dims := []models.SpendDimension{
		{Platform: "meta", CampaignID: "camp1", AccountID: ""},
		{Platform: "meta", CampaignID: "camp1", AccountID: "acct_a"},
		{Platform: "meta", CampaignID: "camp1", AccountID: "acct_b"},
	}

	accounts := buildAccountMap(dims)
	got := accounts.resolve(models.Touchpoint{Platform: "meta", CampaignID: "camp1"})
	assert.Equal(t, "acct_a", got)

	// Unmapped dimensions resolve to empty, not an error.
	assert.Equal(t, "", accounts.resolve(models.Touchpoint{Platform: "google", CampaignID: "other"}))
}
